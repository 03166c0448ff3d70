package models

import "fmt"

// VerifyLedgerIntegrity lists every inconsistency between the ledger, the batches it references
// and the balance cache. An empty result means the state is consistent.
func VerifyLedgerIntegrity(state *ManufacturingState) []string {
	var issues []string

	perBatch := make(map[int]int)
	for i, entry := range state.StockLedger.Entries {
		if want := int64(i + 1); entry.Sequence != want {
			issues = append(issues, fmt.Sprintf("entry %s: sequence %d, expected %d", entry.ID, entry.Sequence, want))
		}
		if err := ValidateStockMovements([]StockMovement{entry.Movement()}); err != nil {
			issues = append(issues, fmt.Sprintf("entry %s: %s", entry.ID, err.Error()))
		}
		productionId, ok := ParseProductionReference(entry.Reference)
		if !ok {
			continue
		}
		perBatch[productionId]++
		batch, exists := state.Productions.ById[productionId]
		if !exists {
			issues = append(issues, fmt.Sprintf("entry %s: references missing production %d", entry.ID, productionId))
			continue
		}
		if batch.Status != ProductionStatusCompleted {
			issues = append(issues, fmt.Sprintf("entry %s: production %d is %s", entry.ID, productionId, batch.Status))
		}
	}

	for _, id := range state.Productions.AllIds {
		batch := state.Productions.ById[id]
		if batch.Status != ProductionStatusCompleted || batch.Actuals == nil {
			continue
		}
		want := len(CompletionMovements(&batch, batch.Actuals.Output))
		if got := perBatch[id]; got != want {
			issues = append(issues, fmt.Sprintf("production %d: %d ledger entries, expected %d", id, got, want))
		}
	}

	if !state.StockBalances.Equal(RecalculateStockBalances(state.StockLedger.Entries)) {
		issues = append(issues, "stock balances differ from the ledger")
	}
	return issues
}

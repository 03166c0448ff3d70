package reports

import (
	"cmp"
	"slices"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/shopspring/decimal"
)

const recentLedgerEntryLimit = 6

var hundred = decimal.NewFromInt(100)

type QuantityTotal struct {
	Qty  decimal.Decimal `json:"qty"`
	Unit string          `json:"unit"`
}

type RecentLedgerEntry struct {
	Sequence    int64                 `json:"sequence"`
	Type        models.StockEntryType `json:"type"`
	ProductId   int                   `json:"productId"`
	ProductName string                `json:"productName,omitempty"`
	Qty         decimal.Decimal       `json:"qty"`
	Unit        string                `json:"unit"`
	Reference   string                `json:"reference"`
	PostedAt    time.Time             `json:"postedAt"`
}

type RecipeYieldResponse struct {
	RecipeId       int             `json:"recipeId"`
	Name           string          `json:"name"`
	ExpectedOutput models.Quantity `json:"expectedOutput"`
	TotalInput     decimal.Decimal `json:"totalInput"`
	YieldPercent   decimal.Decimal `json:"yieldPercent"`
}

type DashboardSummaryResponse struct {
	TotalRecipes      int                    `json:"totalRecipes"`
	ActiveRecipes     int                    `json:"activeRecipes"`
	TotalBatches      int                    `json:"totalBatches"`
	CompletedBatches  int                    `json:"completedBatches"`
	InProgressBatches int                    `json:"inProgressBatches"`
	TotalProcessLoss  []*QuantityTotal       `json:"totalProcessLoss"`
	RecentEntries     []*RecentLedgerEntry   `json:"recentEntries"`
	RecipeYields      []*RecipeYieldResponse `json:"recipeYields"`
}

// GetDashboardSummary counts recipes and batches, totals the actual process loss per base unit,
// lists the latest ledger entries newest first and gives each recipe's theoretical yield.
func GetDashboardSummary(state *models.ManufacturingState) *DashboardSummaryResponse {
	summary := &DashboardSummaryResponse{
		TotalRecipes:     len(state.Recipes.AllIds),
		TotalBatches:     len(state.Productions.AllIds),
		TotalProcessLoss: []*QuantityTotal{},
		RecentEntries:    []*RecentLedgerEntry{},
		RecipeYields:     []*RecipeYieldResponse{},
	}

	for _, recipe := range state.RecipeList() {
		if recipe.IsActive {
			summary.ActiveRecipes++
		}
		if row, ok := recipeYield(recipe); ok {
			summary.RecipeYields = append(summary.RecipeYields, row)
		}
	}

	lossByUnit := make(map[string]decimal.Decimal)
	for _, batch := range state.ProductionList() {
		switch batch.Status {
		case models.ProductionStatusInProgress, models.ProductionStatusOnHold:
			summary.InProgressBatches++
		case models.ProductionStatusCompleted:
			summary.CompletedBatches++
		}
		if batch.Actuals == nil || !batch.Actuals.Loss.IsPositive() {
			continue
		}
		base, err := models.ToBaseUnit(batch.Actuals.Loss, batch.PlannedOutput.Unit)
		if err != nil {
			continue
		}
		lossByUnit[base.Unit] = lossByUnit[base.Unit].Add(base.Qty)
	}
	for unit, qty := range lossByUnit {
		summary.TotalProcessLoss = append(summary.TotalProcessLoss, &QuantityTotal{Qty: qty, Unit: unit})
	}
	slices.SortFunc(summary.TotalProcessLoss, func(a, b *QuantityTotal) int {
		return cmp.Compare(a.Unit, b.Unit)
	})

	entries := state.StockLedger.Entries
	for i := len(entries) - 1; i >= 0 && len(summary.RecentEntries) < recentLedgerEntryLimit; i-- {
		entry := entries[i]
		row := &RecentLedgerEntry{
			Sequence:  entry.Sequence,
			Type:      entry.Type,
			ProductId: entry.ProductId,
			Qty:       entry.Qty,
			Unit:      entry.Unit,
			Reference: entry.Reference,
			PostedAt:  entry.PostedAt,
		}
		if product, found := models.FindProduct(state.Products, entry.ProductId); found {
			row.ProductName = product.Name
		}
		summary.RecentEntries = append(summary.RecentEntries, row)
	}
	return summary
}

// recipeYield is expected output over total input, both in the output unit.
func recipeYield(recipe models.Recipe) (*RecipeYieldResponse, bool) {
	total := decimal.Zero
	for _, input := range recipe.Inputs {
		qty, err := models.ConvertUnit(input.Qty, input.Unit, recipe.ExpectedOutput.Unit)
		if err != nil {
			return nil, false
		}
		total = total.Add(qty)
	}
	if !total.IsPositive() {
		return nil, false
	}
	return &RecipeYieldResponse{
		RecipeId:       recipe.ID,
		Name:           recipe.Name,
		ExpectedOutput: recipe.ExpectedOutput,
		TotalInput:     total,
		YieldPercent:   recipe.ExpectedOutput.Qty.Div(total).Mul(hundred).Round(2),
	}, true
}

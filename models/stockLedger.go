package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// StockMovement is a calculated, not yet posted, ledger line.
type StockMovement struct {
	ProductId int             `json:"productId"`
	Qty       decimal.Decimal `json:"qty"`
	Unit      string          `json:"unit"`
	Type      StockEntryType  `json:"type"`
}

// StockLedgerEntry is append-only: once posted it is never updated or deleted.
// Quantities are signed; consumption and process loss are negative, receipts positive.
type StockLedgerEntry struct {
	ID            string          `gorm:"size:36;primary_key" json:"id"` // uuid
	StateKey      string          `gorm:"size:100;index:idx_ledger_state_seq,priority:1;not null" json:"-"`
	Sequence      int64           `gorm:"index:idx_ledger_state_seq,priority:2;not null" json:"sequence"`
	Type          StockEntryType  `gorm:"size:32;not null" json:"type"`
	ProductId     int             `gorm:"index;not null" json:"productId"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Unit          string          `gorm:"size:20;not null" json:"unit"`
	Reference     string          `gorm:"size:64;index;not null" json:"reference"`
	Remarks       string          `gorm:"type:text" json:"remarks,omitempty"`
	PostedAt      time.Time       `gorm:"not null" json:"postedAt"`
	CorrelationId string          `gorm:"size:64;index" json:"correlationId,omitempty"`
}

func (StockLedgerEntry) TableName() string {
	return "stock_ledger_entries"
}

// UnmarshalJSON accepts the legacy type names. Unsigned ISSUE and LOSS quantities are stored negated.
func (e *StockLedgerEntry) UnmarshalJSON(b []byte) error {
	type plainEntry StockLedgerEntry
	var raw struct {
		plainEntry
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = StockLedgerEntry(raw.plainEntry)
	if raw.Type == "" {
		return nil
	}
	entryType, err := ParseStockEntryType(raw.Type)
	if err != nil {
		return err
	}
	e.Type = entryType
	if unsignedLegacyEntryTypes[raw.Type] && e.Qty.IsPositive() {
		e.Qty = e.Qty.Neg()
	}
	return nil
}

func (e StockLedgerEntry) Movement() StockMovement {
	return StockMovement{ProductId: e.ProductId, Qty: e.Qty, Unit: e.Unit, Type: e.Type}
}

// StockBalances is the derived cache: productId -> unit -> signed running total.
type StockBalances map[int]map[string]decimal.Decimal

func (b StockBalances) Clone() StockBalances {
	out := make(StockBalances, len(b))
	for productId, perUnit := range b {
		units := make(map[string]decimal.Decimal, len(perUnit))
		for unit, qty := range perUnit {
			units[unit] = qty
		}
		out[productId] = units
	}
	return out
}

func (b StockBalances) Get(productId int, unit string) decimal.Decimal {
	perUnit, ok := b[productId]
	if !ok {
		return decimal.Zero
	}
	return perUnit[canonicalUnit(unit)]
}

// Equal compares by value; a missing product or unit counts as zero.
func (b StockBalances) Equal(other StockBalances) bool {
	return b.containedIn(other) && other.containedIn(b)
}

func (b StockBalances) containedIn(other StockBalances) bool {
	for productId, perUnit := range b {
		for unit, qty := range perUnit {
			if !qty.Equal(other.Get(productId, unit)) {
				return false
			}
		}
	}
	return true
}

// RecalculateStockBalances folds the ledger into balances. The result only depends on the set of entries.
func RecalculateStockBalances(entries []StockLedgerEntry) StockBalances {
	balances := make(StockBalances)
	for _, entry := range entries {
		applyToBalances(balances, entry)
	}
	return balances
}

func applyToBalances(balances StockBalances, entry StockLedgerEntry) {
	perUnit, ok := balances[entry.ProductId]
	if !ok {
		perUnit = make(map[string]decimal.Decimal)
		balances[entry.ProductId] = perUnit
	}
	unit := canonicalUnit(entry.Unit)
	perUnit[unit] = perUnit[unit].Add(entry.Qty)
}

type LedgerFilter struct {
	ProductId *int
	Reference string
	Type      StockEntryType
}

func FilterLedger(entries []StockLedgerEntry, filter LedgerFilter) []StockLedgerEntry {
	result := make([]StockLedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.ProductId != nil && entry.ProductId != *filter.ProductId {
			continue
		}
		if filter.Reference != "" && entry.Reference != filter.Reference {
			continue
		}
		if filter.Type != "" && entry.Type != filter.Type {
			continue
		}
		result = append(result, entry)
	}
	return result
}

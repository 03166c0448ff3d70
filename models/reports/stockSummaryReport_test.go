package reports_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models/reports"
	"github.com/shopspring/decimal"
)

var day = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

func post(t *testing.T, state *models.ManufacturingState, productId int, qty string, unit string, at time.Time) *models.ManufacturingState {
	t.Helper()
	typ := models.StockEntryTypeFgReceipt
	if decimal.RequireFromString(qty).IsNegative() {
		typ = models.StockEntryTypeRawConsumption
	}
	next, err := models.Reduce(state, models.AddStockTransaction{Entry: models.StockLedgerEntry{
		Type:      typ,
		ProductId: productId,
		Qty:       decimal.RequireFromString(qty),
		Unit:      unit,
		Reference: "ADJ",
		PostedAt:  at,
	}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return next
}

func ledgerState(t *testing.T) *models.ManufacturingState {
	t.Helper()
	state := models.NewManufacturingState()
	state.Products = []models.Product{{ID: 1, Name: "Sulphur Powder", Type: models.ProductTypeRaw, BaseUnit: "kg"}}
	state = post(t, state, 1, "100", "kg", day)
	state = post(t, state, 1, "-30", "kg", day.AddDate(0, 0, 5))
	state = post(t, state, 1, "20", "kg", day.AddDate(0, 0, 10))
	state = post(t, state, 1, "500", "g", day.AddDate(0, 0, 10))
	state = post(t, state, 2, "-4", "l", day.AddDate(0, 0, 20))
	return state
}

func TestGetStockSummaryReport_AllTime(t *testing.T) {
	rows := reports.GetStockSummaryReport(ledgerState(t), time.Time{}, time.Time{})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	g, kg, l := rows[0], rows[1], rows[2]
	if g.ProductId != 1 || g.Unit != "g" || kg.Unit != "kg" || l.ProductId != 2 {
		t.Fatalf("unexpected ordering: %+v %+v %+v", g, kg, l)
	}
	if kg.ProductName != "Sulphur Powder" {
		t.Fatalf("expected product name, got %q", kg.ProductName)
	}
	if !kg.QtyIn.Equal(decimal.NewFromInt(120)) || !kg.QtyOut.Equal(decimal.NewFromInt(30)) || !kg.ClosingStock.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected kg row: %+v", kg)
	}
	if !l.ClosingStock.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("expected -4 closing for product 2, got %s", l.ClosingStock)
	}
}

func TestGetStockSummaryReport_Window(t *testing.T) {
	from := day.AddDate(0, 0, 3)
	to := day.AddDate(0, 0, 15)
	rows := reports.GetStockSummaryReport(ledgerState(t), from, to)
	if len(rows) != 2 {
		t.Fatalf("entries after the window must be skipped, got %d rows", len(rows))
	}
	kg := rows[1]
	if !kg.OpeningStock.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected opening 100, got %s", kg.OpeningStock)
	}
	if !kg.QtyIn.Equal(decimal.NewFromInt(20)) || !kg.QtyOut.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected movement in window: in %s out %s", kg.QtyIn, kg.QtyOut)
	}
	if !kg.ClosingStock.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected closing 90, got %s", kg.ClosingStock)
	}
}

func TestBuildLedgerWorkbook(t *testing.T) {
	state, err := models.DefaultManufacturingState()
	if err != nil {
		t.Fatalf("DefaultManufacturingState: %v", err)
	}
	f, err := reports.BuildLedgerWorkbook(state)
	if err != nil {
		t.Fatalf("BuildLedgerWorkbook: %v", err)
	}
	defer f.Close()

	ledgerRows, err := f.GetRows("Ledger")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(ledgerRows) != 8 {
		t.Fatalf("expected header plus 7 entries, got %d rows", len(ledgerRows))
	}
	if ledgerRows[1][7] != "PROD-9001" {
		t.Fatalf("expected reference PROD-9001, got %q", ledgerRows[1][7])
	}

	productionRows, err := f.GetRows("Productions")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(productionRows) != 2 || productionRows[1][8] != string(models.YieldRatingWarning) {
		t.Fatalf("unexpected production sheet: %v", productionRows)
	}
	if _, err := f.WriteToBuffer(); err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
}

package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/shopspring/decimal"
)

func TestValidateRecipe(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(r *models.Recipe)
		kind     models.ErrorKind
		fragment string
	}{
		{"valid", func(r *models.Recipe) {}, "", ""},
		{"short name", func(r *models.Recipe) { r.Name = " ab " }, models.ErrorKindValidation, "at least 3"},
		{"missing output product", func(r *models.Recipe) { r.OutputProductId = 0 }, models.ErrorKindValidation, "output product"},
		{"zero expected output", func(r *models.Recipe) { r.ExpectedOutput.Qty = decimal.Zero }, models.ErrorKindValidation, "Expected output quantity"},
		{"missing output unit", func(r *models.Recipe) { r.ExpectedOutput.Unit = " " }, models.ErrorKindValidation, "unit is required"},
		{"unknown output unit", func(r *models.Recipe) { r.ExpectedOutput.Unit = "furlong" }, models.ErrorKindUnsupportedUnit, "furlong"},
		{"no inputs", func(r *models.Recipe) { r.Inputs = nil }, models.ErrorKindValidation, "at least one input"},
		{"input without product", func(r *models.Recipe) { r.Inputs[1].ProductId = 0 }, models.ErrorKindValidation, "material #2 missing product"},
		{"negative input", func(r *models.Recipe) { r.Inputs[0].Qty = d("-1") }, models.ErrorKindValidation, "material #1"},
		{"input without unit", func(r *models.Recipe) { r.Inputs[0].Unit = "" }, models.ErrorKindValidation, "Input unit missing"},
		{"input unit mismatch", func(r *models.Recipe) { r.Inputs[1].Unit = "l" }, models.ErrorKindValidation, "Unit mismatch"},
		{"negative loss", func(r *models.Recipe) { r.ProcessLossPercent = d("-1") }, models.ErrorKindValidation, "Process loss"},
		{"loss of 100", func(r *models.Recipe) { r.ProcessLossPercent = d("100") }, models.ErrorKindValidation, "Process loss"},
		{"by-product without product", func(r *models.Recipe) { r.ByProducts[0].ProductId = 0 }, models.ErrorKindValidation, "By-product #1"},
		{"by-product zero qty", func(r *models.Recipe) { r.ByProducts[0].Qty = decimal.Zero }, models.ErrorKindValidation, "By-product quantity"},
		{"by-product incompatible", func(r *models.Recipe) { r.ByProducts[0].Unit = "pcs" }, models.ErrorKindValidation, "incompatible"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recipe := juiceRecipe()
			tc.mutate(&recipe)
			err := models.ValidateRecipe(&recipe)
			if tc.kind == "" {
				if err != nil {
					t.Fatalf("expected valid recipe, got %v", err)
				}
				return
			}
			expectKind(t, err, tc.kind)
			expectMessage(t, err, tc.fragment)
		})
	}
}

func TestValidateRecipe_Nil(t *testing.T) {
	if err := models.ValidateRecipe(nil); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateRecipeProducts(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "Mango", Type: models.ProductTypeRaw, BaseUnit: "kg"},
		{ID: 2, Name: "Sugar", Type: models.ProductTypeRaw, BaseUnit: "kg"},
		{ID: 3, Name: "Peel", Type: models.ProductTypeByProduct, BaseUnit: "kg"},
		{ID: 10, Name: "Mango Pulp", Type: models.ProductTypeFinished, BaseUnit: "kg"},
	}
	recipe := juiceRecipe()
	if err := models.ValidateRecipeProducts(&recipe, products); err != nil {
		t.Fatalf("expected products to resolve, got %v", err)
	}
	if err := models.ValidateRecipeProducts(&recipe, nil); err != nil {
		t.Fatalf("empty master data must skip the check, got %v", err)
	}

	recipe.OutputProductId = 1
	expectMessage(t, models.ValidateRecipeProducts(&recipe, products), "must be a finished product")

	recipe = juiceRecipe()
	recipe.Inputs[0].ProductId = 99
	expectMessage(t, models.ValidateRecipeProducts(&recipe, products), "unknown product 99")
}

func TestValidateProductionRequest(t *testing.T) {
	recipe := juiceRecipe()
	if err := models.ValidateProductionRequest(nil, d("1")); !errors.Is(err, models.ErrMissingRecipe) {
		t.Fatalf("expected missing recipe, got %v", err)
	}
	if err := models.ValidateProductionRequest(&recipe, decimal.Zero); !errors.Is(err, models.ErrInvalidBatchSize) {
		t.Fatalf("expected invalid batch size, got %v", err)
	}
	if err := models.ValidateProductionRequest(&recipe, d("0.5")); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestValidateMassBalance(t *testing.T) {
	balanced := models.MassBalance{
		TotalInputQty:     d("105"),
		TotalOutputQty:    d("97"),
		TotalByProductQty: d("2"),
		ProcessLossQty:    d("3"),
		Dimension:         models.DimensionMass,
	}
	if err := models.ValidateMassBalance(balanced); err != nil {
		t.Fatalf("expected balance to pass, got %v", err)
	}

	equal := balanced
	equal.TotalByProductQty = d("5")
	if err := models.ValidateMassBalance(equal); err != nil {
		t.Fatalf("outputs equal to inputs must pass, got %v", err)
	}

	over := balanced
	over.TotalOutputQty = d("101")
	err := models.ValidateMassBalance(over)
	if !errors.Is(err, models.ErrMassBalanceViolation) {
		t.Fatalf("expected mass balance violation, got %v", err)
	}
}

func TestActualLoss(t *testing.T) {
	if got := models.ActualLoss(d("200"), d("190")); !got.Equal(d("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
	if got := models.ActualLoss(d("200"), d("205")); !got.IsZero() {
		t.Fatalf("over-yield must not produce negative loss, got %s", got)
	}
}

func TestValidateStockMovements(t *testing.T) {
	valid := models.StockMovement{ProductId: 1, Qty: d("-5"), Unit: "kg", Type: models.StockEntryTypeRawConsumption}
	if err := models.ValidateStockMovements([]models.StockMovement{valid}); err != nil {
		t.Fatalf("expected valid movement, got %v", err)
	}

	cases := []struct {
		name     string
		mutate   func(m *models.StockMovement)
		kind     models.ErrorKind
		fragment string
	}{
		{"missing product", func(m *models.StockMovement) { m.ProductId = 0 }, models.ErrorKindValidation, "missing product"},
		{"missing unit", func(m *models.StockMovement) { m.Unit = "" }, models.ErrorKindValidation, "missing unit"},
		{"missing type", func(m *models.StockMovement) { m.Type = "" }, models.ErrorKindValidation, "missing type"},
		{"unknown type", func(m *models.StockMovement) { m.Type = "ADJUSTMENT" }, models.ErrorKindValidation, "unknown type"},
		{"zero quantity", func(m *models.StockMovement) { m.Qty = decimal.Zero }, models.ErrorKindValidation, "invalid quantity"},
		{"positive consumption", func(m *models.StockMovement) { m.Qty = d("5") }, models.ErrorKindValidation, "must be negative"},
		{"positive loss", func(m *models.StockMovement) { m.Type = models.StockEntryTypeProcessLoss; m.Qty = d("1") }, models.ErrorKindValidation, "must be negative"},
		{"negative receipt", func(m *models.StockMovement) { m.Type = models.StockEntryTypeFgReceipt }, models.ErrorKindValidation, "must be positive"},
		{"negative by-product", func(m *models.StockMovement) { m.Type = models.StockEntryTypeByProductReceipt }, models.ErrorKindValidation, "must be positive"},
		{"unsupported unit", func(m *models.StockMovement) { m.Unit = "bushel" }, models.ErrorKindUnsupportedUnit, "bushel"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid
			tc.mutate(&m)
			err := models.ValidateStockMovements([]models.StockMovement{valid, m})
			expectKind(t, err, tc.kind)
			expectMessage(t, err, "#2")
			expectMessage(t, err, tc.fragment)
		})
	}
}

func TestValidateLedgerEntry_RequiresReference(t *testing.T) {
	entry := models.StockLedgerEntry{ProductId: 1, Qty: d("10"), Unit: "kg", Type: models.StockEntryTypeFgReceipt}
	expectMessage(t, models.ValidateLedgerEntry(entry), "reference is required")
	entry.Reference = "GRN-7"
	if err := models.ValidateLedgerEntry(entry); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
}

package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/shopspring/decimal"
)

func TestCalculateProduction_ScalesAndPostsLoss(t *testing.T) {
	recipe := juiceRecipe()
	plan, err := models.CalculateProduction(&recipe, d("2"))
	if err != nil {
		t.Fatalf("CalculateProduction: %v", err)
	}
	if !plan.Output.PlannedQty.Equal(d("200")) {
		t.Fatalf("expected planned output 200, got %s", plan.Output.PlannedQty)
	}
	if !plan.ProcessLoss.Qty.Equal(d("6")) {
		t.Fatalf("expected loss 6, got %s", plan.ProcessLoss.Qty)
	}
	if !plan.Output.ActualQty.Equal(d("194")) {
		t.Fatalf("expected net output 194, got %s", plan.Output.ActualQty)
	}
	if !plan.Inputs[0].RequiredQty.Equal(d("160")) || !plan.Inputs[1].RequiredQty.Equal(d("50")) {
		t.Fatalf("unexpected scaled inputs: %+v", plan.Inputs)
	}
	if !plan.ByProducts[0].Qty.Equal(d("4")) {
		t.Fatalf("expected by-product 4, got %s", plan.ByProducts[0].Qty)
	}

	expected := []struct {
		productId int
		qty       string
		typ       models.StockEntryType
	}{
		{1, "-160", models.StockEntryTypeRawConsumption},
		{2, "-50", models.StockEntryTypeRawConsumption},
		{10, "194", models.StockEntryTypeFgReceipt},
		{3, "4", models.StockEntryTypeByProductReceipt},
		{10, "-6", models.StockEntryTypeProcessLoss},
	}
	if len(plan.StockMovements) != len(expected) {
		t.Fatalf("expected %d movements, got %d", len(expected), len(plan.StockMovements))
	}
	for i, e := range expected {
		m := plan.StockMovements[i]
		if m.ProductId != e.productId || !m.Qty.Equal(d(e.qty)) || m.Type != e.typ {
			t.Fatalf("movement %d: expected %d %s %s, got %d %s %s", i, e.productId, e.qty, e.typ, m.ProductId, m.Qty, m.Type)
		}
	}
	if plan.Recipe == nil || plan.Recipe.Name != "Mango Pulp" || plan.Recipe.Version != "v1" {
		t.Fatalf("expected recipe summary, got %+v", plan.Recipe)
	}
}

func TestCalculateProduction_MixedUnitInputs(t *testing.T) {
	recipe := models.Recipe{
		ID:                 2,
		Name:               "Brine Cheese",
		OutputProductId:    10,
		ExpectedOutput:     models.Quantity{Qty: d("100"), Unit: "kg"},
		Inputs:             []models.RecipeLine{line(1, "75", "kg"), line(4, "10", "L")},
		ProcessLossPercent: d("3"),
		IsActive:           true,
	}
	plan, err := models.CalculateProduction(&recipe, d("2"))
	if err != nil {
		t.Fatalf("CalculateProduction: %v", err)
	}
	if !plan.Output.PlannedQty.Equal(d("200")) || !plan.ProcessLoss.Qty.Equal(d("6")) || !plan.Output.ActualQty.Equal(d("194")) {
		t.Fatalf("expected 200/6/194, got %s/%s/%s", plan.Output.PlannedQty, plan.ProcessLoss.Qty, plan.Output.ActualQty)
	}
	if !plan.Inputs[0].RequiredQty.Equal(d("150")) || !plan.Inputs[1].RequiredQty.Equal(d("20")) || plan.Inputs[1].Unit != "L" {
		t.Fatalf("unexpected scaled inputs: %+v", plan.Inputs)
	}
	if len(plan.StockMovements) != 4 {
		t.Fatalf("expected 4 movements, got %d", len(plan.StockMovements))
	}
}

func TestCalculateProduction_NoLossMovementWithoutLoss(t *testing.T) {
	recipe := juiceRecipe()
	recipe.ProcessLossPercent = decimal.Zero
	plan, err := models.CalculateProduction(&recipe, d("1"))
	if err != nil {
		t.Fatalf("CalculateProduction: %v", err)
	}
	for _, m := range plan.StockMovements {
		if m.Type == models.StockEntryTypeProcessLoss {
			t.Fatalf("unexpected process loss movement: %+v", m)
		}
	}
	if !plan.Output.ActualQty.Equal(d("100")) {
		t.Fatalf("expected net output 100, got %s", plan.Output.ActualQty)
	}
}

func TestCalculateProduction_Deterministic(t *testing.T) {
	recipe := juiceRecipe()
	first, err := models.CalculateProduction(&recipe, d("1.5"))
	if err != nil {
		t.Fatalf("CalculateProduction: %v", err)
	}
	second, err := models.CalculateProduction(&recipe, d("1.5"))
	if err != nil {
		t.Fatalf("CalculateProduction: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("expected identical plans:\n%s\n%s", a, b)
	}
}

func TestCalculateProduction_LossExceedsOutput(t *testing.T) {
	recipe := juiceRecipe()
	recipe.ExpectedOutput.Qty = d("0.001")
	recipe.ProcessLossPercent = d("99")
	_, err := models.CalculateProduction(&recipe, d("1"))
	if !errors.Is(err, models.ErrLossExceedsOutput) {
		t.Fatalf("expected loss exceeds output, got %v", err)
	}
}

func TestCalculateProduction_RejectsBadRequests(t *testing.T) {
	if _, err := models.CalculateProduction(nil, d("1")); !errors.Is(err, models.ErrMissingRecipe) {
		t.Fatalf("expected missing recipe, got %v", err)
	}
	recipe := juiceRecipe()
	if _, err := models.CalculateProduction(&recipe, decimal.Zero); !errors.Is(err, models.ErrInvalidBatchSize) {
		t.Fatalf("expected invalid batch size, got %v", err)
	}
	if _, err := models.CalculateProduction(&recipe, d("-2")); !errors.Is(err, models.ErrInvalidBatchSize) {
		t.Fatalf("expected invalid batch size for negative multiplier, got %v", err)
	}
}

func TestPlanProduction_AttachesMassBalance(t *testing.T) {
	recipe := juiceRecipe()
	plan, err := models.PlanProduction(&recipe, d("1"))
	if err != nil {
		t.Fatalf("PlanProduction: %v", err)
	}
	mb := plan.MassBalance
	if mb == nil {
		t.Fatalf("expected mass balance on plan")
	}
	if !mb.TotalInputQty.Equal(d("105")) || !mb.TotalOutputQty.Equal(d("97")) ||
		!mb.TotalByProductQty.Equal(d("2")) || !mb.ProcessLossQty.Equal(d("3")) {
		t.Fatalf("unexpected mass balance: %+v", mb)
	}
	if mb.Dimension != models.DimensionMass {
		t.Fatalf("expected mass dimension, got %s", mb.Dimension)
	}
}

func TestPlanProduction_BalancesAcrossUnitsOfOneDimension(t *testing.T) {
	recipe := juiceRecipe()
	recipe.Inputs = []models.RecipeLine{line(1, "80000", "g"), line(2, "0.025", "ton")}
	plan, err := models.PlanProduction(&recipe, d("1"))
	if err != nil {
		t.Fatalf("PlanProduction: %v", err)
	}
	if !plan.MassBalance.TotalInputQty.Equal(d("105")) {
		t.Fatalf("expected 105 kg of input, got %s", plan.MassBalance.TotalInputQty)
	}
}

func TestPlanProduction_RejectsOverProducingRecipe(t *testing.T) {
	recipe := juiceRecipe()
	recipe.ByProducts = []models.RecipeLine{line(3, "30", "kg")}
	_, err := models.PlanProduction(&recipe, d("1"))
	if !errors.Is(err, models.ErrMassBalanceViolation) {
		t.Fatalf("expected mass balance violation, got %v", err)
	}
}

func TestPlanProduction_RejectsMixedDimensions(t *testing.T) {
	recipe := juiceRecipe()
	recipe.Inputs = append(recipe.Inputs, line(4, "10", "l"))
	_, err := models.PlanProduction(&recipe, d("1"))
	if !errors.Is(err, models.ErrIncompatibleDimension) {
		t.Fatalf("expected incompatible dimension, got %v", err)
	}
}

func TestNewProductionBatchFromPlan(t *testing.T) {
	recipe := juiceRecipe()
	plan, err := models.PlanProduction(&recipe, d("2"))
	if err != nil {
		t.Fatalf("PlanProduction: %v", err)
	}
	batch := models.NewProductionBatchFromPlan(7, plan, "night shift", testClock)
	if batch.Status != models.ProductionStatusPlanned {
		t.Fatalf("expected PLANNED, got %s", batch.Status)
	}
	if batch.Reference() != "PROD-7" {
		t.Fatalf("expected PROD-7, got %s", batch.Reference())
	}
	if !batch.PlannedOutput.Qty.Equal(d("200")) || !batch.PlannedLoss.Equal(d("6")) {
		t.Fatalf("unexpected planned output/loss: %s/%s", batch.PlannedOutput.Qty, batch.PlannedLoss)
	}
	if !batch.PlannedNetOutput().Equal(d("194")) {
		t.Fatalf("expected net output 194, got %s", batch.PlannedNetOutput())
	}
	if id, ok := models.ParseProductionReference("PROD-7"); !ok || id != 7 {
		t.Fatalf("expected to parse PROD-7, got %d %t", id, ok)
	}
}

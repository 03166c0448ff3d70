package models_test

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/shopspring/decimal"
)

var testClock = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func line(productId int, qty string, unit string) models.RecipeLine {
	return models.RecipeLine{ProductId: productId, Qty: d(qty), Unit: unit}
}

// juiceRecipe: 80 kg + 25 kg in, 100 kg out, 2 kg by-product, 3% loss.
func juiceRecipe() models.Recipe {
	return models.Recipe{
		ID:                 1,
		Name:               "Mango Pulp",
		OutputProductId:    10,
		ExpectedOutput:     models.Quantity{Qty: d("100"), Unit: "kg"},
		Inputs:             []models.RecipeLine{line(1, "80", "kg"), line(2, "25", "kg")},
		ByProducts:         []models.RecipeLine{line(3, "2", "kg")},
		ProcessLossPercent: d("3"),
		IsActive:           true,
		Version:            "v1",
	}
}

func mustReduce(t *testing.T, state *models.ManufacturingState, action models.Action) *models.ManufacturingState {
	t.Helper()
	next, err := models.Reduce(state, action)
	if err != nil {
		t.Fatalf("Reduce(%s): %v", action.ActionType(), err)
	}
	if next == nil {
		t.Fatalf("Reduce(%s) returned nil state", action.ActionType())
	}
	return next
}

func expectKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := models.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func expectMessage(t *testing.T, err error, fragment string) {
	t.Helper()
	if err == nil || !strings.Contains(err.Error(), fragment) {
		t.Fatalf("expected error containing %q, got %v", fragment, err)
	}
}

// plannedState holds the juice recipe and batch 1 planned at multiplier 2.
func plannedState(t *testing.T) *models.ManufacturingState {
	t.Helper()
	state := mustReduce(t, models.NewManufacturingState(), models.AddRecipe{Recipe: juiceRecipe()})
	return mustReduce(t, state, models.CreateProduction{Production: models.ProductionBatch{
		ID:              1,
		RecipeId:        1,
		BatchMultiplier: d("2"),
		Remarks:         "morning shift",
		Timestamps:      models.ProductionTimestamps{CreatedAt: testClock},
	}})
}

func startedState(t *testing.T) *models.ManufacturingState {
	t.Helper()
	return mustReduce(t, plannedState(t), models.StartProduction{Id: 1, At: testClock.Add(time.Hour)})
}

package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
)

func TestCalculateYield_Ratings(t *testing.T) {
	cases := []struct {
		actual  string
		percent string
		rating  models.YieldRating
	}{
		{"100", "100", models.YieldRatingExcellent},
		{"98", "98", models.YieldRatingExcellent},
		{"95", "95", models.YieldRatingWarning},
		{"94.99", "94.99", models.YieldRatingCritical},
		{"40", "40", models.YieldRatingCritical},
	}
	for _, tc := range cases {
		report, ok := models.CalculateYield(d("100"), d(tc.actual), "kg")
		if !ok {
			t.Fatalf("actual %s: expected a report", tc.actual)
		}
		if !report.YieldPercent.Equal(d(tc.percent)) || report.Rating != tc.rating {
			t.Fatalf("actual %s: expected %s%% %s, got %s%% %s", tc.actual, tc.percent, tc.rating, report.YieldPercent, report.Rating)
		}
	}
}

func TestCalculateYield_VarianceAndLoss(t *testing.T) {
	report, _ := models.CalculateYield(d("200"), d("190"), "kg")
	if !report.VarianceQty.Equal(d("-10")) || !report.LossQty.Equal(d("10")) {
		t.Fatalf("unexpected variance/loss: %s/%s", report.VarianceQty, report.LossQty)
	}
	if !report.YieldPercent.Equal(d("95")) {
		t.Fatalf("expected 95%%, got %s", report.YieldPercent)
	}
}

func TestCalculateYield_NoExpectedQuantity(t *testing.T) {
	if _, ok := models.CalculateYield(d("0"), d("5"), "kg"); ok {
		t.Fatalf("expected no report for zero expected quantity")
	}
	if _, ok := models.BatchYield(nil); ok {
		t.Fatalf("expected no report for nil batch")
	}
	batch, _ := plannedState(t).Production(1)
	if _, ok := models.BatchYield(&batch); ok {
		t.Fatalf("expected no report before completion")
	}
}

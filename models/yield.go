package models

import "github.com/shopspring/decimal"

var (
	yieldExcellentThreshold = decimal.NewFromInt(98)
	yieldWarningThreshold   = decimal.NewFromInt(95)
)

type YieldReport struct {
	ExpectedQty  decimal.Decimal `json:"expectedQty"`
	ActualQty    decimal.Decimal `json:"actualQty"`
	Unit         string          `json:"unit"`
	YieldPercent decimal.Decimal `json:"yieldPercent"`
	VarianceQty  decimal.Decimal `json:"varianceQty"`
	LossQty      decimal.Decimal `json:"lossQty"`
	Rating       YieldRating     `json:"rating"`
}

// CalculateYield returns false when there is no positive expected quantity to measure against.
func CalculateYield(expected decimal.Decimal, actual decimal.Decimal, unit string) (YieldReport, bool) {
	if !expected.IsPositive() {
		return YieldReport{}, false
	}
	yieldPercent := actual.Div(expected).Mul(hundred).Round(2)

	rating := YieldRatingCritical
	switch {
	case yieldPercent.GreaterThanOrEqual(yieldExcellentThreshold):
		rating = YieldRatingExcellent
	case yieldPercent.GreaterThanOrEqual(yieldWarningThreshold):
		rating = YieldRatingWarning
	}

	return YieldReport{
		ExpectedQty:  expected,
		ActualQty:    actual,
		Unit:         unit,
		YieldPercent: yieldPercent,
		VarianceQty:  RoundQty(actual.Sub(expected)),
		LossQty:      RoundQty(expected.Sub(actual)),
		Rating:       rating,
	}, true
}

// BatchYield measures a completed batch against its planned output.
func BatchYield(batch *ProductionBatch) (YieldReport, bool) {
	if batch == nil || batch.Actuals == nil {
		return YieldReport{}, false
	}
	return CalculateYield(batch.PlannedOutput.Qty, batch.Actuals.Output, batch.PlannedOutput.Unit)
}

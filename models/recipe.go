package models

import (
	"slices"

	"github.com/shopspring/decimal"
)

type Quantity struct {
	Qty  decimal.Decimal `json:"qty"`
	Unit string          `json:"unit" binding:"omitempty,unit"`
}

type RecipeLine struct {
	ProductId int             `json:"productId" binding:"required"`
	Qty       decimal.Decimal `json:"qty"`
	Unit      string          `json:"unit" binding:"required,unit"`
}

type Recipe struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name" binding:"required"`
	OutputProductId    int             `json:"outputProductId" binding:"required"`
	ExpectedOutput     Quantity        `json:"expectedOutput"`
	Inputs             []RecipeLine    `json:"inputs" binding:"required,dive"`
	ByProducts         []RecipeLine    `json:"byProducts" binding:"dive"`
	ProcessLossPercent decimal.Decimal `json:"processLossPercent"`
	IsActive           bool            `json:"isActive"`
	Version            string          `json:"version"`
}

// RecipePatch is a whole-field patch: a nil field is left as it is, a set field replaces the old value.
type RecipePatch struct {
	Name               *string          `json:"name"`
	OutputProductId    *int             `json:"outputProductId"`
	ExpectedOutput     *Quantity        `json:"expectedOutput"`
	Inputs             []RecipeLine     `json:"inputs" binding:"omitempty,dive"`
	ByProducts         []RecipeLine     `json:"byProducts" binding:"omitempty,dive"`
	ProcessLossPercent *decimal.Decimal `json:"processLossPercent"`
	IsActive           *bool            `json:"isActive"`
	Version            *string          `json:"version"`
}

func (r Recipe) Clone() Recipe {
	r.Inputs = slices.Clone(r.Inputs)
	r.ByProducts = slices.Clone(r.ByProducts)
	return r
}

// Apply returns a merged copy; the receiver is not modified.
func (r Recipe) Apply(patch RecipePatch) Recipe {
	merged := r.Clone()
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.OutputProductId != nil {
		merged.OutputProductId = *patch.OutputProductId
	}
	if patch.ExpectedOutput != nil {
		merged.ExpectedOutput = *patch.ExpectedOutput
	}
	if patch.Inputs != nil {
		merged.Inputs = slices.Clone(patch.Inputs)
	}
	if patch.ByProducts != nil {
		merged.ByProducts = slices.Clone(patch.ByProducts)
	}
	if patch.ProcessLossPercent != nil {
		merged.ProcessLossPercent = *patch.ProcessLossPercent
	}
	if patch.IsActive != nil {
		merged.IsActive = *patch.IsActive
	}
	if patch.Version != nil {
		merged.Version = *patch.Version
	}
	return merged
}

func normalizeRecipeUnits(r Recipe) Recipe {
	r.ExpectedOutput.Unit = canonicalUnit(r.ExpectedOutput.Unit)
	for i := range r.Inputs {
		r.Inputs[i].Unit = canonicalUnit(r.Inputs[i].Unit)
	}
	for i := range r.ByProducts {
		r.ByProducts[i].Unit = canonicalUnit(r.ByProducts[i].Unit)
	}
	return r
}

// canonicalUnit maps a registered symbol to its table spelling and leaves unknown symbols for validation to reject.
func canonicalUnit(unit string) string {
	if def, err := LookupUnit(unit); err == nil {
		return def.Symbol
	}
	return unit
}

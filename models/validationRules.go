package models

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const minRecipeNameLength = 3

var maxProcessLossPercent = decimal.NewFromInt(100)

func ValidateRecipe(recipe *Recipe) error {
	if recipe == nil {
		return validationError("Recipe object missing")
	}
	if utf8.RuneCountInString(strings.TrimSpace(recipe.Name)) < minRecipeNameLength {
		return validationError("Recipe name must be at least %d characters", minRecipeNameLength)
	}
	if recipe.OutputProductId == 0 {
		return validationError("Recipe must have an output product")
	}
	if !recipe.ExpectedOutput.Qty.IsPositive() {
		return validationError("Expected output quantity must be greater than zero")
	}
	if strings.TrimSpace(recipe.ExpectedOutput.Unit) == "" {
		return validationError("Expected output unit is required")
	}
	if _, err := LookupUnit(recipe.ExpectedOutput.Unit); err != nil {
		return err
	}
	if len(recipe.Inputs) == 0 {
		return validationError("Recipe must have at least one input material")
	}

	outputUnit := recipe.ExpectedOutput.Unit
	for i, input := range recipe.Inputs {
		line := i + 1
		if input.ProductId == 0 {
			return validationError("Input material #%d missing product", line)
		}
		if !input.Qty.IsPositive() {
			return validationError("Input quantity must be > 0 (material #%d)", line)
		}
		if strings.TrimSpace(input.Unit) == "" {
			return validationError("Input unit missing for material #%d", line)
		}
		compatible, err := AreUnitsCompatible(input.Unit, outputUnit)
		if err != nil {
			return err
		}
		if !compatible {
			return validationError("Unit mismatch: %s cannot produce %s (material #%d)", input.Unit, outputUnit, line)
		}
	}

	if recipe.ProcessLossPercent.IsNegative() || recipe.ProcessLossPercent.GreaterThanOrEqual(maxProcessLossPercent) {
		return validationError("Process loss percent must be between 0 and 99")
	}

	for i, bp := range recipe.ByProducts {
		line := i + 1
		if bp.ProductId == 0 {
			return validationError("By-product #%d missing product", line)
		}
		if !bp.Qty.IsPositive() {
			return validationError("By-product quantity must be > 0 (#%d)", line)
		}
		if strings.TrimSpace(bp.Unit) == "" {
			return validationError("By-product unit missing (#%d)", line)
		}
		compatible, err := AreUnitsCompatible(bp.Unit, outputUnit)
		if err != nil {
			return err
		}
		if !compatible {
			return validationError("By-product unit incompatible with output (#%d)", line)
		}
	}
	return nil
}

// ValidateRecipeProducts checks recipe references against product master data.
// It is skipped when no master data is loaded.
func ValidateRecipeProducts(recipe *Recipe, products []Product) error {
	if recipe == nil || len(products) == 0 {
		return nil
	}
	output, ok := FindProduct(products, recipe.OutputProductId)
	if !ok {
		return validationError("Output product %d does not exist", recipe.OutputProductId)
	}
	if output.Type != ProductTypeFinished {
		return validationError("Output product %s must be a finished product", output.Name)
	}
	for i, input := range recipe.Inputs {
		if _, ok := FindProduct(products, input.ProductId); !ok {
			return validationError("Input material #%d references unknown product %d", i+1, input.ProductId)
		}
	}
	for i, bp := range recipe.ByProducts {
		if _, ok := FindProduct(products, bp.ProductId); !ok {
			return validationError("By-product #%d references unknown product %d", i+1, bp.ProductId)
		}
	}
	return nil
}

func ValidateProductionRequest(recipe *Recipe, batchMultiplier decimal.Decimal) error {
	if recipe == nil {
		return newEngineError(ErrorKindMissingRecipe, "Recipe not selected")
	}
	if !batchMultiplier.IsPositive() {
		return newEngineError(ErrorKindInvalidBatchSize, "Batch quantity must be greater than zero")
	}
	return nil
}

// MassBalance holds base-unit totals of one transformation.
type MassBalance struct {
	TotalInputQty     decimal.Decimal `json:"totalInputQty"`
	TotalOutputQty    decimal.Decimal `json:"totalOutputQty"`
	TotalByProductQty decimal.Decimal `json:"totalByProductQty"`
	ProcessLossQty    decimal.Decimal `json:"processLossQty"`
	Dimension         Dimension       `json:"dimension"`
}

// ValidateMassBalance rejects any transformation whose outputs plus explicit loss exceed its inputs.
func ValidateMassBalance(mb MassBalance) error {
	calculated := mb.TotalOutputQty.Add(mb.TotalByProductQty).Add(mb.ProcessLossQty)
	if calculated.GreaterThan(mb.TotalInputQty) {
		return newEngineError(ErrorKindMassBalanceViolation,
			"Invalid mass balance: inputs %s, outputs + loss %s", mb.TotalInputQty.String(), calculated.String())
	}
	return nil
}

// MassBalanceForPlan totals a calculated plan: net output, by-products and process loss against inputs.
func MassBalanceForPlan(plan *ProductionPlan) (MassBalance, error) {
	acc := newBalanceAccumulator(plan.Output.Unit)
	if acc.err != nil {
		return MassBalance{}, acc.err
	}
	for _, input := range plan.Inputs {
		acc.add(&acc.mb.TotalInputQty, input.RequiredQty, input.Unit)
	}
	acc.add(&acc.mb.TotalOutputQty, plan.Output.ActualQty, plan.Output.Unit)
	for _, bp := range plan.ByProducts {
		acc.add(&acc.mb.TotalByProductQty, bp.Qty, bp.Unit)
	}
	acc.add(&acc.mb.ProcessLossQty, plan.ProcessLoss.Qty, plan.Output.Unit)
	return acc.mb, acc.err
}

// MassBalanceForCompletion totals a batch as it will be posted: actual output and actual loss.
func MassBalanceForCompletion(batch *ProductionBatch, actualOutput decimal.Decimal) (MassBalance, error) {
	acc := newBalanceAccumulator(batch.PlannedOutput.Unit)
	if acc.err != nil {
		return MassBalance{}, acc.err
	}
	for _, input := range batch.PlannedInputs {
		acc.add(&acc.mb.TotalInputQty, input.PlannedQty, input.Unit)
	}
	acc.add(&acc.mb.TotalOutputQty, actualOutput, batch.PlannedOutput.Unit)
	for _, bp := range batch.PlannedByProducts {
		acc.add(&acc.mb.TotalByProductQty, bp.PlannedQty, bp.Unit)
	}
	acc.add(&acc.mb.ProcessLossQty, ActualLoss(batch.PlannedOutput.Qty, actualOutput), batch.PlannedOutput.Unit)
	return acc.mb, acc.err
}

// balanceAccumulator sums quantities in the output's base unit and stops at the first error.
type balanceAccumulator struct {
	mb  MassBalance
	err error
}

func newBalanceAccumulator(outputUnit string) *balanceAccumulator {
	acc := &balanceAccumulator{}
	acc.mb.Dimension, acc.err = GetUnitDimension(outputUnit)
	return acc
}

func (a *balanceAccumulator) add(total *decimal.Decimal, qty decimal.Decimal, unit string) {
	if a.err != nil {
		return
	}
	base, err := ToBaseUnit(qty, unit)
	if err != nil {
		a.err = err
		return
	}
	if base.Dimension != a.mb.Dimension {
		a.err = newEngineError(ErrorKindIncompatibleDimension, "Cannot balance %s against %s", base.Dimension, a.mb.Dimension)
		return
	}
	*total = total.Add(base.Qty)
}

// ActualLoss is planned minus actual output, never negative.
func ActualLoss(plannedOutput decimal.Decimal, actualOutput decimal.Decimal) decimal.Decimal {
	loss := RoundQty(plannedOutput.Sub(actualOutput))
	if loss.IsNegative() {
		return decimal.Zero
	}
	return loss
}

func ValidateCompletion(batch *ProductionBatch, data CompletionData) error {
	if !data.Output.IsPositive() {
		return validationError("Actual output must be greater than zero (batch %d)", batch.ID)
	}
	return nil
}

func ValidateStockMovements(movements []StockMovement) error {
	for i, m := range movements {
		line := i + 1
		if m.ProductId == 0 {
			return validationError("Stock movement #%d missing product", line)
		}
		if strings.TrimSpace(m.Unit) == "" {
			return validationError("Stock movement #%d missing unit", line)
		}
		if m.Type == "" {
			return validationError("Stock movement #%d missing type", line)
		}
		if !m.Type.IsValid() {
			return validationError("Stock movement #%d has unknown type %s", line, m.Type)
		}
		if m.Qty.IsZero() {
			return validationError("Stock movement #%d has invalid quantity", line)
		}
		if m.Type.IsOutflow() && m.Qty.IsPositive() {
			return validationError("Stock movement #%d: %s quantity must be negative", line, m.Type)
		}
		if !m.Type.IsOutflow() && m.Qty.IsNegative() {
			return validationError("Stock movement #%d: %s quantity must be positive", line, m.Type)
		}
		if !IsSupportedUnit(m.Unit) {
			return newEngineError(ErrorKindUnsupportedUnit, "Stock movement #%d has unsupported unit %s", line, m.Unit)
		}
	}
	return nil
}

// ValidateLedgerEntry gates manual postings: a valid movement with a reference.
func ValidateLedgerEntry(entry StockLedgerEntry) error {
	if err := ValidateStockMovements([]StockMovement{entry.Movement()}); err != nil {
		return err
	}
	if strings.TrimSpace(entry.Reference) == "" {
		return validationError("Stock transaction reference is required")
	}
	return nil
}

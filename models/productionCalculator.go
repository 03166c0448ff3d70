package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type PlanInput struct {
	ProductId   int             `json:"productId"`
	Unit        string          `json:"unit"`
	RequiredQty decimal.Decimal `json:"requiredQty"`
}

type PlanOutput struct {
	ProductId  int             `json:"productId"`
	PlannedQty decimal.Decimal `json:"plannedQty"`
	ActualQty  decimal.Decimal `json:"actualQty"`
	Unit       string          `json:"unit"`
}

type PlanByProduct struct {
	ProductId int             `json:"productId"`
	Unit      string          `json:"unit"`
	Qty       decimal.Decimal `json:"qty"`
}

type PlanProcessLoss struct {
	Qty     decimal.Decimal `json:"qty"`
	Percent decimal.Decimal `json:"percent"`
}

// ProductionPlan is the calculated result of running a recipe at a batch multiplier.
type ProductionPlan struct {
	RecipeId        int             `json:"recipeId"`
	BatchMultiplier decimal.Decimal `json:"batchMultiplier"`
	Inputs          []PlanInput     `json:"inputs"`
	Output          PlanOutput      `json:"output"`
	ByProducts      []PlanByProduct `json:"byProducts"`
	ProcessLoss     PlanProcessLoss `json:"processLoss"`
	StockMovements  []StockMovement `json:"stockMovements"`
	MassBalance     *MassBalance    `json:"massBalance,omitempty"`
	Recipe          *RecipeSummary  `json:"recipe,omitempty"`
}

type RecipeSummary struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func scaleQty(qty decimal.Decimal, factor decimal.Decimal) decimal.Decimal {
	return RoundQty(qty.Mul(factor))
}

// CalculateProduction is pure: the same recipe and multiplier always give the same plan.
func CalculateProduction(recipe *Recipe, batchMultiplier decimal.Decimal) (*ProductionPlan, error) {
	if recipe == nil {
		return nil, newEngineError(ErrorKindMissingRecipe, "Recipe missing")
	}
	if !batchMultiplier.IsPositive() {
		return nil, newEngineError(ErrorKindInvalidBatchSize, "Invalid batch size: %s", batchMultiplier.String())
	}

	inputs := make([]PlanInput, 0, len(recipe.Inputs))
	for _, i := range recipe.Inputs {
		inputs = append(inputs, PlanInput{
			ProductId:   i.ProductId,
			Unit:        i.Unit,
			RequiredQty: scaleQty(i.Qty, batchMultiplier),
		})
	}

	plannedOutput := scaleQty(recipe.ExpectedOutput.Qty, batchMultiplier)
	processLossQty := decimal.Zero
	if !recipe.ProcessLossPercent.IsZero() {
		processLossQty = RoundQty(plannedOutput.Mul(recipe.ProcessLossPercent).Div(hundred))
	}
	actualOutput := RoundQty(plannedOutput.Sub(processLossQty))
	if !actualOutput.IsPositive() {
		return nil, newEngineError(ErrorKindLossExceedsOutput, "Production loss exceeds output")
	}

	byProducts := make([]PlanByProduct, 0, len(recipe.ByProducts))
	for _, bp := range recipe.ByProducts {
		byProducts = append(byProducts, PlanByProduct{
			ProductId: bp.ProductId,
			Unit:      bp.Unit,
			Qty:       scaleQty(bp.Qty, batchMultiplier),
		})
	}

	movements := make([]StockMovement, 0, len(inputs)+len(byProducts)+2)
	for _, i := range inputs {
		movements = append(movements, StockMovement{
			ProductId: i.ProductId,
			Qty:       i.RequiredQty.Neg(),
			Unit:      i.Unit,
			Type:      StockEntryTypeRawConsumption,
		})
	}
	movements = append(movements, StockMovement{
		ProductId: recipe.OutputProductId,
		Qty:       actualOutput,
		Unit:      recipe.ExpectedOutput.Unit,
		Type:      StockEntryTypeFgReceipt,
	})
	for _, bp := range byProducts {
		movements = append(movements, StockMovement{
			ProductId: bp.ProductId,
			Qty:       bp.Qty,
			Unit:      bp.Unit,
			Type:      StockEntryTypeByProductReceipt,
		})
	}
	if processLossQty.IsPositive() {
		movements = append(movements, StockMovement{
			ProductId: recipe.OutputProductId,
			Qty:       processLossQty.Neg(),
			Unit:      recipe.ExpectedOutput.Unit,
			Type:      StockEntryTypeProcessLoss,
		})
	}

	return &ProductionPlan{
		RecipeId:        recipe.ID,
		BatchMultiplier: batchMultiplier,
		Inputs:          inputs,
		Output: PlanOutput{
			ProductId:  recipe.OutputProductId,
			PlannedQty: plannedOutput,
			ActualQty:  actualOutput,
			Unit:       recipe.ExpectedOutput.Unit,
		},
		ByProducts: byProducts,
		ProcessLoss: PlanProcessLoss{
			Qty:     processLossQty,
			Percent: recipe.ProcessLossPercent,
		},
		StockMovements: movements,
		Recipe:         &RecipeSummary{Name: recipe.Name, Version: recipe.Version},
	}, nil
}

// PlanProduction is CalculateProduction behind the request, movement and mass balance gates.
// The returned plan carries its mass balance.
func PlanProduction(recipe *Recipe, batchMultiplier decimal.Decimal) (*ProductionPlan, error) {
	if err := ValidateProductionRequest(recipe, batchMultiplier); err != nil {
		return nil, err
	}
	plan, err := CalculateProduction(recipe, batchMultiplier)
	if err != nil {
		return nil, err
	}
	if err := ValidateStockMovements(plan.StockMovements); err != nil {
		return nil, err
	}
	mb, err := MassBalanceForPlan(plan)
	if err != nil {
		return nil, err
	}
	if err := ValidateMassBalance(mb); err != nil {
		return nil, err
	}
	plan.MassBalance = &mb
	return plan, nil
}

// NewProductionBatchFromPlan snapshots a plan into a PLANNED batch. Later recipe edits do not touch it.
func NewProductionBatchFromPlan(id int, plan *ProductionPlan, remarks string, createdAt time.Time) ProductionBatch {
	inputs := make([]PlannedLine, 0, len(plan.Inputs))
	for _, i := range plan.Inputs {
		inputs = append(inputs, PlannedLine{ProductId: i.ProductId, PlannedQty: i.RequiredQty, Unit: i.Unit})
	}
	byProducts := make([]PlannedLine, 0, len(plan.ByProducts))
	for _, bp := range plan.ByProducts {
		byProducts = append(byProducts, PlannedLine{ProductId: bp.ProductId, PlannedQty: bp.Qty, Unit: bp.Unit})
	}
	return ProductionBatch{
		ID:              id,
		RecipeId:        plan.RecipeId,
		BatchMultiplier: plan.BatchMultiplier,
		PlannedOutput: PlannedOutput{
			ProductId: plan.Output.ProductId,
			Qty:       plan.Output.PlannedQty,
			Unit:      plan.Output.Unit,
		},
		PlannedInputs:     inputs,
		PlannedByProducts: byProducts,
		PlannedLoss:       plan.ProcessLoss.Qty,
		Status:            ProductionStatusPlanned,
		Timestamps:        ProductionTimestamps{CreatedAt: createdAt.UTC()},
		Remarks:           remarks,
	}
}

// CompletionMovements are the postings of a completed batch: planned inputs consumed, actual output received,
// planned by-products received, and the shortfall against planned output as loss.
func CompletionMovements(batch *ProductionBatch, actualOutput decimal.Decimal) []StockMovement {
	movements := make([]StockMovement, 0, len(batch.PlannedInputs)+len(batch.PlannedByProducts)+2)
	for _, i := range batch.PlannedInputs {
		movements = append(movements, StockMovement{
			ProductId: i.ProductId,
			Qty:       i.PlannedQty.Neg(),
			Unit:      i.Unit,
			Type:      StockEntryTypeRawConsumption,
		})
	}
	movements = append(movements, StockMovement{
		ProductId: batch.PlannedOutput.ProductId,
		Qty:       RoundQty(actualOutput),
		Unit:      batch.PlannedOutput.Unit,
		Type:      StockEntryTypeFgReceipt,
	})
	for _, bp := range batch.PlannedByProducts {
		movements = append(movements, StockMovement{
			ProductId: bp.ProductId,
			Qty:       bp.PlannedQty,
			Unit:      bp.Unit,
			Type:      StockEntryTypeByProductReceipt,
		})
	}
	if loss := ActualLoss(batch.PlannedOutput.Qty, actualOutput); loss.IsPositive() {
		movements = append(movements, StockMovement{
			ProductId: batch.PlannedOutput.ProductId,
			Qty:       loss.Neg(),
			Unit:      batch.PlannedOutput.Unit,
			Type:      StockEntryTypeProcessLoss,
		})
	}
	return movements
}

package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionInitState           ActionType = "INIT_STATE"
	ActionAddRecipe           ActionType = "ADD_RECIPE"
	ActionUpdateRecipe        ActionType = "UPDATE_RECIPE"
	ActionToggleRecipeStatus  ActionType = "TOGGLE_RECIPE_STATUS"
	ActionCreateProduction    ActionType = "CREATE_PRODUCTION"
	ActionStartProduction     ActionType = "START_PRODUCTION"
	ActionHoldProduction      ActionType = "HOLD_PRODUCTION"
	ActionResumeProduction    ActionType = "RESUME_PRODUCTION"
	ActionCompleteProduction  ActionType = "COMPLETE_PRODUCTION"
	ActionExecuteProduction   ActionType = "EXECUTE_PRODUCTION"
	ActionCancelProduction    ActionType = "CANCEL_PRODUCTION"
	ActionAddStockTransaction ActionType = "ADD_STOCK_TRANSACTION"
	ActionUpdateStockBalances ActionType = "UPDATE_STOCK_BALANCES"
	ActionSetError            ActionType = "SET_ERROR"
	ActionClearError          ActionType = "CLEAR_ERROR"
)

type Action interface {
	ActionType() ActionType
}

type InitState struct {
	State *ManufacturingState
}

type AddRecipe struct {
	Recipe Recipe
	// CheckProducts validates references against product master data.
	CheckProducts bool
}

type UpdateRecipe struct {
	Id            int
	Patch         RecipePatch
	CheckProducts bool
}

type ToggleRecipeStatus struct {
	Id int
}

// CreateProduction registers a PLANNED batch. The planned quantities are recalculated from the recipe,
// so a stale or hand-edited plan cannot be stored.
type CreateProduction struct {
	Production ProductionBatch
}

type StartProduction struct {
	Id int
	At time.Time
}

type HoldProduction struct {
	Id     int
	At     time.Time
	Reason string
}

type ResumeProduction struct {
	Id int
	At time.Time
}

type CompleteProduction struct {
	Id            int
	Data          CompletionData
	At            time.Time
	CorrelationId string
}

// ExecuteProduction starts a PLANNED batch and completes it in the same transition.
type ExecuteProduction struct {
	Id            int
	Data          CompletionData
	At            time.Time
	CorrelationId string
}

type CancelProduction struct {
	Id     int
	Reason string
	At     time.Time
}

type AddStockTransaction struct {
	Entry StockLedgerEntry
}

// UpdateStockBalances recomputes the balance cache from the ledger.
type UpdateStockBalances struct{}

type SetError struct {
	Err *EngineError
}

type ClearError struct{}

func (InitState) ActionType() ActionType { return ActionInitState }
func (AddRecipe) ActionType() ActionType { return ActionAddRecipe }
func (UpdateRecipe) ActionType() ActionType { return ActionUpdateRecipe }
func (ToggleRecipeStatus) ActionType() ActionType { return ActionToggleRecipeStatus }
func (CreateProduction) ActionType() ActionType { return ActionCreateProduction }
func (StartProduction) ActionType() ActionType { return ActionStartProduction }
func (HoldProduction) ActionType() ActionType { return ActionHoldProduction }
func (ResumeProduction) ActionType() ActionType { return ActionResumeProduction }
func (CompleteProduction) ActionType() ActionType { return ActionCompleteProduction }
func (ExecuteProduction) ActionType() ActionType { return ActionExecuteProduction }
func (CancelProduction) ActionType() ActionType { return ActionCancelProduction }
func (AddStockTransaction) ActionType() ActionType { return ActionAddStockTransaction }
func (UpdateStockBalances) ActionType() ActionType { return ActionUpdateStockBalances }
func (SetError) ActionType() ActionType { return ActionSetError }
func (ClearError) ActionType() ActionType { return ActionClearError }

// Reduce applies one action and returns the next state. The input state is never modified;
// on error the returned state is nil and the caller keeps the previous one.
func Reduce(state *ManufacturingState, action Action) (*ManufacturingState, error) {
	if state == nil {
		state = NewManufacturingState()
	}
	switch a := action.(type) {
	case InitState:
		if a.State == nil {
			return NewManufacturingState(), nil
		}
		return a.State.normalized(), nil
	case AddRecipe:
		return reduceAddRecipe(state, a)
	case UpdateRecipe:
		return reduceUpdateRecipe(state, a)
	case ToggleRecipeStatus:
		recipe, ok := state.Recipe(a.Id)
		if !ok {
			return nil, notFoundError("Recipe", a.Id)
		}
		recipe.IsActive = !recipe.IsActive
		return state.withRecipe(recipe), nil
	case CreateProduction:
		return reduceCreateProduction(state, a)
	case StartProduction:
		return transition(state, a.Id, ProductionStatusPlanned, func(p *ProductionBatch) error {
			p.Status = ProductionStatusInProgress
			p.Timestamps.StartedAt = timePtr(a.At)
			return nil
		})
	case HoldProduction:
		return transition(state, a.Id, ProductionStatusInProgress, func(p *ProductionBatch) error {
			p.Status = ProductionStatusOnHold
			p.Timestamps.HeldAt = timePtr(a.At)
			if a.Reason != "" {
				p.Audit = &ProductionAudit{Notes: a.Reason}
			}
			return nil
		})
	case ResumeProduction:
		return transition(state, a.Id, ProductionStatusOnHold, func(p *ProductionBatch) error {
			p.Status = ProductionStatusInProgress
			p.Timestamps.ResumedAt = timePtr(a.At)
			return nil
		})
	case CompleteProduction:
		return reduceCompleteProduction(state, a.Id, a.Data, a.At, a.CorrelationId, false)
	case ExecuteProduction:
		return reduceCompleteProduction(state, a.Id, a.Data, a.At, a.CorrelationId, true)
	case CancelProduction:
		return transition(state, a.Id, ProductionStatusPlanned, func(p *ProductionBatch) error {
			p.Status = ProductionStatusCancelled
			p.Timestamps.CancelledAt = timePtr(a.At)
			p.Audit = &ProductionAudit{Notes: a.Reason}
			return nil
		})
	case AddStockTransaction:
		return reduceAddStockTransaction(state, a)
	case UpdateStockBalances:
		next := state.shallowCopy()
		next.StockBalances = RecalculateStockBalances(state.StockLedger.Entries)
		return next, nil
	case SetError:
		next := state.shallowCopy()
		next.UI.LastError = a.Err
		return next, nil
	case ClearError:
		next := state.shallowCopy()
		next.UI.LastError = nil
		return next, nil
	default:
		return nil, validationError("Unknown action %T", action)
	}
}

// validateRecipeForSave runs every recipe gate: structure, master data and a unit-batch mass balance.
func validateRecipeForSave(state *ManufacturingState, recipe *Recipe, checkProducts bool) error {
	if err := ValidateRecipe(recipe); err != nil {
		return err
	}
	if checkProducts {
		if err := ValidateRecipeProducts(recipe, state.Products); err != nil {
			return err
		}
	}
	plan, err := CalculateProduction(recipe, decimal.NewFromInt(1))
	if err != nil {
		return err
	}
	mb, err := MassBalanceForPlan(plan)
	if err != nil {
		return err
	}
	return ValidateMassBalance(mb)
}

func reduceAddRecipe(state *ManufacturingState, a AddRecipe) (*ManufacturingState, error) {
	recipe := normalizeRecipeUnits(a.Recipe.Clone())
	if recipe.ID <= 0 {
		return nil, validationError("Recipe id is required")
	}
	if _, exists := state.Recipes.ById[recipe.ID]; exists {
		return nil, newEngineError(ErrorKindDuplicateId, "Recipe %d already exists", recipe.ID)
	}
	recipe.Name = strings.TrimSpace(recipe.Name)
	if err := validateRecipeForSave(state, &recipe, a.CheckProducts); err != nil {
		return nil, err
	}
	return state.withRecipe(recipe), nil
}

func reduceUpdateRecipe(state *ManufacturingState, a UpdateRecipe) (*ManufacturingState, error) {
	existing, ok := state.Recipe(a.Id)
	if !ok {
		return nil, notFoundError("Recipe", a.Id)
	}
	merged := normalizeRecipeUnits(existing.Apply(a.Patch))
	merged.ID = existing.ID
	merged.Name = strings.TrimSpace(merged.Name)
	if err := validateRecipeForSave(state, &merged, a.CheckProducts); err != nil {
		return nil, err
	}
	return state.withRecipe(merged), nil
}

func reduceCreateProduction(state *ManufacturingState, a CreateProduction) (*ManufacturingState, error) {
	requested := a.Production
	if requested.ID <= 0 {
		return nil, validationError("Production id is required")
	}
	if _, exists := state.Productions.ById[requested.ID]; exists {
		return nil, newEngineError(ErrorKindDuplicateId, "Production %d already exists", requested.ID)
	}

	var recipe *Recipe
	if r, ok := state.Recipe(requested.RecipeId); ok {
		recipe = &r
	}
	if recipe != nil && !recipe.IsActive {
		return nil, validationError("Recipe %s is inactive", recipe.Name)
	}
	plan, err := PlanProduction(recipe, requested.BatchMultiplier)
	if err != nil {
		return nil, err
	}

	createdAt := requested.Timestamps.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	batch := NewProductionBatchFromPlan(requested.ID, plan, requested.Remarks, createdAt)
	return state.withProduction(batch), nil
}

// transition moves a batch out of the single status it may leave from. Terminal batches never move.
func transition(state *ManufacturingState, id int, from ProductionStatus, apply func(p *ProductionBatch) error) (*ManufacturingState, error) {
	batch, ok := state.Production(id)
	if !ok {
		return nil, notFoundError("Production", id)
	}
	if batch.Status.IsTerminal() {
		return nil, terminalBatchError(batch)
	}
	if batch.Status != from {
		return nil, newEngineError(ErrorKindInvalidTransition, "Production %d is %s, expected %s", id, batch.Status, from)
	}
	if err := apply(&batch); err != nil {
		return nil, err
	}
	return state.withProduction(batch), nil
}

func terminalBatchError(batch ProductionBatch) error {
	return newEngineError(ErrorKindInvalidTransition, "Production %d is %s and can no longer change", batch.ID, batch.Status)
}

// reduceCompleteProduction posts the batch's ledger entries together with the status change.
// With startFirst a PLANNED batch is started in the same step.
func reduceCompleteProduction(state *ManufacturingState, id int, data CompletionData, at time.Time, correlationId string, startFirst bool) (*ManufacturingState, error) {
	batch, ok := state.Production(id)
	if !ok {
		return nil, notFoundError("Production", id)
	}
	if batch.Status.IsTerminal() {
		return nil, terminalBatchError(batch)
	}
	if startFirst && batch.Status == ProductionStatusPlanned {
		batch.Status = ProductionStatusInProgress
		batch.Timestamps.StartedAt = timePtr(at)
	}
	if batch.Status != ProductionStatusInProgress {
		return nil, newEngineError(ErrorKindInvalidTransition, "Production %d is %s, expected %s", id, batch.Status, ProductionStatusInProgress)
	}
	if err := ValidateCompletion(&batch, data); err != nil {
		return nil, err
	}

	actualOutput := RoundQty(data.Output)
	mb, err := MassBalanceForCompletion(&batch, actualOutput)
	if err != nil {
		return nil, err
	}
	if err := ValidateMassBalance(mb); err != nil {
		return nil, err
	}
	movements := CompletionMovements(&batch, actualOutput)
	if err := ValidateStockMovements(movements); err != nil {
		return nil, err
	}

	entries := make([]StockLedgerEntry, 0, len(movements))
	sequence := state.lastSequence()
	for _, m := range movements {
		sequence++
		entry := StockLedgerEntry{
			ID:            uuid.NewString(),
			Sequence:      sequence,
			Type:          m.Type,
			ProductId:     m.ProductId,
			Qty:           m.Qty,
			Unit:          m.Unit,
			Reference:     batch.Reference(),
			PostedAt:      at,
			CorrelationId: correlationId,
		}
		if m.Type == StockEntryTypeProcessLoss {
			entry.Remarks = data.Remarks
		}
		entries = append(entries, entry)
	}

	batch.Status = ProductionStatusCompleted
	batch.Timestamps.CompletedAt = timePtr(at)
	batch.Actuals = &ProductionActuals{
		Output:     actualOutput,
		Loss:       ActualLoss(batch.PlannedOutput.Qty, actualOutput),
		Remarks:    data.Remarks,
		ByProducts: slices.Clone(data.ByProducts),
	}
	return state.withProduction(batch).withEntries(entries), nil
}

func reduceAddStockTransaction(state *ManufacturingState, a AddStockTransaction) (*ManufacturingState, error) {
	entry := a.Entry
	entry.Unit = canonicalUnit(entry.Unit)
	entry.Qty = RoundQty(entry.Qty)
	if err := ValidateLedgerEntry(entry); err != nil {
		return nil, err
	}
	if _, isProduction := ParseProductionReference(entry.Reference); isProduction {
		return nil, validationError("Reference %s is reserved for production postings", entry.Reference)
	}
	entry.Sequence = state.lastSequence() + 1
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = time.Now()
	}
	return state.withEntries([]StockLedgerEntry{entry}), nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const moduleName = "productionController.go"

// a conflicting save is retried against the fresh snapshot this many times in total
const maxCommitAttempts = 3

var tracer = otel.Tracer("manufacturing-engine")

type committedState struct {
	state   *models.ManufacturingState
	version int64
}

type ControllerOptions struct {
	StateKey   string
	Repository models.SnapshotRepository
	Publisher  EventPublisher
	// Locker is the cross-instance posting lock; nil when only one instance writes the state key.
	Locker              *redislock.Client
	Logger              *logrus.Logger
	StrictProductMaster bool
	SeedDemoData        bool
	Now                 func() time.Time
}

// ProductionController is the single writer of one manufacturing state.
// Readers get the last committed snapshot and never see a transition in progress.
type ProductionController struct {
	mu        sync.Mutex
	committed atomic.Pointer[committedState]

	stateKey  string
	repo      models.SnapshotRepository
	publisher EventPublisher
	locker    *redislock.Client
	logger    *logrus.Logger
	strict    bool
	seed      bool
	now       func() time.Time
}

type transitionFunc func(state *models.ManufacturingState) (models.Action, error)

func NewProductionController(opts ControllerOptions) *ProductionController {
	if opts.StateKey == "" {
		opts.StateKey = config.DefaultStateKey
	}
	if opts.Repository == nil {
		opts.Repository = models.NewMemorySnapshotRepository()
	}
	if opts.Publisher == nil {
		opts.Publisher = NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &ProductionController{
		stateKey:  opts.StateKey,
		repo:      opts.Repository,
		publisher: opts.Publisher,
		locker:    opts.Locker,
		logger:    opts.Logger,
		strict:    opts.StrictProductMaster,
		seed:      opts.SeedDemoData,
		now:       opts.Now,
	}
	c.committed.Store(&committedState{state: models.NewManufacturingState()})
	return c
}

// Load reads the snapshot of the state key. A key with no snapshot is initialized, with the demo data when seeding is on.
func (c *ProductionController) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "mfg.state.load", trace.WithAttributes(attribute.String("state.key", c.stateKey)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.refresh(ctx)
	if err == nil || !errors.Is(err, models.ErrSnapshotMissing) {
		return err
	}

	initial := models.NewManufacturingState()
	if c.seed {
		if initial, err = models.DefaultManufacturingState(); err != nil {
			config.LogError(c.logger, moduleName, "Load", "Building demo state", nil, err)
			return err
		}
	}
	version, err := c.repo.Save(ctx, c.stateKey, 0, initial, initial.StockLedger.Entries)
	if errors.Is(err, models.ErrSnapshotConflict) {
		// initialized by another instance in the meantime
		return c.refresh(ctx)
	}
	if err != nil {
		config.LogError(c.logger, moduleName, "Load", "Saving initial snapshot", c.stateKey, err)
		return err
	}
	c.committed.Store(&committedState{state: initial, version: version})
	config.LogEvent(c.logger, moduleName, "mfg.state.initialized", logrus.Fields{
		"stateKey": c.stateKey,
		"seeded":   c.seed,
		"recipes":  len(initial.Recipes.AllIds),
	})
	return nil
}

func (c *ProductionController) refresh(ctx context.Context) error {
	snapshot, err := c.repo.Load(ctx, c.stateKey)
	if err != nil {
		return err
	}
	c.committed.Store(&committedState{state: snapshot.State, version: snapshot.Version})
	return nil
}

// State is the committed snapshot. It is shared; callers must not modify it.
func (c *ProductionController) State() *models.ManufacturingState {
	return c.committed.Load().state
}

func (c *ProductionController) Version() int64 {
	return c.committed.Load().version
}

func (c *ProductionController) Recipes() []models.Recipe {
	return c.State().RecipeList()
}

func (c *ProductionController) Recipe(id int) (models.Recipe, error) {
	recipe, ok := c.State().Recipe(id)
	if !ok {
		return models.Recipe{}, models.NewEngineError(models.ErrorKindNotFound, fmt.Sprintf("Recipe %d not found", id))
	}
	return recipe, nil
}

func (c *ProductionController) Productions() []models.ProductionBatch {
	return c.State().ProductionList()
}

func (c *ProductionController) Production(id int) (models.ProductionBatch, error) {
	batch, ok := c.State().Production(id)
	if !ok {
		return models.ProductionBatch{}, models.NewEngineError(models.ErrorKindNotFound, fmt.Sprintf("Production %d not found", id))
	}
	return batch, nil
}

func (c *ProductionController) Ledger(filter models.LedgerFilter) []models.StockLedgerEntry {
	return models.FilterLedger(c.State().StockLedger.Entries, filter)
}

func (c *ProductionController) Balances() models.StockBalances {
	return c.State().StockBalances.Clone()
}

// Integrity lists ledger problems of the committed state; empty means consistent.
func (c *ProductionController) Integrity() []string {
	return models.VerifyLedgerIntegrity(c.State())
}

// PreviewPlan calculates a plan for the recipe without creating a batch.
func (c *ProductionController) PreviewPlan(ctx context.Context, recipeId int, batchMultiplier decimal.Decimal) (*models.ProductionPlan, error) {
	_, span := tracer.Start(ctx, "mfg.production.preview", trace.WithAttributes(attribute.Int("recipe.id", recipeId)))
	defer span.End()

	var recipe *models.Recipe
	if r, ok := c.State().Recipe(recipeId); ok {
		recipe = &r
	}
	plan, err := models.PlanProduction(recipe, batchMultiplier)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return plan, nil
}

// AddRecipe registers a recipe. A zero id is replaced by the next free one.
func (c *ProductionController) AddRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error) {
	ctx, span := tracer.Start(ctx, "mfg.recipe.add")
	defer span.End()

	var id int
	_, next, err := c.commit(ctx, "recipe.add", func(state *models.ManufacturingState) (models.Action, error) {
		r := recipe.Clone()
		if r.ID == 0 {
			r.ID = state.NextRecipeId()
		}
		id = r.ID
		return models.AddRecipe{Recipe: r, CheckProducts: c.strict}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.Recipe{}, err
	}
	saved, _ := next.Recipe(id)
	c.logRecipe(ctx, "mfg.recipe.add", saved)
	return saved, nil
}

func (c *ProductionController) UpdateRecipe(ctx context.Context, id int, patch models.RecipePatch) (models.Recipe, error) {
	ctx, span := tracer.Start(ctx, "mfg.recipe.update", trace.WithAttributes(attribute.Int("recipe.id", id)))
	defer span.End()

	_, next, err := c.commit(ctx, "recipe.update", func(*models.ManufacturingState) (models.Action, error) {
		return models.UpdateRecipe{Id: id, Patch: patch, CheckProducts: c.strict}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.Recipe{}, err
	}
	saved, _ := next.Recipe(id)
	c.logRecipe(ctx, "mfg.recipe.update", saved)
	return saved, nil
}

func (c *ProductionController) ToggleRecipeStatus(ctx context.Context, id int) (models.Recipe, error) {
	ctx, span := tracer.Start(ctx, "mfg.recipe.toggle", trace.WithAttributes(attribute.Int("recipe.id", id)))
	defer span.End()

	_, next, err := c.commit(ctx, "recipe.toggle", func(*models.ManufacturingState) (models.Action, error) {
		return models.ToggleRecipeStatus{Id: id}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.Recipe{}, err
	}
	saved, _ := next.Recipe(id)
	c.logRecipe(ctx, "mfg.recipe.toggle", saved)
	return saved, nil
}

// PlanProduction calculates the plan for a recipe run and stores it as a new PLANNED batch.
func (c *ProductionController) PlanProduction(ctx context.Context, recipeId int, batchMultiplier decimal.Decimal, remarks string) (models.ProductionBatch, error) {
	ctx, span := tracer.Start(ctx, "mfg.production.plan", trace.WithAttributes(attribute.Int("recipe.id", recipeId)))
	defer span.End()

	at := c.now()
	correlationId := utils.CorrelationIdOrNew(ctx)
	var id int
	_, next, err := c.commit(ctx, "production.plan", func(state *models.ManufacturingState) (models.Action, error) {
		id = state.NextProductionId()
		return models.CreateProduction{Production: models.ProductionBatch{
			ID:              id,
			RecipeId:        recipeId,
			BatchMultiplier: batchMultiplier,
			Remarks:         remarks,
			Timestamps:      models.ProductionTimestamps{CreatedAt: at},
		}}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.ProductionBatch{}, err
	}
	batch, _ := next.Production(id)
	span.SetAttributes(attribute.Int("production.id", id))
	c.afterProductionCommit(ctx, "mfg.production.plan", newProductionEvent(ProductionEventPlanned, batch, nil, at, correlationId))
	return batch, nil
}

func (c *ProductionController) StartProduction(ctx context.Context, id int) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.start", id, ProductionEventStarted, func(at time.Time, _ string) models.Action {
		return models.StartProduction{Id: id, At: at}
	})
}

func (c *ProductionController) HoldProduction(ctx context.Context, id int, reason string) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.hold", id, ProductionEventHeld, func(at time.Time, _ string) models.Action {
		return models.HoldProduction{Id: id, At: at, Reason: reason}
	})
}

func (c *ProductionController) ResumeProduction(ctx context.Context, id int) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.resume", id, ProductionEventResumed, func(at time.Time, _ string) models.Action {
		return models.ResumeProduction{Id: id, At: at}
	})
}

// CompleteProduction closes an IN_PROGRESS batch and posts its ledger entries in the same commit.
func (c *ProductionController) CompleteProduction(ctx context.Context, id int, data models.CompletionData) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.complete", id, ProductionEventCompleted, func(at time.Time, correlationId string) models.Action {
		return models.CompleteProduction{Id: id, Data: data, At: at, CorrelationId: correlationId}
	})
}

// ExecuteProduction starts a PLANNED batch and completes it in one commit.
func (c *ProductionController) ExecuteProduction(ctx context.Context, id int, data models.CompletionData) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.execute", id, ProductionEventCompleted, func(at time.Time, correlationId string) models.Action {
		return models.ExecuteProduction{Id: id, Data: data, At: at, CorrelationId: correlationId}
	})
}

func (c *ProductionController) CancelProduction(ctx context.Context, id int, reason string) (models.ProductionBatch, error) {
	return c.productionCommand(ctx, "production.cancel", id, ProductionEventCancelled, func(at time.Time, _ string) models.Action {
		return models.CancelProduction{Id: id, Reason: reason, At: at}
	})
}

// AddStockTransaction appends a manual ledger entry such as an opening balance or a count adjustment.
func (c *ProductionController) AddStockTransaction(ctx context.Context, entry models.StockLedgerEntry) (models.StockLedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "mfg.ledger.add", trace.WithAttributes(attribute.Int("product.id", entry.ProductId)))
	defer span.End()

	if entry.CorrelationId == "" {
		entry.CorrelationId = utils.CorrelationIdOrNew(ctx)
	}
	if entry.PostedAt.IsZero() {
		entry.PostedAt = c.now()
	}
	_, next, err := c.commit(ctx, "ledger.add", func(*models.ManufacturingState) (models.Action, error) {
		return models.AddStockTransaction{Entry: entry}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.StockLedgerEntry{}, err
	}
	entries := next.StockLedger.Entries
	posted := entries[len(entries)-1]
	config.LogEvent(c.logger, moduleName, "mfg.ledger.add", logrus.Fields{
		"stateKey":      c.stateKey,
		"sequence":      posted.Sequence,
		"type":          posted.Type,
		"productId":     posted.ProductId,
		"qty":           posted.Qty.String(),
		"unit":          posted.Unit,
		"reference":     posted.Reference,
		"correlationId": posted.CorrelationId,
	})
	return posted, nil
}

// RebuildStockBalances recomputes the balance cache from the ledger and commits it.
func (c *ProductionController) RebuildStockBalances(ctx context.Context) (models.StockBalances, error) {
	ctx, span := tracer.Start(ctx, "mfg.balances.rebuild")
	defer span.End()

	prev, next, err := c.commit(ctx, "balances.rebuild", func(*models.ManufacturingState) (models.Action, error) {
		return models.UpdateStockBalances{}, nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	config.LogEvent(c.logger, moduleName, "mfg.balances.rebuild", logrus.Fields{
		"stateKey": c.stateKey,
		"entries":  len(next.StockLedger.Entries),
		"drifted":  !prev.StockBalances.Equal(next.StockBalances),
	})
	return next.StockBalances.Clone(), nil
}

func (c *ProductionController) Close() error {
	return c.publisher.Close()
}

func (c *ProductionController) productionCommand(ctx context.Context, command string, id int, eventType ProductionEventType, action func(at time.Time, correlationId string) models.Action) (models.ProductionBatch, error) {
	ctx, span := tracer.Start(ctx, "mfg."+command, trace.WithAttributes(attribute.Int("production.id", id)))
	defer span.End()

	at := c.now()
	correlationId := utils.CorrelationIdOrNew(ctx)
	_, next, err := c.commit(ctx, command, func(*models.ManufacturingState) (models.Action, error) {
		return action(at, correlationId), nil
	})
	if err != nil {
		recordSpanError(span, err)
		return models.ProductionBatch{}, err
	}
	batch, _ := next.Production(id)
	var entries []models.StockLedgerEntry
	if eventType == ProductionEventCompleted {
		entries = next.EntriesForProduction(id)
	}
	c.afterProductionCommit(ctx, "mfg."+command, newProductionEvent(eventType, batch, entries, at, correlationId))
	return batch, nil
}

// commit runs one transition: reduce, save with the expected version, then swap the committed pointer.
// Nothing in memory changes when the save fails.
func (c *ProductionController) commit(ctx context.Context, command string, build transitionFunc) (*models.ManufacturingState, *models.ManufacturingState, error) {
	release, err := AcquireStatePostingLock(ctx, c.locker, c.stateKey)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 1; ; attempt++ {
		current := c.committed.Load()
		action, err := build(current.state)
		if err != nil {
			c.recordError(current, err)
			return nil, nil, err
		}
		next, err := models.Reduce(current.state, action)
		if err != nil {
			c.recordError(current, err)
			return nil, nil, err
		}
		if next.UI.LastError != nil {
			next, _ = models.Reduce(next, models.ClearError{})
		}

		appended := next.StockLedger.Entries[len(current.state.StockLedger.Entries):]
		version, err := c.repo.Save(ctx, c.stateKey, current.version, next, appended)
		if errors.Is(err, models.ErrSnapshotConflict) && attempt < maxCommitAttempts {
			c.logger.WithFields(logrus.Fields{
				"module":   moduleName,
				"command":  command,
				"stateKey": c.stateKey,
				"attempt":  attempt,
			}).Warn("snapshot changed by another writer; retrying on the fresh state")
			if err := c.refresh(ctx); err != nil {
				config.LogError(c.logger, moduleName, command, "Reloading snapshot", c.stateKey, err)
				return nil, nil, err
			}
			continue
		}
		if err != nil {
			config.LogError(c.logger, moduleName, command, "Saving snapshot", c.stateKey, err)
			c.recordError(current, err)
			return nil, nil, err
		}
		c.committed.Store(&committedState{state: next, version: version})
		return current.state, next, nil
	}
}

// recordError keeps the last engine failure in ui.lastError of the in-memory snapshot. It is not saved on its own.
func (c *ProductionController) recordError(current *committedState, err error) {
	var engineErr *models.EngineError
	if !errors.As(err, &engineErr) {
		return
	}
	next, rerr := models.Reduce(current.state, models.SetError{Err: engineErr})
	if rerr != nil {
		return
	}
	c.committed.Store(&committedState{state: next, version: current.version})
}

func (c *ProductionController) afterProductionCommit(ctx context.Context, event string, e ProductionEvent) {
	fields := logrus.Fields{
		"stateKey":      c.stateKey,
		"productionId":  e.ProductionId,
		"recipeId":      e.RecipeId,
		"status":        e.Status,
		"correlationId": e.CorrelationId,
	}
	if len(e.Entries) > 0 {
		fields["entries"] = len(e.Entries)
	}
	if operator, ok := utils.GetOperatorFromContext(ctx); ok {
		fields["operator"] = operator
	}
	config.LogEvent(c.logger, moduleName, event, fields)

	// the transition is committed; a failed publish is only logged
	if err := c.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		config.LogError(c.logger, moduleName, "afterProductionCommit", "Publishing production event", e, err)
	}
}

func (c *ProductionController) logRecipe(ctx context.Context, event string, recipe models.Recipe) {
	fields := logrus.Fields{
		"stateKey": c.stateKey,
		"recipeId": recipe.ID,
		"name":     recipe.Name,
		"isActive": recipe.IsActive,
	}
	if operator, ok := utils.GetOperatorFromContext(ctx); ok {
		fields["operator"] = operator
	}
	config.LogEvent(c.logger, moduleName, event, fields)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

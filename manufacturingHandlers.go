package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models/reports"
	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"bitbucket.org/mmdatafocus/manufacturing_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type createRecipeRequest struct {
	models.Recipe
	// new recipes are active unless the caller says otherwise
	IsActive *bool `json:"isActive"`
}

type planProductionRequest struct {
	RecipeId        int             `json:"recipeId" binding:"required"`
	BatchMultiplier decimal.Decimal `json:"batchMultiplier"`
	Remarks         string          `json:"remarks"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type stockTransactionRequest struct {
	Type      models.StockEntryType `json:"type" binding:"required"`
	ProductId int                   `json:"productId" binding:"required"`
	Qty       decimal.Decimal       `json:"qty"`
	Unit      string                `json:"unit" binding:"required,unit"`
	Reference string                `json:"reference" binding:"required"`
	Remarks   string                `json:"remarks"`
}

type productionView struct {
	models.ProductionBatch
	Yield   *models.YieldReport       `json:"yield,omitempty"`
	Entries []models.StockLedgerEntry `json:"entries"`
}

func registerManufacturingRoutes(rg *gin.RouterGroup, ctrl *workflow.ProductionController) {
	rg.GET("/state", stateHandler(ctrl))
	rg.GET("/units", unitsHandler())

	rg.GET("/recipes", recipeListHandler(ctrl))
	rg.GET("/recipes/:id", recipeHandler(ctrl))
	rg.POST("/recipes", addRecipeHandler(ctrl))
	rg.PATCH("/recipes/:id", updateRecipeHandler(ctrl))
	rg.POST("/recipes/:id/toggle", toggleRecipeHandler(ctrl))
	rg.GET("/recipes/:id/plan", recipePlanHandler(ctrl))

	rg.GET("/productions", productionListHandler(ctrl))
	rg.GET("/productions/:id", productionHandler(ctrl))
	rg.POST("/productions/plan", previewPlanHandler(ctrl))
	rg.POST("/productions", planProductionHandler(ctrl))
	rg.POST("/productions/:id/start", productionIdHandler("startProductionHandler", ctrl.StartProduction))
	rg.POST("/productions/:id/resume", productionIdHandler("resumeProductionHandler", ctrl.ResumeProduction))
	rg.POST("/productions/:id/hold", productionReasonHandler("holdProductionHandler", ctrl.HoldProduction))
	rg.POST("/productions/:id/cancel", productionReasonHandler("cancelProductionHandler", ctrl.CancelProduction))
	rg.POST("/productions/:id/complete", productionCompletionHandler(ctrl, "completeProductionHandler", ctrl.CompleteProduction))
	rg.POST("/productions/:id/execute", productionCompletionHandler(ctrl, "executeProductionHandler", ctrl.ExecuteProduction))

	rg.GET("/ledger", ledgerHandler(ctrl))
	rg.POST("/ledger", addStockTransactionHandler(ctrl))
	rg.GET("/ledger/integrity", integrityHandler(ctrl))
	rg.GET("/ledger/export", ledgerExportHandler(ctrl))
	rg.GET("/reports/stock-summary", stockSummaryHandler(ctrl))
	rg.GET("/summary", dashboardSummaryHandler(ctrl))
	rg.GET("/balances", balancesHandler(ctrl))
	rg.POST("/balances/rebuild", rebuildBalancesHandler(ctrl))
}

func stateHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-State-Version", strconv.FormatInt(ctrl.Version(), 10))
		c.JSON(http.StatusOK, ctrl.State())
	}
}

func unitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.ListUnits())
	}
}

func recipeListHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Recipes())
	}
}

func recipeHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		recipe, err := ctrl.Recipe(id)
		if err != nil {
			respondError(c, "recipeHandler", err)
			return
		}
		c.JSON(http.StatusOK, recipe)
	}
}

func addRecipeHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRecipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		recipe := req.Recipe
		recipe.IsActive = utils.DereferencePtr(req.IsActive, true)
		saved, err := ctrl.AddRecipe(c.Request.Context(), recipe)
		if err != nil {
			respondError(c, "addRecipeHandler", err)
			return
		}
		c.JSON(http.StatusCreated, saved)
	}
}

func updateRecipeHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var patch models.RecipePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondBindError(c, err)
			return
		}
		saved, err := ctrl.UpdateRecipe(c.Request.Context(), id, patch)
		if err != nil {
			respondError(c, "updateRecipeHandler", err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

func toggleRecipeHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		saved, err := ctrl.ToggleRecipeStatus(c.Request.Context(), id)
		if err != nil {
			respondError(c, "toggleRecipeHandler", err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

// recipePlanHandler previews a run of the recipe scaled by ?batchMultiplier (default 1).
func recipePlanHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		multiplier := decimal.NewFromInt(1)
		if raw, set := c.GetQuery("batchMultiplier"); set {
			parsed, err := utils.ParseDecimal(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "batchMultiplier must be a number", "kind": models.ErrorKindValidation})
				return
			}
			multiplier = parsed
		}
		if _, err := ctrl.Recipe(id); err != nil {
			respondError(c, "recipePlanHandler", err)
			return
		}
		plan, err := ctrl.PreviewPlan(c.Request.Context(), id, multiplier)
		if err != nil {
			respondError(c, "recipePlanHandler", err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func productionListHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := ctrl.Productions()
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseProductionStatus(strings.ToUpper(raw))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filtered := make([]models.ProductionBatch, 0, len(list))
			for _, p := range list {
				if p.Status == status {
					filtered = append(filtered, p)
				}
			}
			list = filtered
		}
		c.JSON(http.StatusOK, list)
	}
}

func productionHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		batch, err := ctrl.Production(id)
		if err != nil {
			respondError(c, "productionHandler", err)
			return
		}
		view := productionView{
			ProductionBatch: batch,
			Entries:         ctrl.Ledger(models.LedgerFilter{Reference: batch.Reference()}),
		}
		if report, ok := models.BatchYield(&batch); ok {
			view.Yield = &report
		}
		c.JSON(http.StatusOK, view)
	}
}

func previewPlanHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planProductionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		plan, err := ctrl.PreviewPlan(c.Request.Context(), req.RecipeId, req.BatchMultiplier)
		if err != nil {
			respondError(c, "previewPlanHandler", err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func planProductionHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planProductionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		batch, err := ctrl.PlanProduction(c.Request.Context(), req.RecipeId, req.BatchMultiplier, req.Remarks)
		if err != nil {
			respondError(c, "planProductionHandler", err)
			return
		}
		c.JSON(http.StatusCreated, batch)
	}
}

type productionIdCommand func(ctx context.Context, id int) (models.ProductionBatch, error)

func productionIdHandler(funcName string, command productionIdCommand) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		batch, err := command(c.Request.Context(), id)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

type productionReasonCommand func(ctx context.Context, id int, reason string) (models.ProductionBatch, error)

func productionReasonHandler(funcName string, command productionReasonCommand) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req reasonRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBindError(c, err)
				return
			}
		}
		batch, err := command(c.Request.Context(), id, strings.TrimSpace(req.Reason))
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		c.JSON(http.StatusOK, batch)
	}
}

type productionCompletionCommand func(ctx context.Context, id int, data models.CompletionData) (models.ProductionBatch, error)

func productionCompletionHandler(ctrl *workflow.ProductionController, funcName string, command productionCompletionCommand) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var data models.CompletionData
		if err := c.ShouldBindJSON(&data); err != nil {
			respondBindError(c, err)
			return
		}
		batch, err := command(c.Request.Context(), id, data)
		if err != nil {
			respondError(c, funcName, err)
			return
		}
		view := productionView{
			ProductionBatch: batch,
			Entries:         ctrl.Ledger(models.LedgerFilter{Reference: batch.Reference()}),
		}
		if report, ok := models.BatchYield(&batch); ok {
			view.Yield = &report
		}
		c.JSON(http.StatusOK, view)
	}
}

func ledgerHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.LedgerFilter
		if raw := c.Query("productId"); raw != "" {
			productId, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "productId must be a number"})
				return
			}
			filter.ProductId = &productId
		}
		filter.Reference = c.Query("reference")
		if raw := c.Query("type"); raw != "" {
			entryType, err := models.ParseStockEntryType(strings.ToUpper(raw))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filter.Type = entryType
		}
		c.JSON(http.StatusOK, ctrl.Ledger(filter))
	}
}

func addStockTransactionHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stockTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		entry, err := ctrl.AddStockTransaction(c.Request.Context(), models.StockLedgerEntry{
			Type:      req.Type,
			ProductId: req.ProductId,
			Qty:       req.Qty,
			Unit:      req.Unit,
			Reference: strings.TrimSpace(req.Reference),
			Remarks:   req.Remarks,
		})
		if err != nil {
			respondError(c, "addStockTransactionHandler", err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func integrityHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		problems := ctrl.Integrity()
		c.JSON(http.StatusOK, gin.H{"ok": len(problems) == 0, "problems": problems})
	}
}

func ledgerExportHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := reports.BuildLedgerWorkbook(ctrl.State())
		if err != nil {
			respondError(c, "ledgerExportHandler", err)
			return
		}
		defer f.Close()
		filename := fmt.Sprintf("manufacturing-ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
		c.Header("Content-Type", reports.XlsxContentType())
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "manufacturingHandlers.go", "ledgerExportHandler", "Writing workbook", nil, err)
		}
	}
}

func stockSummaryHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		var from, to time.Time
		for param, target := range map[string]*time.Time{"from": &from, "to": &to} {
			raw := strings.TrimSpace(c.Query(param))
			if raw == "" {
				continue
			}
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be an RFC3339 timestamp"})
				return
			}
			*target = parsed
		}
		c.JSON(http.StatusOK, reports.GetStockSummaryReport(ctrl.State(), from, to))
	}
}

func dashboardSummaryHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reports.GetDashboardSummary(ctrl.State()))
	}
}

func balancesHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ctrl.Balances())
	}
}

func rebuildBalancesHandler(ctrl *workflow.ProductionController) gin.HandlerFunc {
	return func(c *gin.Context) {
		balances, err := ctrl.RebuildStockBalances(c.Request.Context())
		if err != nil {
			respondError(c, "rebuildBalancesHandler", err)
			return
		}
		c.JSON(http.StatusOK, balances)
	}
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive number"})
		return 0, false
	}
	return id, true
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "invalid request",
		"kind":   models.ErrorKindValidation,
		"fields": utils.ProcessValidationErrors(err),
	})
}

// respondError maps engine error kinds to HTTP statuses. Anything else is an infrastructure failure.
func respondError(c *gin.Context, funcName string, err error) {
	var engineErr *models.EngineError
	if !errors.As(err, &engineErr) {
		config.LogError(config.GetLogger(), "manufacturingHandlers.go", funcName, "Engine command failed", c.Request.URL.Path, err)
		status := http.StatusInternalServerError
		if errors.Is(err, utils.ErrorLockNotObtained) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if !engineErr.IsBusinessRule() {
		// unit symbols are checked at binding, so these come from our own callers
		config.LogError(config.GetLogger(), "manufacturingHandlers.go", funcName, "Engine misuse", c.Request.URL.Path, err)
	}
	c.JSON(engineErrorStatus(engineErr), gin.H{"error": engineErr.Message, "kind": engineErr.Kind})
}

func engineErrorStatus(err *models.EngineError) int {
	if !err.IsBusinessRule() {
		return http.StatusInternalServerError
	}
	switch err.Kind {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindInvalidTransition, models.ErrorKindSnapshotConflict:
		return http.StatusConflict
	case models.ErrorKindMassBalanceViolation, models.ErrorKindLossExceedsOutput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

var registerBindingOnce sync.Once

// registerBindingValidations adds the "unit" binding tag: the symbol must be in the unit table.
func registerBindingValidations() {
	registerBindingOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
			return models.IsSupportedUnit(fl.Field().String())
		}); err != nil {
			config.LogError(config.GetLogger(), "manufacturingHandlers.go", "registerBindingValidations", "Registering unit validation", nil, err)
		}
	})
}

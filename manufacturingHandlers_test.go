package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/middlewares"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"bitbucket.org/mmdatafocus/manufacturing_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func newTestRouter(t *testing.T) (*gin.Engine, *workflow.ProductionController) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctrl := workflow.NewProductionController(workflow.ControllerOptions{
		StateKey:     "handler_test",
		Repository:   models.NewMemorySnapshotRepository(),
		Logger:       logger,
		SeedDemoData: true,
		Now:          func() time.Time { return time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC) },
	})
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ready atomic.Bool
	ready.Store(true)
	return newRouter(ctrl, logger, &ready), ctrl
}

func doJSON(t *testing.T, r http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middlewares.CorrelationIdHeader, "test-correlation")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzBeforeReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	var ready atomic.Bool
	r := newRouter(workflow.NewProductionController(workflow.ControllerOptions{Logger: logger}), logger, &ready)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/manufacturing/recipes", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", w.Code)
	}
}

func TestProductionFlowOverHTTP(t *testing.T) {
	r, ctrl := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/manufacturing/productions", map[string]any{
		"recipeId":        1001,
		"batchMultiplier": "2",
		"remarks":         "http",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("plan: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middlewares.CorrelationIdHeader) != "test-correlation" {
		t.Fatalf("expected correlation id to be echoed")
	}
	var planned models.ProductionBatch
	if err := json.Unmarshal(w.Body.Bytes(), &planned); err != nil {
		t.Fatalf("decode planned batch: %v", err)
	}
	if planned.ID != 9002 || !planned.PlannedOutput.Qty.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected planned batch: %+v", planned)
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/productions/9002/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/productions/9002/complete", map[string]any{"output": "300"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-production: expected 422, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/productions/9002/complete", map[string]any{"output": "192", "remarks": "dust"})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var completed struct {
		Status  models.ProductionStatus   `json:"status"`
		Yield   *models.YieldReport       `json:"yield"`
		Entries []models.StockLedgerEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &completed); err != nil {
		t.Fatalf("decode completed batch: %v", err)
	}
	if completed.Status != models.ProductionStatusCompleted || len(completed.Entries) != 7 {
		t.Fatalf("unexpected completion: %s with %d entries", completed.Status, len(completed.Entries))
	}
	if completed.Yield == nil || !completed.Yield.YieldPercent.Equal(decimal.NewFromInt(96)) {
		t.Fatalf("expected 96%% yield, got %+v", completed.Yield)
	}
	if completed.Entries[0].CorrelationId != "test-correlation" {
		t.Fatalf("expected request correlation id on entries, got %q", completed.Entries[0].CorrelationId)
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/productions/9002/cancel", map[string]any{"reason": "late"})
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel completed: expected 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/manufacturing/ledger/integrity", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ok":true`)) {
		t.Fatalf("expected consistent ledger, got %d: %s", w.Code, w.Body.String())
	}
	if ctrl.Version() != 4 {
		t.Fatalf("expected version 4, got %d", ctrl.Version())
	}
}

func TestErrorStatuses(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   any
		status int
	}{
		{http.MethodGet, "/api/manufacturing/recipes/42", nil, http.StatusNotFound},
		{http.MethodGet, "/api/manufacturing/recipes/abc", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/manufacturing/productions/9001/start", nil, http.StatusConflict},
		{http.MethodPost, "/api/manufacturing/productions", map[string]any{"batchMultiplier": "1"}, http.StatusBadRequest},
		{http.MethodPost, "/api/manufacturing/productions", map[string]any{"recipeId": 1001, "batchMultiplier": "0"}, http.StatusBadRequest},
		{http.MethodPost, "/api/manufacturing/ledger", map[string]any{"type": "FG_RECEIPT", "productId": 1, "qty": "5", "unit": "kg", "reference": "PROD-1"}, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/productions?status=unknown", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/reports/stock-summary?from=yesterday", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/nowhere", nil, http.StatusNotFound},
		{http.MethodPost, "/api/manufacturing/ledger", map[string]any{"type": "RAW_CONSUMPTION", "productId": 1, "qty": "5", "unit": "kg", "reference": "ADJ-1"}, http.StatusBadRequest},
		{http.MethodPost, "/api/manufacturing/ledger", map[string]any{"type": "FG_RECEIPT", "productId": 1, "qty": "5", "unit": "bushel", "reference": "ADJ-1"}, http.StatusBadRequest},
		{http.MethodPost, "/api/manufacturing/recipes", map[string]any{
			"name":            "Bushel Blend",
			"outputProductId": 104,
			"expectedOutput":  map[string]any{"qty": "50", "unit": "kg"},
			"inputs":          []map[string]any{{"productId": 9, "qty": "52", "unit": "bushel"}},
		}, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/recipes/1001/plan?batchMultiplier=abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/recipes/1001/plan?batchMultiplier=0", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/manufacturing/recipes/77/plan", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := doJSON(t, r, tc.method, tc.path, tc.body)
		if w.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d: %s", tc.method, tc.path, tc.status, w.Code, w.Body.String())
		}
	}
}

func TestRecipeEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/manufacturing/recipes", map[string]any{
		"name":               "Kaolin Carrier",
		"outputProductId":    104,
		"expectedOutput":     map[string]any{"qty": "50", "unit": "kg"},
		"inputs":             []map[string]any{{"productId": 9, "qty": "52", "unit": "kg"}},
		"processLossPercent": "2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add recipe: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var recipe models.Recipe
	if err := json.Unmarshal(w.Body.Bytes(), &recipe); err != nil {
		t.Fatalf("decode recipe: %v", err)
	}
	if recipe.ID != 1006 || !recipe.IsActive {
		t.Fatalf("expected active recipe 1006, got %+v", recipe)
	}

	w = doJSON(t, r, http.MethodPatch, "/api/manufacturing/recipes/1006", map[string]any{"version": "v2"})
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"version":"v2"`)) {
		t.Fatalf("update recipe: got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/recipes/1006/toggle", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"isActive":false`)) {
		t.Fatalf("toggle recipe: got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/manufacturing/productions", map[string]any{"recipeId": 1006, "batchMultiplier": "1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("plan on inactive recipe: expected 400, got %d", w.Code)
	}
}

func TestLedgerExport(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/manufacturing/ledger/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestEngineErrorStatus(t *testing.T) {
	cases := []struct {
		kind     models.ErrorKind
		business bool
		status   int
	}{
		{models.ErrorKindValidation, true, http.StatusBadRequest},
		{models.ErrorKindMissingRecipe, true, http.StatusBadRequest},
		{models.ErrorKindInvalidBatchSize, true, http.StatusBadRequest},
		{models.ErrorKindNotFound, true, http.StatusNotFound},
		{models.ErrorKindInvalidTransition, true, http.StatusConflict},
		{models.ErrorKindSnapshotConflict, true, http.StatusConflict},
		{models.ErrorKindMassBalanceViolation, true, http.StatusUnprocessableEntity},
		{models.ErrorKindLossExceedsOutput, true, http.StatusUnprocessableEntity},
		{models.ErrorKindUnsupportedUnit, false, http.StatusInternalServerError},
		{models.ErrorKindIncompatibleDimension, false, http.StatusInternalServerError},
		{models.ErrorKindDuplicateId, false, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := models.NewEngineError(tc.kind, "boom")
		if err.IsBusinessRule() != tc.business {
			t.Fatalf("%s: expected business rule %v", tc.kind, tc.business)
		}
		if got := engineErrorStatus(err); got != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.kind, tc.status, got)
		}
	}
}

func TestRecipePlanAndSummary(t *testing.T) {
	r, ctrl := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/manufacturing/recipes/1001/plan?batchMultiplier=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plan: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var plan models.ProductionPlan
	if err := json.Unmarshal(w.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if !plan.Output.PlannedQty.Equal(decimal.NewFromInt(200)) || !plan.ProcessLoss.Qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("unexpected plan output: %+v", plan.Output)
	}

	w = doJSON(t, r, http.MethodGet, "/api/manufacturing/recipes/1001/plan", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if !plan.Output.PlannedQty.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected a single batch by default, got %s", plan.Output.PlannedQty)
	}
	if ctrl.Version() != 1 {
		t.Fatalf("preview must not commit, version %d", ctrl.Version())
	}

	w = doJSON(t, r, http.MethodGet, "/api/manufacturing/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", w.Code)
	}
	var summary struct {
		TotalRecipes     int `json:"totalRecipes"`
		CompletedBatches int `json:"completedBatches"`
		RecentEntries    []struct {
			Sequence    int64  `json:"sequence"`
			ProductName string `json:"productName"`
		} `json:"recentEntries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRecipes != 5 || summary.CompletedBatches != 1 || len(summary.RecentEntries) != 6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.RecentEntries[0].Sequence != 7 || summary.RecentEntries[0].ProductName == "" {
		t.Fatalf("expected the newest entry with its product name, got %+v", summary.RecentEntries[0])
	}
}

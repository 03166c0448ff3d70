package models

import (
	"maps"
	"slices"
)

type RecipeTable struct {
	ById   map[int]Recipe `json:"byId"`
	AllIds []int          `json:"allIds"`
}

type ProductionTable struct {
	ById   map[int]ProductionBatch `json:"byId"`
	AllIds []int                   `json:"allIds"`
}

type StockLedger struct {
	Entries []StockLedgerEntry `json:"entries"`
}

type UIState struct {
	LastError *EngineError `json:"lastError"`
	Loading   bool         `json:"loading"`
}

// ManufacturingState is the aggregate root. Values reachable from a committed state are never mutated;
// every transition builds a new state that shares the untouched parts.
type ManufacturingState struct {
	Recipes       RecipeTable            `json:"recipes"`
	Productions   ProductionTable        `json:"productions"`
	Products      []Product              `json:"products"`
	Units         map[Dimension][]string `json:"units"`
	StockLedger   StockLedger            `json:"stockLedger"`
	StockBalances StockBalances          `json:"stockBalances"`
	UI            UIState                `json:"ui"`
}

func NewManufacturingState() *ManufacturingState {
	return &ManufacturingState{
		Recipes:       RecipeTable{ById: map[int]Recipe{}, AllIds: []int{}},
		Productions:   ProductionTable{ById: map[int]ProductionBatch{}, AllIds: []int{}},
		Products:      []Product{},
		Units:         ListUnits(),
		StockLedger:   StockLedger{Entries: []StockLedgerEntry{}},
		StockBalances: StockBalances{},
	}
}

func (s *ManufacturingState) Recipe(id int) (Recipe, bool) {
	r, ok := s.Recipes.ById[id]
	if !ok {
		return Recipe{}, false
	}
	return r.Clone(), true
}

func (s *ManufacturingState) Production(id int) (ProductionBatch, bool) {
	p, ok := s.Productions.ById[id]
	if !ok {
		return ProductionBatch{}, false
	}
	return p.Clone(), true
}

// RecipeList returns recipes in insertion order.
func (s *ManufacturingState) RecipeList() []Recipe {
	list := make([]Recipe, 0, len(s.Recipes.AllIds))
	for _, id := range s.Recipes.AllIds {
		list = append(list, s.Recipes.ById[id].Clone())
	}
	return list
}

func (s *ManufacturingState) ProductionList() []ProductionBatch {
	list := make([]ProductionBatch, 0, len(s.Productions.AllIds))
	for _, id := range s.Productions.AllIds {
		list = append(list, s.Productions.ById[id].Clone())
	}
	return list
}

func (s *ManufacturingState) NextRecipeId() int {
	return nextId(s.Recipes.AllIds)
}

func (s *ManufacturingState) NextProductionId() int {
	return nextId(s.Productions.AllIds)
}

func nextId(ids []int) int {
	if len(ids) == 0 {
		return 1
	}
	return slices.Max(ids) + 1
}

func (s *ManufacturingState) lastSequence() int64 {
	entries := s.StockLedger.Entries
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Sequence
}

// EntriesForProduction returns the ledger entries posted by the given batch.
func (s *ManufacturingState) EntriesForProduction(productionId int) []StockLedgerEntry {
	return FilterLedger(s.StockLedger.Entries, LedgerFilter{Reference: ProductionReference(productionId)})
}

func (s *ManufacturingState) shallowCopy() *ManufacturingState {
	next := *s
	return &next
}

func (s *ManufacturingState) withRecipe(recipe Recipe) *ManufacturingState {
	next := s.shallowCopy()
	byId := maps.Clone(s.Recipes.ById)
	if byId == nil {
		byId = map[int]Recipe{}
	}
	allIds := s.Recipes.AllIds
	if _, exists := byId[recipe.ID]; !exists {
		allIds = append(slices.Clip(allIds), recipe.ID)
	}
	byId[recipe.ID] = recipe
	next.Recipes = RecipeTable{ById: byId, AllIds: allIds}
	return next
}

func (s *ManufacturingState) withProduction(production ProductionBatch) *ManufacturingState {
	next := s.shallowCopy()
	byId := maps.Clone(s.Productions.ById)
	if byId == nil {
		byId = map[int]ProductionBatch{}
	}
	allIds := s.Productions.AllIds
	if _, exists := byId[production.ID]; !exists {
		allIds = append(slices.Clip(allIds), production.ID)
	}
	byId[production.ID] = production
	next.Productions = ProductionTable{ById: byId, AllIds: allIds}
	return next
}

// withEntries appends to the ledger and folds the new entries into a copy of the balances.
func (s *ManufacturingState) withEntries(entries []StockLedgerEntry) *ManufacturingState {
	next := s.shallowCopy()
	next.StockLedger = StockLedger{Entries: append(slices.Clip(s.StockLedger.Entries), entries...)}
	balances := s.StockBalances.Clone()
	for _, entry := range entries {
		applyToBalances(balances, entry)
	}
	next.StockBalances = balances
	return next
}

// normalized fills in empty tables of a state decoded from an older or partial snapshot.
func (s *ManufacturingState) normalized() *ManufacturingState {
	next := s.shallowCopy()
	if next.Recipes.ById == nil {
		next.Recipes.ById = map[int]Recipe{}
	}
	if next.Recipes.AllIds == nil {
		next.Recipes.AllIds = []int{}
	}
	if next.Productions.ById == nil {
		next.Productions.ById = map[int]ProductionBatch{}
	}
	if next.Productions.AllIds == nil {
		next.Productions.AllIds = []int{}
	}
	if next.Products == nil {
		next.Products = []Product{}
	}
	if len(next.Units) == 0 {
		next.Units = ListUnits()
	}
	if next.StockLedger.Entries == nil {
		next.StockLedger.Entries = []StockLedgerEntry{}
	}
	if next.StockBalances == nil {
		next.StockBalances = RecalculateStockBalances(next.StockLedger.Entries)
	}
	return next
}

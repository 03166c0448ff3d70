package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func GetDefaultProducts() []Product {
	return []Product{
		// raw materials
		{ID: 1, Name: "Thiodicarb Technical", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 2, Name: "Sulphur Powder", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 3, Name: "Emulsifier A", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 4, Name: "Emulsifier B", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 5, Name: "Solvent X", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 6, Name: "Solvent Y", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 7, Name: "Dispersing Agent", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 8, Name: "Wetting Agent", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 9, Name: "Kaolin Filler", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 10, Name: "Silica Powder", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 11, Name: "Neem Extract", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 12, Name: "Stabilizer", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 13, Name: "Binder Resin", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 14, Name: "Anti-Foaming Agent", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 15, Name: "Packaging Liner", Type: ProductTypeRaw, BaseUnit: "pcs"},
		{ID: 16, Name: "Plastic Drum 25L", Type: ProductTypeRaw, BaseUnit: "pcs"},
		{ID: 17, Name: "Paper Sack 50kg", Type: ProductTypeRaw, BaseUnit: "pcs"},
		{ID: 18, Name: "Color Pigment", Type: ProductTypeRaw, BaseUnit: "kg"},
		{ID: 19, Name: "Fragrance Agent", Type: ProductTypeRaw, BaseUnit: "l"},
		{ID: 20, Name: "pH Adjuster", Type: ProductTypeRaw, BaseUnit: "kg"},

		// finished goods
		{ID: 101, Name: "Thiodicarb 75% WP", Type: ProductTypeFinished, BaseUnit: "kg"},
		{ID: 102, Name: "Sulphur 80% WP", Type: ProductTypeFinished, BaseUnit: "kg"},
		{ID: 103, Name: "Neem Oil EC 0.03%", Type: ProductTypeFinished, BaseUnit: "l"},
		{ID: 104, Name: "Combo Fungicide WG", Type: ProductTypeFinished, BaseUnit: "kg"},
		{ID: 105, Name: "Liquid Insecticide SC", Type: ProductTypeFinished, BaseUnit: "l"},

		// by-products and waste
		{ID: 201, Name: "Chemical Slurry", Type: ProductTypeByProduct, BaseUnit: "kg"},
		{ID: 202, Name: "Recovered Solvent", Type: ProductTypeByProduct, BaseUnit: "l"},
		{ID: 203, Name: "Dust Waste", Type: ProductTypeWaste, BaseUnit: "kg"},
		{ID: 204, Name: "Filter Cake", Type: ProductTypeWaste, BaseUnit: "kg"},
		{ID: 205, Name: "Wash Water", Type: ProductTypeWaste, BaseUnit: "l"},
		{ID: 206, Name: "Rejected Batch", Type: ProductTypeWaste, BaseUnit: "kg"},
		{ID: 207, Name: "Rework Material", Type: ProductTypeByProduct, BaseUnit: "kg"},
		{ID: 208, Name: "Spent Catalyst", Type: ProductTypeWaste, BaseUnit: "kg"},
		{ID: 209, Name: "Off-Spec Powder", Type: ProductTypeByProduct, BaseUnit: "kg"},
		{ID: 210, Name: "Evaporation Loss", Type: ProductTypeWaste, BaseUnit: "kg"},
	}
}

func seedQty(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func seedLine(productId int, value string, unit string) RecipeLine {
	return RecipeLine{ProductId: productId, Qty: seedQty(value), Unit: unit}
}

// GetDefaultRecipes returns the demo recipes. Every recipe keeps a single dimension
// and its inputs cover output plus by-products.
func GetDefaultRecipes() []Recipe {
	return []Recipe{
		{
			ID:              1001,
			Name:            "Thiodicarb 75% WP - Std Batch",
			OutputProductId: 101,
			ExpectedOutput:  Quantity{Qty: seedQty("100"), Unit: "kg"},
			Inputs: []RecipeLine{
				seedLine(1, "75", "kg"),
				seedLine(7, "5", "kg"),
				seedLine(8, "4", "kg"),
				seedLine(9, "18", "kg"),
			},
			ByProducts:         []RecipeLine{seedLine(201, "2", "kg")},
			ProcessLossPercent: seedQty("3"),
			IsActive:           true,
			Version:            "v1.0",
		},
		{
			ID:              1002,
			Name:            "Sulphur 80% WP - Powder Blend",
			OutputProductId: 102,
			ExpectedOutput:  Quantity{Qty: seedQty("100"), Unit: "kg"},
			Inputs: []RecipeLine{
				seedLine(2, "80", "kg"),
				seedLine(9, "15", "kg"),
				seedLine(10, "8", "kg"),
			},
			ByProducts:         []RecipeLine{seedLine(203, "3", "kg")},
			ProcessLossPercent: seedQty("2"),
			IsActive:           true,
			Version:            "v2.1",
		},
		{
			ID:              1003,
			Name:            "Neem Oil EC 0.03%",
			OutputProductId: 103,
			ExpectedOutput:  Quantity{Qty: seedQty("500"), Unit: "l"},
			Inputs: []RecipeLine{
				seedLine(11, "300", "l"),
				seedLine(5, "210", "l"),
				seedLine(14, "5", "l"),
				seedLine(19, "2", "l"),
			},
			ByProducts:         []RecipeLine{seedLine(202, "15", "l")},
			ProcessLossPercent: seedQty("1.5"),
			IsActive:           true,
			Version:            "v1.0",
		},
		{
			ID:              1004,
			Name:            "Combo Fungicide WG",
			OutputProductId: 104,
			ExpectedOutput:  Quantity{Qty: seedQty("200"), Unit: "kg"},
			Inputs: []RecipeLine{
				seedLine(1, "40", "kg"),
				seedLine(2, "50", "kg"),
				seedLine(7, "10", "kg"),
				seedLine(12, "5", "kg"),
				seedLine(9, "103", "kg"),
			},
			ByProducts:         []RecipeLine{seedLine(209, "8", "kg")},
			ProcessLossPercent: seedQty("4"),
			IsActive:           true,
			Version:            "v1.3",
		},
		{
			ID:              1005,
			Name:            "Liquid Insecticide SC",
			OutputProductId: 105,
			ExpectedOutput:  Quantity{Qty: seedQty("1000"), Unit: "l"},
			Inputs: []RecipeLine{
				seedLine(6, "900", "l"),
				seedLine(3, "80", "l"),
				seedLine(4, "50", "l"),
				seedLine(14, "10", "l"),
			},
			ByProducts:         []RecipeLine{seedLine(205, "40", "l")},
			ProcessLossPercent: seedQty("2.5"),
			IsActive:           true,
			Version:            "v1.0",
		},
	}
}

// DefaultManufacturingState builds the demo state through the reducer, so the seed passes the same gates
// as live data. It includes one completed batch of the first recipe.
func DefaultManufacturingState() (*ManufacturingState, error) {
	state := NewManufacturingState()
	state.Products = GetDefaultProducts()

	var err error
	for _, recipe := range GetDefaultRecipes() {
		if state, err = Reduce(state, AddRecipe{Recipe: recipe, CheckProducts: true}); err != nil {
			return nil, err
		}
	}

	createdAt := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	seedBatch := ProductionBatch{
		ID:              9001,
		RecipeId:        1001,
		BatchMultiplier: decimal.NewFromInt(1),
		Remarks:         "Opening demo batch",
		Timestamps:      ProductionTimestamps{CreatedAt: createdAt},
	}
	if state, err = Reduce(state, CreateProduction{Production: seedBatch}); err != nil {
		return nil, err
	}
	state, err = Reduce(state, ExecuteProduction{
		Id:            9001,
		Data:          CompletionData{Output: seedQty("96"), Remarks: "Handling & moisture loss"},
		At:            createdAt.Add(6 * time.Hour),
		CorrelationId: "seed-demo",
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

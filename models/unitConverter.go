package models

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// QtyPrecision is the number of decimal places every converted or derived quantity is rounded to.
const QtyPrecision = 3

type UnitDefinition struct {
	Symbol    string          `json:"symbol"`
	Dimension Dimension       `json:"dimension"`
	Factor    decimal.Decimal `json:"factor"`
}

type BaseQuantity struct {
	Qty       decimal.Decimal `json:"qty"`
	Unit      string          `json:"unit"`
	Dimension Dimension       `json:"dimension"`
}

var baseUnits = map[Dimension]string{
	DimensionMass:   "kg",
	DimensionVolume: "l",
	DimensionLength: "m",
	DimensionCount:  "pcs",
}

var unitDefinitions = map[string]UnitDefinition{
	// mass
	"kg":  {Symbol: "kg", Dimension: DimensionMass, Factor: decimal.NewFromInt(1)},
	"g":   {Symbol: "g", Dimension: DimensionMass, Factor: decimal.RequireFromString("0.001")},
	"mg":  {Symbol: "mg", Dimension: DimensionMass, Factor: decimal.RequireFromString("0.000001")},
	"ton": {Symbol: "ton", Dimension: DimensionMass, Factor: decimal.NewFromInt(1000)},

	// volume
	"l":      {Symbol: "l", Dimension: DimensionVolume, Factor: decimal.NewFromInt(1)},
	"ml":     {Symbol: "ml", Dimension: DimensionVolume, Factor: decimal.RequireFromString("0.001")},
	"kl":     {Symbol: "kl", Dimension: DimensionVolume, Factor: decimal.NewFromInt(1000)},
	"gallon": {Symbol: "gallon", Dimension: DimensionVolume, Factor: decimal.RequireFromString("3.78541")},

	// length
	"m":  {Symbol: "m", Dimension: DimensionLength, Factor: decimal.NewFromInt(1)},
	"cm": {Symbol: "cm", Dimension: DimensionLength, Factor: decimal.RequireFromString("0.01")},
	"mm": {Symbol: "mm", Dimension: DimensionLength, Factor: decimal.RequireFromString("0.001")},

	// count
	"pcs":   {Symbol: "pcs", Dimension: DimensionCount, Factor: decimal.NewFromInt(1)},
	"box":   {Symbol: "box", Dimension: DimensionCount, Factor: decimal.NewFromInt(10)},
	"dozen": {Symbol: "dozen", Dimension: DimensionCount, Factor: decimal.NewFromInt(12)},
}

func RoundQty(d decimal.Decimal) decimal.Decimal {
	return d.Round(QtyPrecision)
}

// NormalizeUnitSymbol case-folds a unit symbol ("L", "Kg") to its table key.
func NormalizeUnitSymbol(unit string) string {
	return cases.Fold().String(strings.TrimSpace(unit))
}

// LookupUnit resolves a unit symbol, failing with UNSUPPORTED_UNIT when it is not registered.
func LookupUnit(unit string) (UnitDefinition, error) {
	def, ok := unitDefinitions[NormalizeUnitSymbol(unit)]
	if !ok {
		return UnitDefinition{}, newEngineError(ErrorKindUnsupportedUnit, "Unsupported unit: %s", unit)
	}
	return def, nil
}

func IsSupportedUnit(unit string) bool {
	_, ok := unitDefinitions[NormalizeUnitSymbol(unit)]
	return ok
}

func ToBaseUnit(qty decimal.Decimal, unit string) (BaseQuantity, error) {
	def, err := LookupUnit(unit)
	if err != nil {
		return BaseQuantity{}, err
	}
	return BaseQuantity{
		Qty:       RoundQty(qty.Mul(def.Factor)),
		Unit:      baseUnits[def.Dimension],
		Dimension: def.Dimension,
	}, nil
}

func FromBaseUnit(qty decimal.Decimal, targetUnit string) (decimal.Decimal, error) {
	def, err := LookupUnit(targetUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundQty(qty.Div(def.Factor)), nil
}

// ConvertUnit goes through the base unit, rounding at both boundaries.
func ConvertUnit(qty decimal.Decimal, fromUnit string, toUnit string) (decimal.Decimal, error) {
	fromDef, err := LookupUnit(fromUnit)
	if err != nil {
		return decimal.Zero, err
	}
	toDef, err := LookupUnit(toUnit)
	if err != nil {
		return decimal.Zero, err
	}
	if fromDef.Dimension != toDef.Dimension {
		return decimal.Zero, newEngineError(ErrorKindIncompatibleDimension, "Invalid unit conversion: %s → %s", fromUnit, toUnit)
	}
	base, err := ToBaseUnit(qty, fromUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return FromBaseUnit(base.Qty, toUnit)
}

func GetUnitDimension(unit string) (Dimension, error) {
	def, err := LookupUnit(unit)
	if err != nil {
		return "", err
	}
	return def.Dimension, nil
}

func AreUnitsCompatible(unitA string, unitB string) (bool, error) {
	a, err := LookupUnit(unitA)
	if err != nil {
		return false, err
	}
	b, err := LookupUnit(unitB)
	if err != nil {
		return false, err
	}
	return a.Dimension == b.Dimension, nil
}

// ListUnits returns the unit master grouped by dimension, ordered by factor.
func ListUnits() map[Dimension][]string {
	grouped := make(map[Dimension][]UnitDefinition)
	for _, def := range unitDefinitions {
		grouped[def.Dimension] = append(grouped[def.Dimension], def)
	}
	result := make(map[Dimension][]string, len(grouped))
	for dim, defs := range grouped {
		sort.Slice(defs, func(i, j int) bool { return defs[i].Factor.LessThan(defs[j].Factor) })
		symbols := make([]string, 0, len(defs))
		for _, d := range defs {
			symbols = append(symbols, d.Symbol)
		}
		result[dim] = symbols
	}
	return result
}

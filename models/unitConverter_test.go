package models_test

import (
	"errors"
	"slices"
	"testing"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
)

func TestConvertUnit_SameDimension(t *testing.T) {
	cases := []struct {
		qty      string
		from     string
		to       string
		expected string
	}{
		{"1000", "g", "kg", "1"},
		{"1", "kg", "g", "1000"},
		{"2", "ton", "kg", "2000"},
		{"1500", "ml", "l", "1.5"},
		{"1", "gallon", "l", "3.785"},
		{"250", "cm", "m", "2.5"},
		{"3", "dozen", "pcs", "36"},
		{"2", "box", "dozen", "1.667"},
		{"1", "L", "ML", "1000"},
	}
	for _, tc := range cases {
		got, err := models.ConvertUnit(d(tc.qty), tc.from, tc.to)
		if err != nil {
			t.Fatalf("ConvertUnit(%s %s -> %s) error: %v", tc.qty, tc.from, tc.to, err)
		}
		if !got.Equal(d(tc.expected)) {
			t.Fatalf("ConvertUnit(%s %s -> %s) expected %s, got %s", tc.qty, tc.from, tc.to, tc.expected, got)
		}
	}
}

func TestConvertUnit_IncompatibleDimension(t *testing.T) {
	_, err := models.ConvertUnit(d("5"), "kg", "L")
	if !errors.Is(err, models.ErrIncompatibleDimension) {
		t.Fatalf("expected incompatible dimension, got %v", err)
	}
}

func TestConvertUnit_RoundTripWithinPrecision(t *testing.T) {
	kg, err := models.ConvertUnit(d("1"), "g", "kg")
	if err != nil {
		t.Fatalf("g -> kg: %v", err)
	}
	back, err := models.ConvertUnit(kg, "kg", "g")
	if err != nil {
		t.Fatalf("kg -> g: %v", err)
	}
	if !back.Equal(d("1")) {
		t.Fatalf("expected round trip to return 1, got %s", back)
	}
}

func TestToBaseUnit_RoundsToThreeDecimals(t *testing.T) {
	base, err := models.ToBaseUnit(d("1234.5678"), "g")
	if err != nil {
		t.Fatalf("ToBaseUnit: %v", err)
	}
	if base.Unit != "kg" || base.Dimension != models.DimensionMass {
		t.Fatalf("expected kg/mass, got %s/%s", base.Unit, base.Dimension)
	}
	if !base.Qty.Equal(d("1.235")) {
		t.Fatalf("expected 1.235, got %s", base.Qty)
	}
}

func TestLookupUnit_CaseInsensitive(t *testing.T) {
	for _, symbol := range []string{"L", "Kg", " ML ", "PCS"} {
		if _, err := models.LookupUnit(symbol); err != nil {
			t.Fatalf("LookupUnit(%q): %v", symbol, err)
		}
	}
	_, err := models.LookupUnit("furlong")
	if !errors.Is(err, models.ErrUnsupportedUnit) {
		t.Fatalf("expected unsupported unit, got %v", err)
	}
	if _, err := models.FromBaseUnit(d("1"), "furlong"); !errors.Is(err, models.ErrUnsupportedUnit) {
		t.Fatalf("FromBaseUnit expected unsupported unit, got %v", err)
	}
}

func TestAreUnitsCompatible(t *testing.T) {
	ok, err := models.AreUnitsCompatible("g", "ton")
	if err != nil || !ok {
		t.Fatalf("g and ton should be compatible, got %t %v", ok, err)
	}
	ok, err = models.AreUnitsCompatible("kg", "l")
	if err != nil || ok {
		t.Fatalf("kg and l should not be compatible, got %t %v", ok, err)
	}
	dim, err := models.GetUnitDimension("dozen")
	if err != nil || dim != models.DimensionCount {
		t.Fatalf("expected count dimension, got %s %v", dim, err)
	}
}

func TestListUnits_GroupedAndOrderedByFactor(t *testing.T) {
	units := models.ListUnits()
	expected := map[models.Dimension][]string{
		models.DimensionMass:   {"mg", "g", "kg", "ton"},
		models.DimensionVolume: {"ml", "l", "gallon", "kl"},
		models.DimensionLength: {"mm", "cm", "m"},
		models.DimensionCount:  {"pcs", "box", "dozen"},
	}
	for dim, symbols := range expected {
		if !slices.Equal(units[dim], symbols) {
			t.Fatalf("%s: expected %v, got %v", dim, symbols, units[dim])
		}
	}
}

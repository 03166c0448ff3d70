package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type Dimension string

const (
	DimensionMass   Dimension = "mass"
	DimensionVolume Dimension = "volume"
	DimensionLength Dimension = "length"
	DimensionCount  Dimension = "count"
)

type ProductType string

const (
	ProductTypeRaw       ProductType = "raw"
	ProductTypeFinished  ProductType = "finished"
	ProductTypeByProduct ProductType = "byproduct"
	ProductTypeWaste     ProductType = "waste"
)

func (t *ProductType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("product type must be string")
	}
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "raw":
		*t = ProductTypeRaw
	case "finished":
		*t = ProductTypeFinished
	case "byproduct", "by_product":
		*t = ProductTypeByProduct
	// legacy master data tags evaporation as "loss"; it is waste for stock purposes
	case "waste", "loss":
		*t = ProductTypeWaste
	default:
		return errors.New("invalid product type")
	}
	return nil
}

type ProductionStatus string

const (
	ProductionStatusPlanned    ProductionStatus = "PLANNED"
	ProductionStatusInProgress ProductionStatus = "IN_PROGRESS"
	ProductionStatusCompleted  ProductionStatus = "COMPLETED"
	ProductionStatusCancelled  ProductionStatus = "CANCELLED"
	ProductionStatusOnHold     ProductionStatus = "ON_HOLD"
)

// DRAFT is the planning screen's name for PLANNED.
func ParseProductionStatus(str string) (ProductionStatus, error) {
	switch str {
	case "PLANNED", "DRAFT":
		return ProductionStatusPlanned, nil
	case "IN_PROGRESS":
		return ProductionStatusInProgress, nil
	case "COMPLETED":
		return ProductionStatusCompleted, nil
	case "CANCELLED":
		return ProductionStatusCancelled, nil
	case "ON_HOLD":
		return ProductionStatusOnHold, nil
	default:
		return "", errors.New("invalid production status")
	}
}

func (s *ProductionStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("production status must be string")
	}
	status, err := ParseProductionStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s ProductionStatus) IsTerminal() bool {
	return s == ProductionStatusCompleted || s == ProductionStatusCancelled
}

// StockEntryType is the canonical ledger vocabulary.
// The execute screen and the calculator historically used different names for the same movements;
// both decode to the same constant.
type StockEntryType string

const (
	StockEntryTypeRawConsumption   StockEntryType = "RAW_CONSUMPTION"
	StockEntryTypeFgReceipt        StockEntryType = "FG_RECEIPT"
	StockEntryTypeByProductReceipt StockEntryType = "BY_PRODUCT_RECEIPT"
	StockEntryTypeProcessLoss      StockEntryType = "PROCESS_LOSS"
)

var stockEntryTypeAliases = map[string]StockEntryType{
	"RAW_CONSUMPTION":    StockEntryTypeRawConsumption,
	"ISSUE":              StockEntryTypeRawConsumption,
	"FG_RECEIPT":         StockEntryTypeFgReceipt,
	"RECEIPT":            StockEntryTypeFgReceipt,
	"BY_PRODUCT_RECEIPT": StockEntryTypeByProductReceipt,
	"BY_PRODUCT":         StockEntryTypeByProductReceipt,
	"PROCESS_LOSS":       StockEntryTypeProcessLoss,
	"LOSS":               StockEntryTypeProcessLoss,
}

// Older snapshots posted ISSUE and LOSS with unsigned quantities.
var unsignedLegacyEntryTypes = map[string]bool{
	"ISSUE": true,
	"LOSS":  true,
}

func ParseStockEntryType(str string) (StockEntryType, error) {
	t, ok := stockEntryTypeAliases[str]
	if !ok {
		return "", errors.New("invalid stock entry type")
	}
	return t, nil
}

func (t *StockEntryType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("stock entry type must be string")
	}
	// empty stays empty so validation can report the missing type with its line number
	if str == "" {
		*t = ""
		return nil
	}
	parsed, err := ParseStockEntryType(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t StockEntryType) IsValid() bool {
	switch t {
	case StockEntryTypeRawConsumption, StockEntryTypeFgReceipt, StockEntryTypeByProductReceipt, StockEntryTypeProcessLoss:
		return true
	}
	return false
}

// IsOutflow reports whether entries of this type take stock away and so carry a negative quantity.
func (t StockEntryType) IsOutflow() bool {
	return t == StockEntryTypeRawConsumption || t == StockEntryTypeProcessLoss
}

type YieldRating string

const (
	YieldRatingExcellent YieldRating = "EXCELLENT"
	YieldRatingWarning   YieldRating = "WARNING"
	YieldRatingCritical  YieldRating = "CRITICAL"
)

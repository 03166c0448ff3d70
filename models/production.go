package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const productionReferencePrefix = "PROD-"

type PlannedLine struct {
	ProductId  int             `json:"productId"`
	PlannedQty decimal.Decimal `json:"plannedQty"`
	Unit       string          `json:"unit"`
}

type PlannedOutput struct {
	ProductId int             `json:"productId"`
	Qty       decimal.Decimal `json:"qty"`
	Unit      string          `json:"unit"`
}

type ProductionTimestamps struct {
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	HeldAt      *time.Time `json:"heldAt,omitempty"`
	ResumedAt   *time.Time `json:"resumedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// CompletionData is what the shop floor reports when a batch is finished.
type CompletionData struct {
	Output     decimal.Decimal `json:"output"`
	Remarks    string          `json:"remarks"`
	ByProducts []PlannedLine   `json:"byProducts,omitempty"`
}

type ProductionActuals struct {
	Output     decimal.Decimal `json:"output"`
	Loss       decimal.Decimal `json:"loss"`
	Remarks    string          `json:"remarks"`
	ByProducts []PlannedLine   `json:"byProducts,omitempty"`
}

type ProductionAudit struct {
	Notes string `json:"notes"`
}

type ProductionBatch struct {
	ID                int                  `json:"id"`
	RecipeId          int                  `json:"recipeId"`
	BatchMultiplier   decimal.Decimal      `json:"batchMultiplier"`
	PlannedOutput     PlannedOutput        `json:"plannedOutput"`
	PlannedInputs     []PlannedLine        `json:"plannedInputs"`
	PlannedByProducts []PlannedLine        `json:"plannedByProducts"`
	PlannedLoss       decimal.Decimal      `json:"plannedLoss"`
	Status            ProductionStatus     `json:"status"`
	Timestamps        ProductionTimestamps `json:"timestamps"`
	Actuals           *ProductionActuals   `json:"actuals,omitempty"`
	Audit             *ProductionAudit     `json:"audit,omitempty"`
	Remarks           string               `json:"remarks"`
}

func (p ProductionBatch) Clone() ProductionBatch {
	p.PlannedInputs = slices.Clone(p.PlannedInputs)
	p.PlannedByProducts = slices.Clone(p.PlannedByProducts)
	if p.Actuals != nil {
		actuals := *p.Actuals
		actuals.ByProducts = slices.Clone(actuals.ByProducts)
		p.Actuals = &actuals
	}
	if p.Audit != nil {
		audit := *p.Audit
		p.Audit = &audit
	}
	return p
}

// Reference is the ledger reference every movement posted by this batch carries.
func (p ProductionBatch) Reference() string {
	return ProductionReference(p.ID)
}

// PlannedNetOutput is planned output minus the declared process loss.
func (p ProductionBatch) PlannedNetOutput() decimal.Decimal {
	return RoundQty(p.PlannedOutput.Qty.Sub(p.PlannedLoss))
}

func ProductionReference(productionId int) string {
	return fmt.Sprintf("%s%d", productionReferencePrefix, productionId)
}

// ParseProductionReference returns the batch id of a "PROD-<id>" reference.
func ParseProductionReference(reference string) (int, bool) {
	rest, ok := strings.CutPrefix(reference, productionReferencePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return id, true
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package reports

import (
	"cmp"
	"slices"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/shopspring/decimal"
)

type StockSummaryReportResponse struct {
	ProductId    int             `json:"productId"`
	ProductName  string          `json:"productName,omitempty"`
	Unit         string          `json:"unit"`
	OpeningStock decimal.Decimal `json:"openingStock"`
	QtyIn        decimal.Decimal `json:"qtyIn"`
	QtyOut       decimal.Decimal `json:"qtyOut"`
	ClosingStock decimal.Decimal `json:"closingStock"`
}

type stockSummaryKey struct {
	productId int
	unit      string
}

// GetStockSummaryReport folds the ledger into opening, in, out and closing quantities per product and unit.
// Entries before fromDate count as opening stock; entries after toDate are ignored. A zero fromDate or
// toDate leaves that side open.
func GetStockSummaryReport(state *models.ManufacturingState, fromDate time.Time, toDate time.Time) []*StockSummaryReportResponse {
	rows := make(map[stockSummaryKey]*StockSummaryReportResponse)
	for _, entry := range state.StockLedger.Entries {
		if !toDate.IsZero() && entry.PostedAt.After(toDate) {
			continue
		}
		key := stockSummaryKey{productId: entry.ProductId, unit: models.NormalizeUnitSymbol(entry.Unit)}
		row, ok := rows[key]
		if !ok {
			row = &StockSummaryReportResponse{ProductId: entry.ProductId, Unit: key.unit}
			if product, found := models.FindProduct(state.Products, entry.ProductId); found {
				row.ProductName = product.Name
			}
			rows[key] = row
		}
		switch {
		case !fromDate.IsZero() && entry.PostedAt.Before(fromDate):
			row.OpeningStock = row.OpeningStock.Add(entry.Qty)
		case entry.Qty.IsPositive():
			row.QtyIn = row.QtyIn.Add(entry.Qty)
		default:
			row.QtyOut = row.QtyOut.Add(entry.Qty.Abs())
		}
	}

	result := make([]*StockSummaryReportResponse, 0, len(rows))
	for _, row := range rows {
		row.ClosingStock = row.OpeningStock.Add(row.QtyIn).Sub(row.QtyOut)
		result = append(result, row)
	}
	slices.SortFunc(result, func(a, b *StockSummaryReportResponse) int {
		if c := cmp.Compare(a.ProductId, b.ProductId); c != 0 {
			return c
		}
		return cmp.Compare(a.Unit, b.Unit)
	})
	return result
}

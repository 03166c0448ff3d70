package reports

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"github.com/xuri/excelize/v2"
)

const (
	ledgerSheet     = "Ledger"
	stockSheet      = "Stock Summary"
	productionSheet = "Productions"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timestampLayout = time.RFC3339
)

func XlsxContentType() string {
	return xlsxContentType
}

func cellName(col int, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cellName(i+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0EBF5"}},
	})
}

// BuildLedgerWorkbook exports the ledger, a stock summary and the production batches of a state.
func BuildLedgerWorkbook(state *models.ManufacturingState) (*excelize.File, error) {
	f := excelize.NewFile()
	style, err := headerStyle(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, ledgerSheet, 1, "Sequence", "Posted At", "Type", "Product Id", "Product", "Qty", "Unit", "Reference", "Remarks", "Correlation Id"); err != nil {
		return nil, err
	}
	for i, e := range state.StockLedger.Entries {
		productName := ""
		if p, ok := models.FindProduct(state.Products, e.ProductId); ok {
			productName = p.Name
		}
		qty, _ := e.Qty.Float64()
		if err := writeRow(f, ledgerSheet, i+2,
			e.Sequence, e.PostedAt.UTC().Format(timestampLayout), string(e.Type), e.ProductId, productName,
			qty, e.Unit, e.Reference, e.Remarks, e.CorrelationId,
		); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(stockSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, stockSheet, 1, "Product Id", "Product", "Unit", "Qty In", "Qty Out", "Closing Stock"); err != nil {
		return nil, err
	}
	for i, r := range GetStockSummaryReport(state, time.Time{}, time.Time{}) {
		in, _ := r.QtyIn.Float64()
		out, _ := r.QtyOut.Float64()
		closing, _ := r.ClosingStock.Float64()
		if err := writeRow(f, stockSheet, i+2, r.ProductId, r.ProductName, r.Unit, in, out, closing); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(productionSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, productionSheet, 1, "Batch", "Recipe Id", "Multiplier", "Status", "Planned Output", "Actual Output", "Unit", "Yield %", "Rating", "Created At"); err != nil {
		return nil, err
	}
	for i, p := range state.ProductionList() {
		planned, _ := p.PlannedOutput.Qty.Float64()
		multiplier, _ := p.BatchMultiplier.Float64()
		values := []interface{}{p.Reference(), p.RecipeId, multiplier, string(p.Status), planned, "", p.PlannedOutput.Unit, "", "", p.Timestamps.CreatedAt.UTC().Format(timestampLayout)}
		if report, ok := models.BatchYield(&p); ok {
			actual, _ := report.ActualQty.Float64()
			yield, _ := report.YieldPercent.Float64()
			values[5], values[7], values[8] = actual, yield, string(report.Rating)
		}
		if err := writeRow(f, productionSheet, i+2, values...); err != nil {
			return nil, err
		}
	}

	for _, sheet := range []string{ledgerSheet, stockSheet, productionSheet} {
		cols, err := f.GetCols(sheet)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", cellName(len(cols), 1), style); err != nil {
			return nil, fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

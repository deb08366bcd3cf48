package table

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

var exportHeaders = []string{
	"Order", "SKU", "Product", "Quantity", "Shipping", "Total",
	"Fulfillable", "Priority", "Status", "System Note", "Excluded", "Excluded Qty",
}

// ExportRun writes a run's annotated lines to an xlsx workbook.
// Report-hidden lines are filtered out; excluded lines keep their shadow
// quantity visible so nothing is silently dropped.
func ExportRun(run *domain.Run, path string) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Fulfillment"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rowNum := 2
	for _, l := range run.Lines {
		if l.ReportHidden {
			continue
		}
		excludedQty := ""
		if l.ExcludedQty != nil {
			excludedQty = strconv.Itoa(*l.ExcludedQty)
		}
		row := []any{
			l.OrderID, l.SKU, l.ProductName, l.Quantity, l.ShippingMethod,
			l.LineTotal.String(), l.Fulfillable, l.Priority, l.StatusNote,
			l.SystemNote, l.Excluded, excludedQty,
		}
		cell := fmt.Sprintf("A%d", rowNum)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", rowNum, err)
		}
		rowNum++
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

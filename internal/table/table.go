// Package table holds the in-memory tabular records the simulator
// consumes, plus the readers that load them from CSV and XLSX exports
// and the column-mapping glue that aligns arbitrary source headers to
// canonical fields.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

// Table is a header row plus data rows, all as strings. Typing happens
// when records are extracted through a column mapping.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Column returns the index of the named header.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Headers {
		if strings.TrimSpace(h) == name {
			return i, true
		}
	}
	return 0, false
}

func (t *Table) cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadCSV parses a headered CSV stream.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	return &Table{Headers: records[0], Rows: records[1:]}, nil
}

// ReadXLSX parses the first sheet of an xlsx workbook.
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheets[0])
	}
	return &Table{Headers: rows[0], Rows: rows[1:]}, nil
}

// ReadFile loads a table by file extension (.csv or .xlsx).
func ReadFile(path string) (*Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported table format %q", ext)
	}
}

// Orders extracts order lines through the column mapping. Malformed
// quantities are reported per row, never fatally; the offending line is
// carried with a data issue note so the simulator can refuse to allocate
// its order.
func Orders(t *Table, m config.OrderColumns) ([]domain.OrderLine, []domain.DataError) {
	idxOrder, okOrder := t.Column(m.OrderID)
	idxSKU, okSKU := t.Column(m.SKU)
	idxQty, okQty := t.Column(m.Quantity)
	idxShip, _ := t.Column(m.Shipping)
	idxTotal, hasTotal := t.Column(m.Total)
	idxName, _ := t.Column(m.ProductName)

	var errs []domain.DataError
	if !okOrder {
		errs = append(errs, domain.DataError{Field: m.OrderID, Reason: "orders column not found"})
	}
	if !okSKU {
		errs = append(errs, domain.DataError{Field: m.SKU, Reason: "orders column not found"})
	}
	if !okQty {
		errs = append(errs, domain.DataError{Field: m.Quantity, Reason: "orders column not found"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	lines := make([]domain.OrderLine, 0, len(t.Rows))
	for i, row := range t.Rows {
		line := domain.OrderLine{
			OrderID:        t.cell(row, idxOrder),
			SKU:            t.cell(row, idxSKU),
			ShippingMethod: t.cell(row, idxShip),
			ProductName:    t.cell(row, idxName),
		}
		qty, err := parseQuantity(t.cell(row, idxQty))
		if err != nil {
			errs = append(errs, domain.DataError{
				Row: i + 2, Field: m.Quantity, Value: t.cell(row, idxQty), Reason: err.Error(),
			})
			line.SystemNote = domain.NoteInvalidQuantity
		} else {
			line.Quantity = qty
		}
		if hasTotal {
			if total := t.cell(row, idxTotal); total != "" {
				d, err := decimal.NewFromString(total)
				if err != nil {
					errs = append(errs, domain.DataError{
						Row: i + 2, Field: m.Total, Value: total, Reason: "not a number",
					})
				} else {
					line.LineTotal = d
				}
			}
		}
		lines = append(lines, line)
	}
	return lines, errs
}

// Stock extracts stock records through the column mapping. A missing
// product name is tolerated; a malformed quantity drops the row with a
// per-row error.
func Stock(t *Table, m config.StockColumns) ([]domain.StockRecord, []domain.DataError) {
	idxSKU, okSKU := t.Column(m.SKU)
	idxQty, okQty := t.Column(m.Quantity)
	idxName, _ := t.Column(m.ProductName)

	var errs []domain.DataError
	if !okSKU {
		errs = append(errs, domain.DataError{Field: m.SKU, Reason: "stock column not found"})
	}
	if !okQty {
		errs = append(errs, domain.DataError{Field: m.Quantity, Reason: "stock column not found"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	records := make([]domain.StockRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		qtyRaw := t.cell(row, idxQty)
		qty, err := parseSignedQuantity(qtyRaw)
		if err != nil {
			errs = append(errs, domain.DataError{
				Row: i + 2, Field: m.Quantity, Value: qtyRaw, Reason: err.Error(),
			})
			continue
		}
		records = append(records, domain.StockRecord{
			SKU:         t.cell(row, idxSKU),
			Quantity:    qty,
			ProductName: t.cell(row, idxName),
		})
	}
	return records, errs
}

// parseQuantity accepts non-negative integers, tolerating spreadsheet
// float artifacts ("2.0").
func parseQuantity(raw string) (int, error) {
	q, err := parseSignedQuantity(raw)
	if err != nil {
		return 0, err
	}
	if q < 0 {
		return 0, fmt.Errorf("negative quantity")
	}
	return q, nil
}

// parseSignedQuantity is the stock variant: negative opening balances
// represent pre-existing backorder deficits and are allowed.
func parseSignedQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("missing quantity")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("not a whole number")
	}
	return int(f), nil
}

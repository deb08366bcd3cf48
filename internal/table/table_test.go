package table_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/engine"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/table"
)

const ordersCSV = `Name,Lineitem sku,Lineitem quantity,Shipping Method,Total,Lineitem name
1001,5170.0,2,Express,20.50,Widget A
1001,KIT-1,1,Express,5,Assembly Kit
1002,900,x,Standard,10,Widget B
1003,901,3,,30,Widget C
`

const stockCSV = `SKU,Stock,Product name
5170,10,Widget A
KIT-1,4,Assembly Kit
900,-2,Widget B
901,oops,Widget C
`

func ordersMapping() config.OrderColumns {
	return config.Default().ColumnMappings.Orders
}

func stockMapping() config.StockColumns {
	return config.Default().ColumnMappings.Stock
}

func TestOrdersMapping(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(ordersCSV))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines, errs := table.Orders(tbl, ordersMapping())
	if len(lines) != 4 {
		t.Fatalf("expected all 4 lines carried, got %d", len(lines))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one data error, got %v", errs)
	}
	if errs[0].Row != 4 || errs[0].Value != "x" {
		t.Fatalf("error should name source row and value: %+v", errs[0])
	}

	first := lines[0]
	if first.OrderID != "1001" || first.SKU != "5170.0" || first.Quantity != 2 {
		t.Fatalf("mapped line wrong: %+v", first)
	}
	if first.LineTotal.String() != "20.5" {
		t.Fatalf("line total = %s", first.LineTotal)
	}
	if first.ShippingMethod != "Express" || first.ProductName != "Widget A" {
		t.Fatalf("optional columns not mapped: %+v", first)
	}

	bad := lines[2]
	if bad.SystemNote != domain.NoteInvalidQuantity {
		t.Fatalf("malformed line must be flagged, got %q", bad.SystemNote)
	}
	if lines[3].ShippingMethod != "" {
		t.Fatalf("empty shipping should stay empty")
	}
}

func TestOrdersMissingColumns(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader("Foo,Bar\n1,2\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines, errs := table.Orders(tbl, ordersMapping())
	if lines != nil {
		t.Fatalf("no lines expected when required columns are missing")
	}
	if len(errs) != 3 {
		t.Fatalf("expected an error per missing column, got %v", errs)
	}
}

func TestStockMapping(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(stockCSV))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	records, errs := table.Stock(tbl, stockMapping())
	if len(records) != 3 {
		t.Fatalf("expected 3 usable records, got %d", len(records))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one data error, got %v", errs)
	}
	if records[2].Quantity != -2 {
		t.Fatalf("negative stock must be allowed, got %d", records[2].Quantity)
	}
}

func TestReadFileUnsupportedExtension(t *testing.T) {
	if _, err := table.ReadFile("orders.txt"); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestExportRoundTrip(t *testing.T) {
	tbl, err := table.ReadCSV(strings.NewReader(ordersCSV))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines, _ := table.Orders(tbl, ordersMapping())
	stockTbl, err := table.ReadCSV(strings.NewReader(stockCSV))
	if err != nil {
		t.Fatalf("read stock csv: %v", err)
	}
	stock, _ := table.Stock(stockTbl, stockMapping())
	run := engine.Simulate(lines, stock, nil, "")
	run.Lines[0].ReportHidden = true

	path := filepath.Join(t.TempDir(), "run.xlsx")
	if err := table.ExportRun(run, path); err != nil {
		t.Fatalf("export: %v", err)
	}

	out, err := table.ReadXLSX(path)
	if err != nil {
		t.Fatalf("reopen export: %v", err)
	}
	// Header row plus every line except the hidden one.
	if len(out.Rows) != len(run.Lines)-1 {
		t.Fatalf("exported %d rows, want %d", len(out.Rows), len(run.Lines)-1)
	}
	if _, ok := out.Column("Order"); !ok {
		t.Fatalf("export missing Order column, headers: %v", out.Headers)
	}
}

package domain

import "github.com/shopspring/decimal"

// NoteInvalidQuantity is the system note set on a line whose source
// quantity is unusable. The simulator refuses to allocate any order
// carrying it, so the loader and the engine must agree on this value.
const NoteInvalidQuantity = "invalid quantity"

// OrderLine is one item within one order. Quantity is never mutated after
// load; rule actions write to the annotation fields only.
type OrderLine struct {
	OrderID        string          `json:"order_id"`
	SKU            string          `json:"sku"`
	Quantity       int             `json:"quantity"`
	ShippingMethod string          `json:"shipping_method,omitempty"`
	ProductName    string          `json:"product_name,omitempty"`
	LineTotal      decimal.Decimal `json:"line_total"`
	StatusNote     string          `json:"status_note,omitempty"`
	SystemNote     string          `json:"system_note,omitempty"`
	Priority       string          `json:"priority,omitempty"`
	Fulfillable    bool            `json:"fulfillable"`
	Excluded       bool            `json:"excluded"`
	ExcludedQty    *int            `json:"excluded_qty,omitempty"`
	ReportHidden   bool            `json:"report_hidden"`
}

// StockRecord is one SKU's available quantity at simulation start.
// The quantity here is the source of truth and is never mutated; all
// simulation state lives in the derived ledger.
type StockRecord struct {
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
}

// Order groups the lines sharing an order identifier. Fulfillability is a
// verdict on the order, computed from whether every line fits the ledger.
type Order struct {
	ID          string `json:"id"`
	Lines       []int  `json:"lines"` // indices into the run's line slice
	Fulfillable bool   `json:"fulfillable"`
	MultiItem   bool   `json:"multi_item"`
}

// HistoryRecord is a prior fulfillment outcome for an order+SKU pair,
// carried across runs to detect repeats.
type HistoryRecord struct {
	OrderID   string `json:"order_id"`
	SKU       string `json:"sku"`
	Fulfilled bool   `json:"fulfilled"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
}

// Ledger maps canonical SKU to a running signed balance. Each simulation
// run owns exactly one ledger instance.
type Ledger map[string]int

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// ShippingStats aggregates one shipping method's share of a run.
type ShippingStats struct {
	Orders        int             `json:"orders"`
	Fulfillable   int             `json:"fulfillable"`
	Unfulfillable int             `json:"unfulfillable"`
	Value         decimal.Decimal `json:"value"`
}

// MissingStock summarizes a deficit for one SKU: lines whose quantity
// strictly exceeded the ledger balance at evaluation time.
type MissingStock struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Short       int    `json:"short"`
}

// Stats are the aggregate results of one simulation run.
type Stats struct {
	TotalOrders         int                      `json:"total_orders"`
	FulfillableOrders   int                      `json:"fulfillable_orders"`
	UnfulfillableOrders int                      `json:"unfulfillable_orders"`
	FulfillableValue    decimal.Decimal          `json:"fulfillable_value"`
	UnfulfillableValue  decimal.Decimal          `json:"unfulfillable_value"`
	ByShipping          map[string]ShippingStats `json:"by_shipping,omitempty"`
	MissingStock        []MissingStock           `json:"missing_stock,omitempty"`
}

// Run is a persisted simulation outcome.
type Run struct {
	ID         string      `json:"id"`
	CreatedAt  string      `json:"created_at" format:"date-time"`
	Lines      []OrderLine `json:"lines"`
	Orders     []Order     `json:"orders"`
	Ledger     Ledger      `json:"ledger"`
	Stats      Stats       `json:"stats"`
	DataErrors []DataError `json:"data_errors,omitempty"`
}

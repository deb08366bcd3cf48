package server

import (
	"github.com/shopspring/decimal"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/repo"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
)

// Request payloads

type OrderLineRequest struct {
	OrderID        string `json:"order_id"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity" minimum:"0"`
	ShippingMethod string `json:"shipping_method,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	LineTotal      string `json:"line_total,omitempty"`
}

type StockRequest struct {
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
}

type SimulateRequest struct {
	Orders []OrderLineRequest `json:"orders"`
	Stock  []StockRequest     `json:"stock"`
}

type ToggleRequest struct {
	Fulfillable bool `json:"fulfillable"`
	Force       bool `json:"force,omitempty"`
}

type ValidateRulesRequest struct {
	Rules []rules.Rule `json:"rules"`
}

// Response payloads

type RunLineResponse struct {
	OrderID        string `json:"order_id"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	ShippingMethod string `json:"shipping_method,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	LineTotal      string `json:"line_total"`
	StatusNote     string `json:"status_note,omitempty"`
	SystemNote     string `json:"system_note,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Fulfillable    bool   `json:"fulfillable"`
	Excluded       bool   `json:"excluded"`
	ExcludedQty    *int   `json:"excluded_qty,omitempty"`
	ReportHidden   bool   `json:"report_hidden"`
}

type OrderResponse struct {
	ID          string `json:"id"`
	Lines       []int  `json:"lines"`
	Fulfillable bool   `json:"fulfillable"`
	MultiItem   bool   `json:"multi_item"`
}

type ShippingStatsResponse struct {
	Orders        int    `json:"orders"`
	Fulfillable   int    `json:"fulfillable"`
	Unfulfillable int    `json:"unfulfillable"`
	Value         string `json:"value"`
}

type StatsResponse struct {
	TotalOrders         int                              `json:"total_orders"`
	FulfillableOrders   int                              `json:"fulfillable_orders"`
	UnfulfillableOrders int                              `json:"unfulfillable_orders"`
	FulfillableValue    string                           `json:"fulfillable_value"`
	UnfulfillableValue  string                           `json:"unfulfillable_value"`
	ByShipping          map[string]ShippingStatsResponse `json:"by_shipping,omitempty"`
	MissingStock        []domain.MissingStock            `json:"missing_stock,omitempty"`
}

type RunResponse struct {
	ID         string             `json:"id"`
	CreatedAt  string             `json:"created_at" format:"date-time"`
	Lines      []RunLineResponse  `json:"lines"`
	Orders     []OrderResponse    `json:"orders"`
	Ledger     map[string]int     `json:"ledger"`
	Stats      StatsResponse      `json:"stats"`
	DataErrors []domain.DataError `json:"data_errors,omitempty"`
}

type RunSummaryResponse struct {
	ID        string        `json:"id"`
	CreatedAt string        `json:"created_at" format:"date-time"`
	Stats     StatsResponse `json:"stats"`
}

type ValidationIssue struct {
	Rule   string `json:"rule"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

type ValidateRulesResponse struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

type OperatorResponse struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	NeedsValue bool   `json:"needs_value"`
}

func orderLines(reqs []OrderLineRequest) ([]domain.OrderLine, error) {
	out := make([]domain.OrderLine, 0, len(reqs))
	for _, r := range reqs {
		total := decimal.Zero
		if r.LineTotal != "" {
			d, err := decimal.NewFromString(r.LineTotal)
			if err != nil {
				return nil, err
			}
			total = d
		}
		out = append(out, domain.OrderLine{
			OrderID:        r.OrderID,
			SKU:            r.SKU,
			Quantity:       r.Quantity,
			ShippingMethod: r.ShippingMethod,
			ProductName:    r.ProductName,
			LineTotal:      total,
		})
	}
	return out, nil
}

func stockRecords(reqs []StockRequest) []domain.StockRecord {
	out := make([]domain.StockRecord, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, domain.StockRecord{SKU: r.SKU, Quantity: r.Quantity, ProductName: r.ProductName})
	}
	return out
}

func runResponse(run domain.Run) RunResponse {
	lines := make([]RunLineResponse, 0, len(run.Lines))
	for _, l := range run.Lines {
		lines = append(lines, RunLineResponse{
			OrderID:        l.OrderID,
			SKU:            l.SKU,
			Quantity:       l.Quantity,
			ShippingMethod: l.ShippingMethod,
			ProductName:    l.ProductName,
			LineTotal:      l.LineTotal.String(),
			StatusNote:     l.StatusNote,
			SystemNote:     l.SystemNote,
			Priority:       l.Priority,
			Fulfillable:    l.Fulfillable,
			Excluded:       l.Excluded,
			ExcludedQty:    l.ExcludedQty,
			ReportHidden:   l.ReportHidden,
		})
	}
	orders := make([]OrderResponse, 0, len(run.Orders))
	for _, o := range run.Orders {
		orders = append(orders, OrderResponse{ID: o.ID, Lines: o.Lines, Fulfillable: o.Fulfillable, MultiItem: o.MultiItem})
	}
	return RunResponse{
		ID:         run.ID,
		CreatedAt:  run.CreatedAt,
		Lines:      lines,
		Orders:     orders,
		Ledger:     run.Ledger,
		Stats:      statsResponse(run.Stats),
		DataErrors: run.DataErrors,
	}
}

func statsResponse(s domain.Stats) StatsResponse {
	out := StatsResponse{
		TotalOrders:         s.TotalOrders,
		FulfillableOrders:   s.FulfillableOrders,
		UnfulfillableOrders: s.UnfulfillableOrders,
		FulfillableValue:    s.FulfillableValue.String(),
		UnfulfillableValue:  s.UnfulfillableValue.String(),
		MissingStock:        s.MissingStock,
	}
	if len(s.ByShipping) > 0 {
		out.ByShipping = make(map[string]ShippingStatsResponse, len(s.ByShipping))
		for method, st := range s.ByShipping {
			out.ByShipping[method] = ShippingStatsResponse{
				Orders:        st.Orders,
				Fulfillable:   st.Fulfillable,
				Unfulfillable: st.Unfulfillable,
				Value:         st.Value.String(),
			}
		}
	}
	return out
}

func runSummaries(items []repo.RunSummary) []RunSummaryResponse {
	out := make([]RunSummaryResponse, 0, len(items))
	for _, it := range items {
		out = append(out, RunSummaryResponse{ID: it.ID, CreatedAt: it.CreatedAt, Stats: statsResponse(it.Stats)})
	}
	return out
}

func validationIssues(errs domain.ValidationErrors) []ValidationIssue {
	out := make([]ValidationIssue, 0, len(errs))
	for _, e := range errs {
		out = append(out, ValidationIssue{Rule: e.Rule, Field: e.Field, Reason: e.Reason})
	}
	return out
}

package sftsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal fulfillment HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// OrderLineInput is one order line submitted for simulation.
type OrderLineInput struct {
	OrderID        string `json:"order_id"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	ShippingMethod string `json:"shipping_method,omitempty"`
	ProductName    string `json:"product_name,omitempty"`
	LineTotal      string `json:"line_total,omitempty"`
}

// StockInput is one SKU's available quantity.
type StockInput struct {
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
}

// RunLine is one annotated line of a persisted run.
type RunLine struct {
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

// Order groups a run's lines by order identifier.
type Order struct {
	ID          string `json:"id"`
	Lines       []int  `json:"lines"`
	Fulfillable bool   `json:"fulfillable"`
	MultiItem   bool   `json:"multi_item"`
}

// Stats summarizes a run.
type Stats struct {
	TotalOrders         int    `json:"total_orders"`
	FulfillableOrders   int    `json:"fulfillable_orders"`
	UnfulfillableOrders int    `json:"unfulfillable_orders"`
	FulfillableValue    string `json:"fulfillable_value"`
	UnfulfillableValue  string `json:"unfulfillable_value"`
}

// Run is a persisted simulation outcome (partial).
type Run struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Lines     []RunLine      `json:"lines"`
	Orders    []Order        `json:"orders"`
	Ledger    map[string]int `json:"ledger"`
	Stats     Stats          `json:"stats"`
}

// RunSummary is a list entry from the runs index.
type RunSummary struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Stats     Stats  `json:"stats"`
}

// ValidationIssue is one structural problem in a rule set.
type ValidationIssue struct {
	Rule   string `json:"rule"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// ValidationResult wraps the rule validation response.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateRun submits orders and stock for simulation.
func (c *Client) CreateRun(ctx context.Context, orders []OrderLineInput, stock []StockInput) (Run, error) {
	body := map[string]any{
		"orders": orders,
		"stock":  stock,
	}
	var resp Run
	err := c.do(ctx, http.MethodPost, "v0/runs", body, &resp)
	return resp, err
}

// ListRuns returns the persisted run index.
func (c *Client) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var resp []RunSummary
	err := c.do(ctx, http.MethodGet, "v0/runs", nil, &resp)
	return resp, err
}

// GetRun fetches one run by id.
func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var resp Run
	endpoint := fmt.Sprintf("v0/runs/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ToggleOrder flips an order's fulfillment status within a run. force
// allows the ledger to go negative.
func (c *Client) ToggleOrder(ctx context.Context, runID, orderID string, fulfillable, force bool) (Run, error) {
	body := map[string]any{
		"fulfillable": fulfillable,
		"force":       force,
	}
	var resp Run
	endpoint := fmt.Sprintf("v0/runs/%s/orders/%s/toggle", url.PathEscape(runID), url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ValidateRules checks a rule set without applying it. Rules are passed
// through as raw JSON-compatible values.
func (c *Client) ValidateRules(ctx context.Context, ruleSet any) (ValidationResult, error) {
	body := map[string]any{"rules": ruleSet}
	var resp ValidationResult
	err := c.do(ctx, http.MethodPost, "v0/rules/validate", body, &resp)
	return resp, err
}

// GetConfig fetches the server's effective configuration as raw JSON.
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "v0/config", nil, &resp)
	return resp, err
}

// PutConfig replaces the server's configuration.
func (c *Client) PutConfig(ctx context.Context, cfg any) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPut, "v0/config", cfg, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
)

// Config models fulfillment.yml: the rule set, the column mappings that
// align source spreadsheet headers to canonical fields, and general
// settings. It round-trips losslessly through Save/Load.
type Config struct {
	Rules          []rules.Rule   `yaml:"rules" json:"rules"`
	ColumnMappings ColumnMappings `yaml:"column_mappings" json:"column_mappings"`
	Settings       Settings       `yaml:"settings" json:"settings"`
}

type ColumnMappings struct {
	Orders OrderColumns `yaml:"orders" json:"orders"`
	Stock  StockColumns `yaml:"stock" json:"stock"`
}

// OrderColumns names the source columns for the orders table.
type OrderColumns struct {
	OrderID     string `yaml:"order_id" json:"order_id"`
	SKU         string `yaml:"sku" json:"sku"`
	Quantity    string `yaml:"quantity" json:"quantity"`
	Shipping    string `yaml:"shipping" json:"shipping"`
	Total       string `yaml:"total" json:"total"`
	ProductName string `yaml:"product_name" json:"product_name"`
}

// StockColumns names the source columns for the stock table.
type StockColumns struct {
	SKU         string `yaml:"sku" json:"sku"`
	Quantity    string `yaml:"quantity" json:"quantity"`
	ProductName string `yaml:"product_name" json:"product_name"`
}

// Set points one canonical field of the named table at a source column
// header. Table is "orders" or "stock"; field names follow the yaml keys.
func (m *ColumnMappings) Set(table, field, header string) error {
	switch table {
	case "orders":
		switch field {
		case "order_id":
			m.Orders.OrderID = header
		case "sku":
			m.Orders.SKU = header
		case "quantity":
			m.Orders.Quantity = header
		case "shipping":
			m.Orders.Shipping = header
		case "total":
			m.Orders.Total = header
		case "product_name":
			m.Orders.ProductName = header
		default:
			return fmt.Errorf("unknown orders field %q", field)
		}
	case "stock":
		switch field {
		case "sku":
			m.Stock.SKU = header
		case "quantity":
			m.Stock.Quantity = header
		case "product_name":
			m.Stock.ProductName = header
		default:
			return fmt.Errorf("unknown stock field %q", field)
		}
	default:
		return fmt.Errorf("unknown table %q, want orders or stock", table)
	}
	return nil
}

type Settings struct {
	// RepeatNote is appended to a line's system note when the order+SKU
	// pair was fulfilled in a previous run.
	RepeatNote string `yaml:"repeat_note" json:"repeat_note"`
	// RequireKnownFields makes rule validation reject conditions against
	// fields absent from the line schema.
	RequireKnownFields bool `yaml:"require_known_fields" json:"require_known_fields"`
	// SaveAttempts bounds lock acquisition retries on save.
	SaveAttempts int `yaml:"save_attempts" json:"save_attempts"`
	// SaveBackoffMS is the fixed delay between lock attempts.
	SaveBackoffMS int `yaml:"save_backoff_ms" json:"save_backoff_ms"`
}

// Backoff returns the configured inter-attempt delay.
func (s Settings) Backoff() time.Duration {
	return time.Duration(s.SaveBackoffMS) * time.Millisecond
}

// Validate ensures the config meets required structure. Rule-set
// validation is the rule engine's job and is not duplicated here.
func (c *Config) Validate() error {
	if c.ColumnMappings.Orders.OrderID == "" {
		return fmt.Errorf("config.column_mappings.orders.order_id is required")
	}
	if c.ColumnMappings.Orders.SKU == "" {
		return fmt.Errorf("config.column_mappings.orders.sku is required")
	}
	if c.ColumnMappings.Orders.Quantity == "" {
		return fmt.Errorf("config.column_mappings.orders.quantity is required")
	}
	if c.ColumnMappings.Stock.SKU == "" {
		return fmt.Errorf("config.column_mappings.stock.sku is required")
	}
	if c.ColumnMappings.Stock.Quantity == "" {
		return fmt.Errorf("config.column_mappings.stock.quantity is required")
	}
	if c.Settings.SaveAttempts < 1 {
		return fmt.Errorf("config.settings.save_attempts must be at least 1")
	}
	if c.Settings.SaveBackoffMS < 0 {
		return fmt.Errorf("config.settings.save_backoff_ms must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "fulfillment.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func applyDefaults(cfg *Config) {
	if cfg.Settings.RepeatNote == "" {
		cfg.Settings.RepeatNote = "repeat order"
	}
	if cfg.Settings.SaveAttempts == 0 {
		cfg.Settings.SaveAttempts = 5
	}
	if cfg.Settings.SaveBackoffMS == 0 {
		cfg.Settings.SaveBackoffMS = 200
	}
}

const defaultTemplate = `rules:
  - name: flag-priority-couriers
    conditions:
      - field: shipping_method
        operator: contains
        value: Express
    actions:
      - type: SET_PRIORITY
        value: high

column_mappings:
  orders:
    order_id: Name
    sku: Lineitem sku
    quantity: Lineitem quantity
    shipping: Shipping Method
    total: Total
    product_name: Lineitem name
  stock:
    sku: SKU
    quantity: Stock
    product_name: Product name

settings:
  repeat_note: repeat order
  require_known_fields: true
  save_attempts: 5
  save_backoff_ms: 200
`

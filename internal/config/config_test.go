package config_test

import (
	"testing"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/config"
)

func TestColumnMappingsSet(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ColumnMappings.Set("orders", "sku", "Variant SKU"); err != nil {
		t.Fatalf("set orders.sku: %v", err)
	}
	if cfg.ColumnMappings.Orders.SKU != "Variant SKU" {
		t.Fatalf("orders.sku = %q", cfg.ColumnMappings.Orders.SKU)
	}
	if err := cfg.ColumnMappings.Set("stock", "quantity", "On hand"); err != nil {
		t.Fatalf("set stock.quantity: %v", err)
	}
	if cfg.ColumnMappings.Stock.Quantity != "On hand" {
		t.Fatalf("stock.quantity = %q", cfg.ColumnMappings.Stock.Quantity)
	}
}

func TestColumnMappingsSetRejectsUnknown(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ColumnMappings.Set("orders", "nope", "X"); err == nil {
		t.Fatalf("unknown orders field accepted")
	}
	if err := cfg.ColumnMappings.Set("stock", "nope", "X"); err == nil {
		t.Fatalf("unknown stock field accepted")
	}
	if err := cfg.ColumnMappings.Set("neither", "sku", "X"); err == nil {
		t.Fatalf("unknown table accepted")
	}
}

func TestColumnMappingsSetPersists(t *testing.T) {
	store := newTestStore(t)
	cfg := config.Default()
	if err := cfg.ColumnMappings.Set("orders", "quantity", "Qty"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ColumnMappings.Orders.Quantity != "Qty" {
		t.Fatalf("mapping not persisted: %q", got.ColumnMappings.Orders.Quantity)
	}
}

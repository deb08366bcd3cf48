package domain_test

import (
	"testing"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

func TestGroupOrdersPreservesFirstSeenOrder(t *testing.T) {
	lines := []domain.OrderLine{
		{OrderID: "B", SKU: "1"},
		{OrderID: "A", SKU: "2"},
		{OrderID: "B", SKU: "3"},
	}
	orders := domain.GroupOrders(lines)
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "B" || orders[1].ID != "A" {
		t.Fatalf("grouping must preserve first-seen order: %+v", orders)
	}
	if !orders[0].MultiItem || orders[1].MultiItem {
		t.Fatalf("multi-item detection wrong: %+v", orders)
	}
	if got := orders[0].Lines; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("line indices wrong: %v", got)
	}
}

func TestLedgerClone(t *testing.T) {
	l := domain.Ledger{"a": 1}
	c := l.Clone()
	c["a"] = 5
	if l["a"] != 1 {
		t.Fatalf("clone shares storage")
	}
}

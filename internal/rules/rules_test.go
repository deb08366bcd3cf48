package rules_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/rules"
)

func sampleLines() []domain.OrderLine {
	return []domain.OrderLine{
		{OrderID: "1001", SKU: "5170", Quantity: 2, ShippingMethod: "Express", LineTotal: decimal.NewFromInt(20)},
		{OrderID: "1002", SKU: "900", Quantity: 5, ShippingMethod: "Standard", LineTotal: decimal.NewFromInt(50)},
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	ruleSet := []rules.Rule{
		{
			// no name, unknown operator, unknown action type
			Conditions: []rules.Condition{{Field: "sku", Operator: "matches", Value: "x"}},
			Actions:    []rules.Action{{Type: "PAINT_RED", Value: "x"}},
		},
		{
			Name:       "half-broken",
			Conditions: []rules.Condition{{Field: "no_such_field", Operator: "equals", Value: "x"}},
			Actions:    []rules.Action{{Type: rules.ActionAddTag}}, // missing value
		},
	}
	errs := rules.Validate(ruleSet, true)
	if len(errs) < 5 {
		t.Fatalf("expected every error collected, got %d: %v", len(errs), errs)
	}
	// Unnamed rules are reported by position.
	found := false
	for _, e := range errs {
		if e.Rule == "#1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("unnamed rule not reported by position: %v", errs)
	}
}

func TestValidateUnknownFieldTolerated(t *testing.T) {
	ruleSet := []rules.Rule{{
		Name:       "loose",
		Conditions: []rules.Condition{{Field: "custom_field", Operator: "equals", Value: "x"}},
		Actions:    []rules.Action{{Type: rules.ActionSetStatus, Value: "ok"}},
	}}
	if errs := rules.Validate(ruleSet, false); len(errs) != 0 {
		t.Fatalf("unknown field should pass when not required: %v", errs)
	}
	if errs := rules.Validate(ruleSet, true); len(errs) != 1 {
		t.Fatalf("unknown field should fail when required: %v", errs)
	}
}

func TestApplyAddTagIdempotent(t *testing.T) {
	ruleSet := []rules.Rule{
		{
			Name:       "tag-express",
			Conditions: []rules.Condition{{Field: "shipping_method", Operator: "equals", Value: "Express"}},
			Actions:    []rules.Action{{Type: rules.ActionAddTag, Value: "priority"}},
		},
		{
			Name:       "tag-express-again",
			Conditions: []rules.Condition{{Field: "shipping_method", Operator: "equals", Value: "Express"}},
			Actions:    []rules.Action{{Type: rules.ActionAddTag, Value: "priority"}},
		},
	}
	out, err := rules.Apply(sampleLines(), ruleSet, true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := out[0].StatusNote; got != "priority" {
		t.Fatalf("tag applied twice: %q", got)
	}
	if out[1].StatusNote != "" {
		t.Fatalf("non-matching line tagged: %q", out[1].StatusNote)
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	ruleSet := []rules.Rule{
		{
			Name:       "first",
			Conditions: []rules.Condition{{Field: "order_id", Operator: "equals", Value: "1001"}},
			Actions:    []rules.Action{{Type: rules.ActionSetPriority, Value: "low"}},
		},
		{
			Name:       "second",
			Conditions: []rules.Condition{{Field: "order_id", Operator: "equals", Value: "1001"}},
			Actions:    []rules.Action{{Type: rules.ActionSetPriority, Value: "high"}},
		},
	}
	out, err := rules.Apply(sampleLines(), ruleSet, true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].Priority != "high" {
		t.Fatalf("priority = %q, want the later rule's value", out[0].Priority)
	}
}

func TestApplyExcludeSKUPreservesQuantity(t *testing.T) {
	ruleSet := []rules.Rule{{
		Name:       "drop-sample-sku",
		Conditions: []rules.Condition{{Field: "sku", Operator: "equals", Value: "5170"}},
		Actions:    []rules.Action{{Type: rules.ActionExcludeSKU}},
	}}
	out, err := rules.Apply(sampleLines(), ruleSet, true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	l := out[0]
	if !l.Excluded {
		t.Fatalf("line not excluded")
	}
	if l.Quantity != 2 {
		t.Fatalf("exclusion must not destroy quantity, got %d", l.Quantity)
	}
	if l.ExcludedQty == nil || *l.ExcludedQty != 2 {
		t.Fatalf("excluded qty shadow missing: %v", l.ExcludedQty)
	}
}

func TestApplyExcludeFromReport(t *testing.T) {
	ruleSet := []rules.Rule{{
		Name:       "hide-standard",
		Conditions: []rules.Condition{{Field: "shipping_method", Operator: "equals", Value: "Standard"}},
		Actions:    []rules.Action{{Type: rules.ActionExcludeFromReport}},
	}}
	out, err := rules.Apply(sampleLines(), ruleSet, true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].ReportHidden {
		t.Fatalf("express line hidden")
	}
	if !out[1].ReportHidden {
		t.Fatalf("standard line not hidden")
	}
	if out[1].Excluded {
		t.Fatalf("report exclusion must not imply allocation exclusion")
	}
}

func TestApplyConjunctiveConditions(t *testing.T) {
	ruleSet := []rules.Rule{{
		Name: "both",
		Conditions: []rules.Condition{
			{Field: "shipping_method", Operator: "equals", Value: "Express"},
			{Field: "quantity", Operator: "greater_than", Value: "3"},
		},
		Actions: []rules.Action{{Type: rules.ActionSetStatus, Value: "checked"}},
	}}
	out, err := rules.Apply(sampleLines(), ruleSet, true)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, l := range out {
		if l.StatusNote == "checked" {
			t.Fatalf("no line satisfies both conditions, yet %s matched", l.OrderID)
		}
	}
}

func TestApplyRejectsInvalidSetBeforeMutating(t *testing.T) {
	lines := sampleLines()
	ruleSet := []rules.Rule{
		{
			Name:       "good",
			Conditions: []rules.Condition{{Field: "sku", Operator: "equals", Value: "5170"}},
			Actions:    []rules.Action{{Type: rules.ActionSetStatus, Value: "touched"}},
		},
		{Name: "bad"}, // no conditions, no actions
	}
	_, err := rules.Apply(lines, ruleSet, true)
	var ve domain.ValidationErrors
	if !errors.As(err, &ve) || !strings.Contains(err.Error(), "invalid rule set") {
		t.Fatalf("expected rule set rejection, got %v", err)
	}
	if lines[0].StatusNote != "" {
		t.Fatalf("lines mutated despite invalid set")
	}
}

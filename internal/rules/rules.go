// Package rules evaluates declarative annotation rules over order lines.
//
// Rules apply in list order, conditions within a rule are conjunctive, and
// a later rule's actions may overwrite an earlier rule's annotations on
// the same line (last write wins). Validation happens once, before any
// line is touched, and collects every structural error.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/domain"
)

// Condition matches one field of a line against a value through a
// registered operator.
type Condition struct {
	Field    string `yaml:"field" json:"field"`
	Operator string `yaml:"operator" json:"operator"`
	Value    string `yaml:"value" json:"value,omitempty"`
}

// Action is a typed mutation applied to matching lines.
type Action struct {
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value" json:"value,omitempty"`
}

// Rule is an ordered definition: all conditions must match for the
// actions to run.
type Rule struct {
	Name       string      `yaml:"name" json:"name"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Actions    []Action    `yaml:"actions" json:"actions"`
}

// Action types.
const (
	ActionAddTag            = "ADD_TAG"
	ActionSetStatus         = "SET_STATUS"
	ActionSetPriority       = "SET_PRIORITY"
	ActionExcludeFromReport = "EXCLUDE_FROM_REPORT"
	ActionExcludeSKU        = "EXCLUDE_SKU"
)

func actionNeedsValue(t string) bool {
	switch t {
	case ActionExcludeFromReport, ActionExcludeSKU:
		return false
	default:
		return true
	}
}

func knownAction(t string) bool {
	switch t {
	case ActionAddTag, ActionSetStatus, ActionSetPriority, ActionExcludeFromReport, ActionExcludeSKU:
		return true
	default:
		return false
	}
}

// fieldGetters defines the line schema the engine evaluates against.
var fieldGetters = map[string]func(l *domain.OrderLine) string{
	"order_id":        func(l *domain.OrderLine) string { return l.OrderID },
	"sku":             func(l *domain.OrderLine) string { return l.SKU },
	"quantity":        func(l *domain.OrderLine) string { return strconv.Itoa(l.Quantity) },
	"shipping_method": func(l *domain.OrderLine) string { return l.ShippingMethod },
	"product_name":    func(l *domain.OrderLine) string { return l.ProductName },
	"line_total":      func(l *domain.OrderLine) string { return l.LineTotal.String() },
	"status_note":     func(l *domain.OrderLine) string { return l.StatusNote },
	"system_note":     func(l *domain.OrderLine) string { return l.SystemNote },
	"priority":        func(l *domain.OrderLine) string { return l.Priority },
	"fulfillable":     func(l *domain.OrderLine) string { return strconv.FormatBool(l.Fulfillable) },
}

// Fields lists the known line schema in sorted order.
func Fields() []string {
	out := make([]string, 0, len(fieldGetters))
	for f := range fieldGetters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validate checks the whole rule set and returns every structural error
// found, or nil. requireKnownFields additionally rejects conditions whose
// field is absent from the line schema; at apply time unknown fields are
// tolerated as no-match either way.
func Validate(ruleSet []Rule, requireKnownFields bool) domain.ValidationErrors {
	var errs domain.ValidationErrors
	for i, r := range ruleSet {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			errs = append(errs, domain.ValidationError{Rule: name, Reason: "rule name is required"})
		}
		if len(r.Conditions) == 0 {
			errs = append(errs, domain.ValidationError{Rule: name, Reason: "at least one condition is required"})
		}
		for _, c := range r.Conditions {
			op, ok := LookupOperator(c.Operator)
			if !ok {
				errs = append(errs, domain.ValidationError{Rule: name, Field: c.Field,
					Reason: fmt.Sprintf("unknown operator %q", c.Operator)})
				continue
			}
			if c.Field == "" {
				errs = append(errs, domain.ValidationError{Rule: name, Reason: "condition field is required"})
			} else if requireKnownFields {
				if _, known := fieldGetters[c.Field]; !known {
					errs = append(errs, domain.ValidationError{Rule: name, Field: c.Field,
						Reason: "unknown field"})
				}
			}
			if op.NeedsValue && c.Value == "" {
				errs = append(errs, domain.ValidationError{Rule: name, Field: c.Field,
					Reason: fmt.Sprintf("operator %q requires a value", c.Operator)})
			}
		}
		if len(r.Actions) == 0 {
			errs = append(errs, domain.ValidationError{Rule: name, Reason: "at least one action is required"})
		}
		for _, a := range r.Actions {
			if !knownAction(a.Type) {
				errs = append(errs, domain.ValidationError{Rule: name,
					Reason: fmt.Sprintf("unknown action type %q", a.Type)})
				continue
			}
			if actionNeedsValue(a.Type) && a.Value == "" {
				errs = append(errs, domain.ValidationError{Rule: name,
					Reason: fmt.Sprintf("action %s requires a value", a.Type)})
			}
		}
	}
	return errs
}

// Apply validates the rule set and then mutates annotations on the given
// lines in rule order. If validation fails, no line is touched and the
// full error list is returned.
func Apply(lines []domain.OrderLine, ruleSet []Rule, requireKnownFields bool) ([]domain.OrderLine, error) {
	if errs := Validate(ruleSet, requireKnownFields); len(errs) > 0 {
		return lines, errs
	}
	for i := range lines {
		for _, r := range ruleSet {
			if matches(&lines[i], r.Conditions) {
				for _, a := range r.Actions {
					applyAction(&lines[i], a)
				}
			}
		}
	}
	return lines, nil
}

func matches(l *domain.OrderLine, conds []Condition) bool {
	for _, c := range conds {
		get, ok := fieldGetters[c.Field]
		if !ok {
			// Schema drift tolerance: unknown field means no match,
			// not an error.
			return false
		}
		op, ok := LookupOperator(c.Operator)
		if !ok {
			return false
		}
		if !op.Eval(get(l), c.Value) {
			return false
		}
	}
	return true
}

func applyAction(l *domain.OrderLine, a Action) {
	switch a.Type {
	case ActionAddTag:
		l.StatusNote = addTag(l.StatusNote, a.Value)
	case ActionSetStatus:
		l.StatusNote = a.Value
	case ActionSetPriority:
		l.Priority = a.Value
	case ActionExcludeFromReport:
		l.ReportHidden = true
	case ActionExcludeSKU:
		// Non-destructive: the quantity field stays intact and the
		// pre-exclusion value is preserved for recovery.
		if l.ExcludedQty == nil {
			q := l.Quantity
			l.ExcludedQty = &q
		}
		l.Excluded = true
	}
}

// addTag appends tag to a comma-separated note, never duplicating it.
func addTag(note, tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return note
	}
	if note == "" {
		return tag
	}
	for _, existing := range strings.Split(note, ",") {
		if strings.TrimSpace(existing) == tag {
			return note
		}
	}
	return note + ", " + tag
}

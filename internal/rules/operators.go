package rules

import (
	"sort"
	"strconv"
	"strings"
)

// FieldKind classifies which field types an operator applies to. The
// registry below is the single authority shared by rule evaluation and
// any filter/query surface, so operator semantics cannot drift.
type FieldKind int

const (
	KindGeneral FieldKind = iota
	KindText
	KindNumeric
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	default:
		return "general"
	}
}

// Operator pairs an evaluation function with its display metadata,
// selected by one key.
type Operator struct {
	Key        string
	Label      string
	Kind       FieldKind
	NeedsValue bool
	Eval       func(cell, value string) bool
}

var registry = map[string]Operator{
	"equals": {
		Key: "equals", Label: "equals", Kind: KindGeneral, NeedsValue: true,
		Eval: func(cell, value string) bool { return cell == value },
	},
	"not_equals": {
		Key: "not_equals", Label: "does not equal", Kind: KindGeneral, NeedsValue: true,
		Eval: func(cell, value string) bool { return cell != value },
	},
	"contains": {
		Key: "contains", Label: "contains", Kind: KindText, NeedsValue: true,
		Eval: strings.Contains,
	},
	"not_contains": {
		Key: "not_contains", Label: "does not contain", Kind: KindText, NeedsValue: true,
		Eval: func(cell, value string) bool { return !strings.Contains(cell, value) },
	},
	"starts_with": {
		Key: "starts_with", Label: "starts with", Kind: KindText, NeedsValue: true,
		Eval: strings.HasPrefix,
	},
	"ends_with": {
		Key: "ends_with", Label: "ends with", Kind: KindText, NeedsValue: true,
		Eval: strings.HasSuffix,
	},
	"greater_than": {
		Key: "greater_than", Label: "greater than", Kind: KindNumeric, NeedsValue: true,
		Eval: numericCompare(func(a, b float64) bool { return a > b }),
	},
	"less_than": {
		Key: "less_than", Label: "less than", Kind: KindNumeric, NeedsValue: true,
		Eval: numericCompare(func(a, b float64) bool { return a < b }),
	},
	"greater_or_equal": {
		Key: "greater_or_equal", Label: "greater than or equal", Kind: KindNumeric, NeedsValue: true,
		Eval: numericCompare(func(a, b float64) bool { return a >= b }),
	},
	"less_or_equal": {
		Key: "less_or_equal", Label: "less than or equal", Kind: KindNumeric, NeedsValue: true,
		Eval: numericCompare(func(a, b float64) bool { return a <= b }),
	},
	"is_empty": {
		Key: "is_empty", Label: "is empty", Kind: KindGeneral, NeedsValue: false,
		Eval: func(cell, _ string) bool { return strings.TrimSpace(cell) == "" },
	},
	"is_not_empty": {
		Key: "is_not_empty", Label: "is not empty", Kind: KindGeneral, NeedsValue: false,
		Eval: func(cell, _ string) bool { return strings.TrimSpace(cell) != "" },
	},
}

// numericCompare lifts a float comparison into a cell/value evaluator.
// Unparseable operands never match.
func numericCompare(cmp func(a, b float64) bool) func(cell, value string) bool {
	return func(cell, value string) bool {
		a, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return false
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		return cmp(a, b)
	}
}

// LookupOperator returns the registered operator for key.
func LookupOperator(key string) (Operator, bool) {
	op, ok := registry[key]
	return op, ok
}

// Operators lists the registry in key order, for filter-building UIs and
// the API surface.
func Operators() []Operator {
	out := make([]Operator, 0, len(registry))
	for _, op := range registry {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

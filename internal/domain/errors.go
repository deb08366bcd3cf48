package domain

import (
	"fmt"
	"strings"
)

// DataError reports a malformed field in one input row. It never aborts a
// run; the offending line is carried through unfulfillable.
type DataError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e DataError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// ValidationError is one structural problem in a rule set. Validation
// collects every error before any rule is applied.
type ValidationError struct {
	Rule   string `json:"rule,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	if e.Rule == "" {
		return e.Reason
	}
	if e.Field == "" {
		return fmt.Sprintf("rule %q: %s", e.Rule, e.Reason)
	}
	return fmt.Sprintf("rule %q: %s: %s", e.Rule, e.Field, e.Reason)
}

// ValidationErrors is the full list collected for an invalid rule set.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("invalid rule set (%d errors): %s", len(e), strings.Join(msgs, "; "))
}

// ConflictError is returned when a toggle to fulfillable cannot be covered
// by the ledger. No mutation has been applied when it is returned.
type ConflictError struct {
	OrderID   string `json:"order_id"`
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for order %s: sku %s needs %d, have %d",
		e.OrderID, e.SKU, e.Requested, e.Available)
}

// PersistenceError reports a failed config save after retries are
// exhausted. The prior on-disk config is left untouched.
type PersistenceError struct {
	Path     string
	Attempts int
	Size     int
	Err      error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("save %s failed after %d attempts (%d bytes): %v",
		e.Path, e.Attempts, e.Size, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

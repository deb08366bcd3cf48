// Package sku canonicalizes stock-keeping unit identifiers.
//
// Spreadsheet sources routinely infer numeric types, so the same SKU
// arrives as "5170", "5170.0", " 5170 " or "07". Every SKU entering the
// simulator or the rule engine passes through Normalize exactly once, so
// ledger lookups and identity comparisons always agree.
package sku

import (
	"strconv"
	"strings"
)

// Normalize maps any representation of a SKU to one canonical string.
// Numeric-looking values are truncated to their integer part and rendered
// without a fractional suffix or leading zeros; anything else is returned
// trimmed, case preserved. Never fails: the fallback is the trimmed input.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}

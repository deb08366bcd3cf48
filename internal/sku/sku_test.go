package sku_test

import (
	"testing"

	"github.com/cognitiveclodfr/shopify-fulfillment-tool-sub001/internal/sku"
)

func TestNormalizeNumericForms(t *testing.T) {
	cases := map[string]string{
		"5170":    "5170",
		"5170.0":  "5170",
		" 5170 ":  "5170",
		"5170.00": "5170",
		"07":      "7",
		" 007 ":   "7",
		"0":       "0",
		"12.9":    "12", // truncation, not rounding
		"-42":     "-42",
		"1e3":     "1000",
	}
	for in, want := range cases {
		if got := sku.Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAlphanumericIsTrimmedIdentity(t *testing.T) {
	cases := map[string]string{
		"ABC-123":    "ABC-123",
		"  ABC-123 ": "ABC-123",
		"abC-123":    "abC-123", // case preserved
		"SKU 9":      "SKU 9",
	}
	for in, want := range cases {
		if got := sku.Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := sku.Normalize(""); got != "" {
		t.Fatalf("empty input: got %q", got)
	}
	if got := sku.Normalize("   "); got != "" {
		t.Fatalf("whitespace input: got %q", got)
	}
}

func TestSameLogicalSKUConverges(t *testing.T) {
	forms := []string{"5170", "5170.0", " 5170", "05170", "5170.000 "}
	want := sku.Normalize(forms[0])
	for _, f := range forms {
		if got := sku.Normalize(f); got != want {
			t.Fatalf("form %q diverged: %q != %q", f, got, want)
		}
	}
}

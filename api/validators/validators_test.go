package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/fuelstation-backend/pkg/errors"
)

type unloadBody struct {
	Liters     decimal.Decimal `json:"liters" validate:"gt=0"`
	InvoiceRef string          `json:"invoice_ref" validate:"required"`
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  Solar  ", 0, "Solar"},
		{"drops control characters", "Tank\x00 A\x1b", 0, "Tank A"},
		{"caps length", "Pertalite", 4, "Pert"},
		{"keeps whole runes", "Bénsin", 2, "B"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestDecodeJSONBodyValidatesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"liters":"0","invoice_ref":""}`))
	var body unloadBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	if details["liters"] == "" || details["invoice_ref"] != "is required" {
		t.Fatalf("unexpected details %+v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsTrailingDocument(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"liters":"5","invoice_ref":"INV-1"}{"liters":"9"}`))
	var body unloadBody
	if err := DecodeJSONBody(req, &body); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	padding := strings.Repeat(" ", maxBodyBytes)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"invoice_ref":"INV-1",`+padding+`"liters":"5"}`))
	var body unloadBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if v, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected default, got %d %v", v, err)
	}
}

func TestParseQueryTimeAcceptsDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-01", nil)
	got, err := ParseQueryTime(req, "from")
	if err != nil || got == nil || got.Day() != 1 {
		t.Fatalf("unexpected %v %v", got, err)
	}
	req = httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil)
	if _, err := ParseQueryTime(req, "from"); err == nil {
		t.Fatal("expected invalid date to fail")
	}
}

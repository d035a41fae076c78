package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/types"
)

type addressBody struct {
	City  string `json:"city" validate:"required"`
	State string `json:"state" validate:"required,len=2"`
}

type checkoutBody struct {
	Email   string      `json:"email" validate:"required,email"`
	Channel string      `json:"channel" validate:"required,oneof=whatsapp telegram"`
	Address addressBody `json:"address"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","channel":"whatsapp","extra":1}`))
	var body checkoutBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","channel":"sms","address":{"city":"","state":"SPX"}}`))
	var body checkoutBody
	err := DecodeJSONBody(req, &body)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(types.FieldErrors)
	if !ok {
		t.Fatalf("expected field details, got %#v", typed.Details())
	}
	for field, want := range map[string]string{
		"email":         "must be a valid email",
		"channel":       "must be one of: whatsapp telegram",
		"address.city":  "is required",
		"address.state": "must have length 2",
	} {
		if details[field] != want {
			t.Fatalf("field %s: expected %q got %q", field, want, details[field])
		}
	}
}

func TestDecodeJSONBodyEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var body checkoutBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 20, 1, 100); err == nil {
		t.Fatal("expected out of range error")
	}
	v, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 20, 1, 100)
	if err != nil || v != 20 {
		t.Fatalf("expected default 20, got %d (%v)", v, err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	if _, err := ParseUUIDParam(req, "productId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type shippingBody struct {
	State      string `json:"state" validate:"required,uf"`
	PostalCode string `json:"postal_code" validate:"required,cep"`
}

func TestBrazilianAddressTags(t *testing.T) {
	ok := shippingBody{State: "sp", PostalCode: "01305-000"}
	if err := Struct(ok); err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}
	if err := Struct(shippingBody{State: "SP", PostalCode: "01305000"}); err != nil {
		t.Fatalf("unhyphenated CEP should pass, got %v", err)
	}

	err := Struct(shippingBody{State: "XX", PostalCode: "1234"})
	details, _ := pkgerrors.As(err).Details().(types.FieldErrors)
	if details["state"] != "must be a Brazilian state code" || details["postal_code"] != "must be a CEP like 01000-000" {
		t.Fatalf("unexpected details %#v", details)
	}
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"state":"SP","postal_code":"01000-000"} {"state":"RJ"}`))
	var body shippingBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	big := `{"state":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	var body shippingBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  vestidos\x00\n ", 0); got != "vestidos" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("camisetão", 8); got != "camiset" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

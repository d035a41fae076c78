package checkout

import (
	"testing"

	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

func TestValidateLines_NoViolations(t *testing.T) {
	lines := []LineCheck{
		{ProductID: "p1", ProductName: "Camisa", Quantity: 1, Found: true, Active: true},
		{ProductID: "p2", ProductName: "Vestido", Variant: "M", Quantity: 2, Found: true, Active: true, VariantExists: true},
	}
	if err := ValidateLines(lines); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateLines_Violations(t *testing.T) {
	lines := []LineCheck{
		{ProductID: "gone", Quantity: 1},
		{ProductID: "off", ProductName: "Saia", Quantity: 1, Found: true},
		{ProductID: "p3", ProductName: "Vestido", Variant: "XG", Quantity: 1, Found: true, Active: true},
		{ProductID: "p4", ProductName: "Blusa", Quantity: 0, Found: true, Active: true},
		{ProductID: "ok", ProductName: "Camisa", Quantity: 1, Found: true, Active: true},
	}
	err := ValidateLines(lines)
	if err == nil {
		t.Fatal("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	violations, ok := typed.Details().(map[string]any)["violations"].([]LineViolation)
	if !ok {
		t.Fatalf("expected violations detail, got %#v", typed.Details())
	}
	want := []string{ReasonProductMissing, ReasonProductInactive, ReasonUnknownVariant, ReasonBadQuantity}
	if len(violations) != len(want) {
		t.Fatalf("expected %d violations, got %d", len(want), len(violations))
	}
	for i, reason := range want {
		if violations[i].Reason != reason {
			t.Fatalf("violation %d: expected %s, got %s", i, reason, violations[i].Reason)
		}
	}
}

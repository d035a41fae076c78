package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestStockCodesAreClientConflicts(t *testing.T) {
	for _, code := range []Code{CodeOutOfStock, CodeInsufficientStock} {
		meta := MetadataFor(code)
		if meta.HTTPStatus != http.StatusConflict {
			t.Fatalf("%s: expected 409, got %d", code, meta.HTTPStatus)
		}
		if !meta.DetailsAllowed || !meta.ExposeMessage || meta.Retryable {
			t.Fatalf("%s: unexpected metadata %+v", code, meta)
		}
	}
}

func TestServerCodesHideMessages(t *testing.T) {
	for _, code := range []Code{CodeInternal, CodeDependency} {
		meta := MetadataFor(code)
		if meta.ExposeMessage || !meta.Retryable {
			t.Fatalf("%s: unexpected metadata %+v", code, meta)
		}
	}
	if MetadataFor(CodeDependency).HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("dependency failures should be 503")
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "order id taken")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "CONFLICT: order id taken: boom" {
		t.Fatalf("unexpected text %q", wrapped.Error())
	}

	outer := fmt.Errorf("checkout: %w", wrapped)
	if !IsCode(outer, CodeConflict) || CodeOf(outer) != CodeConflict {
		t.Fatalf("code lost through fmt wrapping")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should read as internal")
	}
}

func TestWithDetailsOnNilIsSafe(t *testing.T) {
	var e *Error
	if e.WithDetails("x") != nil || e.Code() != CodeInternal || e.Message() != "" {
		t.Fatalf("nil receiver should stay nil")
	}
	if got := Newf(CodeValidation, "quantity %d too large", 1000).Message(); got != "quantity 1000 too large" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInspectReadsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey", TableName: "orders"}
	err := Wrap(CodeConflict, pgErr, "insert order")

	r := Inspect(err)
	if r.Code != CodeConflict || r.PGCode != "23505" || r.PGConstraint != "orders_pkey" {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(r.Chain) != 2 {
		t.Fatalf("expected two chain links, got %v", r.Chain)
	}
	fields := r.Fields()
	if fields["pg_table"] != "orders" {
		t.Fatalf("missing pg_table field: %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg values should be omitted")
	}
}

func TestInspectReadsPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("redeem: %w", &pq.Error{Code: "23514", Constraint: "coupons_uses_check"})
	r := Inspect(err)
	if r.PGCode != "23514" || r.PGConstraint != "coupons_uses_check" || r.Code != CodeInternal {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestInspectNil(t *testing.T) {
	if r := Inspect(nil); r.Message != "" || r.Chain != nil {
		t.Fatalf("expected empty report")
	}
}

package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

type stubDeadLetters struct {
	rows     []models.OutboxDLQ
	reason   string
	requeued uuid.UUID
	err      error
}

func (s *stubDeadLetters) List(_ context.Context, reason string, _ int) ([]models.OutboxDLQ, error) {
	s.reason = reason
	return s.rows, nil
}

func (s *stubDeadLetters) Requeue(_ context.Context, id uuid.UUID) error {
	s.requeued = id
	return s.err
}

func TestAdminDeadLetterList(t *testing.T) {
	msg := "chat not found"
	stub := &stubDeadLetters{rows: []models.OutboxDLQ{{
		EventID:      uuid.New(),
		EventType:    "order_created",
		AggregateID:  "VT-1",
		ErrorReason:  models.DLQReasonNonRetryable,
		ErrorMessage: &msg,
		FailedAt:     time.Now(),
	}}}
	rec := httptest.NewRecorder()
	AdminDeadLetterList(stub, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?reason=non_retryable", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []deadLetterResponse
	decodeData(t, rec, &out)
	if len(out) != 1 || out[0].Message != msg || stub.reason != models.DLQReasonNonRetryable {
		t.Fatalf("unexpected response %+v (reason %q)", out, stub.reason)
	}
}

func TestAdminDeadLetterListRejectsUnknownReason(t *testing.T) {
	rec := httptest.NewRecorder()
	AdminDeadLetterList(&stubDeadLetters{}, testLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?reason=bored", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminDeadLetterRequeue(t *testing.T) {
	id := uuid.New()
	stub := &stubDeadLetters{}
	rec := httptest.NewRecorder()
	AdminDeadLetterRequeue(stub, testLogger()).ServeHTTP(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "eventId", id.String()))
	if rec.Code != http.StatusNoContent || stub.requeued != id {
		t.Fatalf("expected 204 and requeue of %s, got %d %s", id, rec.Code, stub.requeued)
	}

	stub.err = pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
	rec = httptest.NewRecorder()
	AdminDeadLetterRequeue(stub, testLogger()).ServeHTTP(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "eventId", id.String()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

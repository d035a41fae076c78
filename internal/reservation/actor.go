package reservation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

// Actor identifies who holds a reservation. Holds follow the session, which
// owns the cart; the user id is recorded on the row and only identifies the
// holder when no session is present.
type Actor struct {
	SessionID string
	UserID    string
}

func (a Actor) normalized() Actor {
	return Actor{SessionID: strings.TrimSpace(a.SessionID), UserID: strings.TrimSpace(a.UserID)}
}

func (a Actor) validate() error {
	if a.SessionID == "" && a.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id or user id required")
	}
	return nil
}

func (a Actor) key() string {
	if a.SessionID != "" {
		return "s:" + a.SessionID
	}
	return "u:" + a.UserID
}

// ReservationID is the deterministic document id for an actor's hold on a
// product variant.
func ReservationID(actor Actor, productID uuid.UUID, variant string) string {
	actor = actor.normalized()
	return fmt.Sprintf("%s:%s:%s", actor.key(), productID.String(), strings.TrimSpace(variant))
}

// LineKey names a product variant on an order.
type LineKey struct {
	ProductID uuid.UUID
	Variant   string
}

// AllocationID is the row id of an order's claim on a product variant.
func AllocationID(orderID string, productID uuid.UUID, variant string) string {
	return fmt.Sprintf("o:%s:%s:%s", strings.TrimSpace(orderID), productID.String(), strings.TrimSpace(variant))
}

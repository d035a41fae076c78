package cart

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/internal/reservation"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
)

type reserver interface {
	Reserve(ctx context.Context, input reservation.ReserveInput) (*reservation.Result, error)
	ReleaseForActor(ctx context.Context, tx *gorm.DB, actor reservation.Actor) (int64, error)
}

// Service drives the per-line quantity state machine. Growing a line reserves
// first and commits only on success; shrinking commits first and releases
// stock best-effort.
type Service struct {
	store    Store
	reserver reserver
	logg     *logger.Logger
	inflight singleflight.Group
}

func NewService(store Store, reserver reserver, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if reserver == nil {
		return nil, fmt.Errorf("reservation service required")
	}
	return &Service{store: store, reserver: reserver, logg: logg}, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) ([]Line, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	lines, err := s.store.Lines(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return lines, nil
}

// Add puts one unit of the variant in the cart. A present line grows by one.
func (s *Service) Add(ctx context.Context, actor reservation.Actor, key LineKey) (*Line, error) {
	return s.grow(ctx, actor, key, true)
}

// Increment grows an existing line by one.
func (s *Service) Increment(ctx context.Context, actor reservation.Actor, key LineKey) (*Line, error) {
	return s.grow(ctx, actor, key, false)
}

func (s *Service) grow(ctx context.Context, actor reservation.Actor, key LineKey, allowAbsent bool) (*Line, error) {
	if err := requireSession(actor.SessionID); err != nil {
		return nil, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	flightKey := strings.Join([]string{actor.SessionID, key.ProductID, key.Variant}, fieldSeparator)
	value, err, _ := s.inflight.Do(flightKey, func() (any, error) {
		current, err := s.quantity(ctx, actor.SessionID, key)
		if err != nil {
			return nil, err
		}
		if current == 0 && !allowAbsent {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}

		next := current + 1
		if _, err := s.reserver.Reserve(ctx, reservation.ReserveInput{
			ProductID:   key.ProductID,
			VariantName: key.Variant,
			Quantity:    next,
			Actor:       actor,
		}); err != nil {
			return nil, err
		}

		if err := s.store.SetQuantity(ctx, actor.SessionID, key, next); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
		}
		return &Line{ProductID: key.ProductID, Variant: key.Variant, Quantity: next}, nil
	})
	if err != nil {
		return nil, err
	}
	line := *value.(*Line)
	return &line, nil
}

// Decrement shrinks a line by one, dropping it at zero. It returns nil when
// the line was removed.
func (s *Service) Decrement(ctx context.Context, actor reservation.Actor, key LineKey) (*Line, error) {
	if err := requireSession(actor.SessionID); err != nil {
		return nil, err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	current, err := s.quantity(ctx, actor.SessionID, key)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}

	next := current - 1
	if next == 0 {
		if err := s.store.Remove(ctx, actor.SessionID, key); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
		}
	} else if err := s.store.SetQuantity(ctx, actor.SessionID, key, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}

	s.shrinkReservation(ctx, actor, key, next)
	if next == 0 {
		return nil, nil
	}
	return &Line{ProductID: key.ProductID, Variant: key.Variant, Quantity: next}, nil
}

// Remove deletes a line regardless of quantity.
func (s *Service) Remove(ctx context.Context, actor reservation.Actor, key LineKey) error {
	if err := requireSession(actor.SessionID); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, actor.SessionID, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	s.shrinkReservation(ctx, actor, key, 0)
	return nil
}

// Clear empties the cart and then releases the session's holds best-effort.
func (s *Service) Clear(ctx context.Context, actor reservation.Actor) error {
	if err := requireSession(actor.SessionID); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, actor.SessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	if _, err := s.reserver.ReleaseForActor(ctx, nil, actor); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id": actor.SessionID,
			"error":      err.Error(),
		})
		s.logg.Warn(logCtx, "cart reservation release failed")
	}
	return nil
}

func (s *Service) shrinkReservation(ctx context.Context, actor reservation.Actor, key LineKey, quantity int) {
	_, err := s.reserver.Reserve(ctx, reservation.ReserveInput{
		ProductID:   key.ProductID,
		VariantName: key.Variant,
		Quantity:    quantity,
		Actor:       actor,
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id": actor.SessionID,
			"product_id": key.ProductID,
			"variant":    key.Variant,
			"quantity":   quantity,
			"error":      err.Error(),
		})
		s.logg.Warn(logCtx, "cart reservation shrink failed")
	}
}

func (s *Service) quantity(ctx context.Context, sessionID string, key LineKey) (int, error) {
	lines, err := s.store.Lines(ctx, sessionID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	for _, line := range lines {
		if line.Key() == key {
			return line.Quantity, nil
		}
	}
	return 0, nil
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	return nil
}

// normalizeKey trims the key to match the variant name reservations store.
func normalizeKey(key LineKey) (LineKey, error) {
	key = LineKey{ProductID: strings.TrimSpace(key.ProductID), Variant: strings.TrimSpace(key.Variant)}
	if key.ProductID == "" {
		return key, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if strings.Contains(key.ProductID, fieldSeparator) || strings.Contains(key.Variant, fieldSeparator) {
		return key, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line key")
	}
	return key, nil
}

package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitrine-commerce/vitrine-backend/pkg/db/models"
	pkgerrors "github.com/vitrine-commerce/vitrine-backend/pkg/errors"
)

const (
	defaultDLQPage = 50
	maxDLQPage     = 200
)

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// List returns the newest dead letters first, optionally narrowed to reason.
func (r *DLQRepository) List(ctx context.Context, reason string, limit int) ([]models.OutboxDLQ, error) {
	switch {
	case limit <= 0:
		limit = defaultDLQPage
	case limit > maxDLQPage:
		limit = maxDLQPage
	}
	q := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if reason != "" {
		q = q.Where("error_reason = ?", reason)
	}
	var rows []models.OutboxDLQ
	if err := q.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters")
	}
	return rows, nil
}

// Requeue hands a dead-lettered event back to the publisher with a fresh
// attempt budget and removes its dead-letter rows.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if removed.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, removed.Error, "delete dead letter")
		}
		if removed.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}
		reset := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if reset.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, reset.Error, "reset outbox event")
		}
		if reset.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "outbox event already published or purged")
		}
		return nil
	})
}

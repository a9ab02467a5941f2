package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
)

// Repository reads and updates outbox_events. Methods taking tx run inside
// the caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func pending(q *gorm.DB, maxAttempts int) *gorm.DB {
	q = q.Where("published_at IS NULL AND terminal_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	return q
}

// ClaimBatch returns the oldest pending rows. Postgres locks them with
// SKIP LOCKED, so relays running side by side never share a row.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	q := pending(tx.Model(&models.OutboxEvent{}), maxAttempts)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Backlog counts rows still waiting to be published.
func (r *Repository) Backlog(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := pending(r.db.WithContext(ctx).Model(&models.OutboxEvent{}), maxAttempts).Count(&n).Error
	return n, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC()})
}

// RecordFailure keeps the row pending and bumps its attempt count.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminal takes the row out of the pending set for good.
func (r *Repository) MarkTerminal(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": attempts,
		"terminal_at":   time.Now().UTC(),
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, values map[string]any) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

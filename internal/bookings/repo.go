package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Repository exposes booking persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// FindByID returns gorm.ErrRecordNotFound when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListActiveOn returns the non-cancelled bookings of a location on one day.
func (r *Repository) ListActiveOn(ctx context.Context, location string, day time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("location = ? AND event_date = ? AND status <> ?", location, day, enums.BookingStatusCancelled).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Booking, error) {
	query := r.db.WithContext(ctx).Order("event_date ASC, start_time ASC")
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.From != nil {
		query = query.Where("event_date >= ?", *filter.From)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []models.Booking
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update applies fields to the booking, optionally guarded by the current
// payment status. It reports whether a row changed.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, guard *enums.BookingPaymentStatus, fields map[string]any) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Booking{}).Where("id = ?", id)
	if guard != nil {
		query = query.Where("payment_status = ?", *guard)
	}
	res := query.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

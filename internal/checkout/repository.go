package checkout

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
)

// Repository stores the fulfillment issued for each captured payment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByReference(ctx context.Context, reference string) (*models.CheckoutRecord, error)
	Create(ctx context.Context, record *models.CheckoutRecord) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByReference returns nil, nil when no record exists.
func (r *repository) FindByReference(ctx context.Context, reference string) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) Create(ctx context.Context, record *models.CheckoutRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

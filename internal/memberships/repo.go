package memberships

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, membership *models.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

// FindByID returns gorm.ErrRecordNotFound when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	if err := r.db.WithContext(ctx).First(&membership, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &membership, nil
}

// List returns memberships newest first, optionally for one user.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID, limit int) ([]models.Membership, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Membership
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveDiscountPercent returns the best plan discount among the user's
// unexpired active memberships, or zero.
func (r *Repository) ActiveDiscountPercent(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	var percents []int
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Joins("JOIN membership_plans ON membership_plans.id = memberships.plan_id").
		Where("memberships.user_id = ? AND memberships.status = ? AND memberships.expires_at > ?", userID, enums.MembershipStatusActive, now).
		Pluck("membership_plans.discount_percent", &percents).Error
	if err != nil {
		return 0, err
	}
	best := 0
	for _, pct := range percents {
		if pct > best {
			best = pct
		}
	}
	return best, nil
}

// SaveVisit stores the visit counters of membership.
func (r *Repository) SaveVisit(ctx context.Context, membership *models.Membership) error {
	res := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ?", membership.ID).
		Updates(map[string]any{
			"visits_used":   membership.VisitsUsed,
			"last_visit_at": membership.LastVisitAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

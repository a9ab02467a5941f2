package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Membership is an activated membership term of one customer.
type Membership struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID           string                 `gorm:"column:plan_id;not null"`
	TierName         string                 `gorm:"column:tier_name;not null"`
	Tier             enums.MembershipTier   `gorm:"column:tier;not null"`
	DurationMonths   int                    `gorm:"column:duration_months;not null"`
	AutoRenew        bool                   `gorm:"column:auto_renew;not null;default:false"`
	VisitsPerMonth   *int                   `gorm:"column:visits_per_month"`
	VisitsUsed       int                    `gorm:"column:visits_used;not null;default:0"`
	LastVisitAt      *time.Time             `gorm:"column:last_visit_at"`
	Status           enums.MembershipStatus `gorm:"column:status;not null;default:'active'"`
	StartedAt        time.Time              `gorm:"column:started_at;not null"`
	ExpiresAt        time.Time              `gorm:"column:expires_at;not null"`
	Provider         enums.PaymentProvider  `gorm:"column:provider;not null"`
	PaymentReference string                 `gorm:"column:payment_reference;not null;index"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

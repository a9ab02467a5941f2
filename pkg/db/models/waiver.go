package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/playfunia-backend/pkg/db/types"
)

// Waiver is a signed liability waiver covering a guardian's children.
type Waiver struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID           *uuid.UUID         `gorm:"column:user_id;type:uuid;index"`
	GuardianName     string             `gorm:"column:guardian_name;not null"`
	GuardianEmail    string             `gorm:"column:guardian_email;not null;index"`
	GuardianPhone    string             `gorm:"column:guardian_phone;not null"`
	Children         dbtypes.StringList `gorm:"column:children;type:text;not null"`
	AcceptedPolicies dbtypes.StringList `gorm:"column:accepted_policies;type:text;not null"`
	Signature        string             `gorm:"column:signature;not null"`
	MarketingOptIn   bool               `gorm:"column:marketing_opt_in;not null;default:false"`
	Notes            *string            `gorm:"column:notes"`
	SignedAt         time.Time          `gorm:"column:signed_at;not null"`
	ExpiresAt        time.Time          `gorm:"column:expires_at;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Waiver) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

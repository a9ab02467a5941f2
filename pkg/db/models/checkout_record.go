package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// CheckoutRecord stores the fulfillment returned for one captured payment.
// A finalize replay with the same payment reference returns Result unchanged.
type CheckoutRecord struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Provider         enums.PaymentProvider `gorm:"column:provider;not null"`
	PaymentReference string                `gorm:"column:payment_reference;not null;uniqueIndex"`
	UserID           *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	GuestEmail       *string               `gorm:"column:guest_email"`
	AmountCents      int64                 `gorm:"column:amount_cents;not null"`
	Currency         string                `gorm:"column:currency;not null"`
	Fingerprint      string                `gorm:"column:fingerprint;not null"`
	Result           json.RawMessage       `gorm:"column:result;type:text;not null"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (r *CheckoutRecord) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/playfunia-backend/pkg/db/types"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Booking is a scheduled party booking and its deposit state.
type Booking struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	Reference      string                     `gorm:"column:reference;not null;uniqueIndex"`
	UserID         *uuid.UUID                 `gorm:"column:user_id;type:uuid;index"`
	PackageID      string                     `gorm:"column:package_id;not null"`
	Location       string                     `gorm:"column:location;not null"`
	EventDate      time.Time                  `gorm:"column:event_date;not null"`
	StartTime      string                     `gorm:"column:start_time;not null"`
	Guests         int                        `gorm:"column:guests;not null"`
	Notes          *string                    `gorm:"column:notes"`
	AddOns         dbtypes.StringList         `gorm:"column:add_ons;type:text;not null"`
	ContactName    string                     `gorm:"column:contact_name;not null"`
	ContactEmail   string                     `gorm:"column:contact_email;not null"`
	ContactPhone   *string                    `gorm:"column:contact_phone"`
	TotalCents     int64                      `gorm:"column:total_cents;not null"`
	DepositCents   int64                      `gorm:"column:deposit_cents;not null"`
	BalanceCents   int64                      `gorm:"column:balance_cents;not null"`
	Status         enums.BookingStatus        `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus  enums.BookingPaymentStatus `gorm:"column:payment_status;not null;default:'awaiting_deposit'"`
	DepositRef     *string                    `gorm:"column:deposit_payment_ref"`
	DepositPaidAt  *time.Time                 `gorm:"column:deposit_paid_at"`
	CancelledAt    *time.Time                 `gorm:"column:cancelled_at"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

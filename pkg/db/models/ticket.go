package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/playfunia-backend/pkg/db/types"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// Ticket is one admission purchase; each admitted guest gets a TicketCode.
type Ticket struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID           *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	GuestEmail       *string               `gorm:"column:guest_email"`
	GuestName        *string               `gorm:"column:guest_name"`
	Label            string                `gorm:"column:label;not null"`
	Quantity         int                   `gorm:"column:quantity;not null"`
	UnitPriceCents   int64                 `gorm:"column:unit_price_cents;not null"`
	TotalCents       int64                 `gorm:"column:total_cents;not null"`
	DiscountLabels   dbtypes.StringList    `gorm:"column:discount_labels;type:text;not null"`
	PromoCode        *string               `gorm:"column:promo_code"`
	Provider         enums.PaymentProvider `gorm:"column:provider;not null"`
	PaymentReference string                `gorm:"column:payment_reference;not null;index"`
	Status           enums.TicketStatus    `gorm:"column:status;not null;default:'reserved'"`
	PurchasedAt      time.Time             `gorm:"column:purchased_at;not null"`
	Codes            []TicketCode          `gorm:"foreignKey:TicketID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (t *Ticket) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// TicketCode is a single redeemable admission code.
type TicketCode struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TicketID   uuid.UUID              `gorm:"column:ticket_id;type:uuid;not null;index"`
	Code       string                 `gorm:"column:code;not null;uniqueIndex"`
	Status     enums.TicketCodeStatus `gorm:"column:status;not null;default:'valid'"`
	RedeemedAt *time.Time             `gorm:"column:redeemed_at"`
	RedeemedBy *uuid.UUID             `gorm:"column:redeemed_by;type:uuid"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (c *TicketCode) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

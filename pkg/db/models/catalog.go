package models

import "github.com/angelmondragon/playfunia-backend/pkg/enums"

// MembershipPlan is a purchasable membership plan.
type MembershipPlan struct {
	ID                string               `gorm:"column:id;primaryKey"`
	Name              string               `gorm:"column:name;not null"`
	Tier              enums.MembershipTier `gorm:"column:tier;not null"`
	MonthlyPriceCents int64                `gorm:"column:monthly_price_cents;not null"`
	VisitsPerMonth    *int                 `gorm:"column:visits_per_month"`
	DiscountPercent   int                  `gorm:"column:discount_percent;not null;default:0"`
	IsActive          bool                 `gorm:"column:is_active;not null;default:true"`
}

// PartyPackage prices a party booking.
type PartyPackage struct {
	ID              string `gorm:"column:id;primaryKey"`
	Name            string `gorm:"column:name;not null"`
	BasePriceCents  int64  `gorm:"column:base_price_cents;not null"`
	BaseChildren    int    `gorm:"column:base_children;not null"`
	ExtraChildCents int64  `gorm:"column:extra_child_cents;not null;default:0"`
	IsActive        bool   `gorm:"column:is_active;not null;default:true"`
}

// PartyAddOn is an optional extra on a party booking.
type PartyAddOn struct {
	Code       string `gorm:"column:code;primaryKey"`
	Label      string `gorm:"column:label;not null"`
	PriceCents int64  `gorm:"column:price_cents;not null"`
	PriceType  string `gorm:"column:price_type;not null;default:'flat'"`
	IsActive   bool   `gorm:"column:is_active;not null;default:true"`
}

// Add-on price types.
const (
	AddOnFlat     = "flat"
	AddOnPerChild = "perChild"
)

package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

// ActivateInput describes one paid membership term.
type ActivateInput struct {
	UserID           uuid.UUID
	Plan             models.MembershipPlan
	DurationMonths   int
	AutoRenew        bool
	Provider         enums.PaymentProvider
	PaymentReference string
	StartedAt        time.Time
}

type ListFilter struct {
	UserID *uuid.UUID
	Limit  int
}

// VisitResult is returned after a check-in. VisitsRemaining is nil for
// unlimited plans.
type VisitResult struct {
	MembershipID    uuid.UUID  `json:"membershipId"`
	TierName        string     `json:"tierName"`
	VisitsUsed      int        `json:"visitsUsed"`
	VisitsPerMonth  *int       `json:"visitsPerMonth,omitempty"`
	VisitsRemaining *int       `json:"visitsRemaining"`
	LastVisitAt     *time.Time `json:"lastVisitAt,omitempty"`
}

package memberships

import (
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// ToAdmin converts a membership row into the back-office shape.
func ToAdmin(m models.Membership) types.AdminMembership {
	return types.AdminMembership{
		ID:             m.ID.String(),
		UserID:         m.UserID.String(),
		PlanID:         m.PlanID,
		TierName:       m.TierName,
		Status:         string(m.Status),
		VisitsPerMonth: m.VisitsPerMonth,
		VisitsUsed:     m.VisitsUsed,
		LastVisitAt:    m.LastVisitAt,
		StartedAt:      m.StartedAt,
		ExpiresAt:      m.ExpiresAt,
	}
}

func ToAdminList(rows []models.Membership) []types.AdminMembership {
	out := make([]types.AdminMembership, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAdmin(row))
	}
	return out
}

func toEvent(m *models.Membership) payloads.MembershipEvent {
	return payloads.MembershipEvent{
		MembershipID:   m.ID,
		UserID:         m.UserID,
		Tier:           string(m.Tier),
		Status:         string(m.Status),
		VisitsUsed:     m.VisitsUsed,
		VisitsPerMonth: m.VisitsPerMonth,
		LastVisitAt:    m.LastVisitAt,
		ExpiresAt:      m.ExpiresAt,
	}
}

func toVisitResult(m *models.Membership) VisitResult {
	result := VisitResult{
		MembershipID:   m.ID,
		TierName:       m.TierName,
		VisitsUsed:     m.VisitsUsed,
		VisitsPerMonth: m.VisitsPerMonth,
		LastVisitAt:    m.LastVisitAt,
	}
	if m.VisitsPerMonth != nil {
		remaining := *m.VisitsPerMonth - m.VisitsUsed
		if remaining < 0 {
			remaining = 0
		}
		result.VisitsRemaining = &remaining
	}
	return result
}

package enums

import (
	"fmt"
	"strings"
)

// MembershipStatus captures the lifecycle of a customer membership.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusExpired   MembershipStatus = "expired"
	MembershipStatusCancelled MembershipStatus = "cancelled"
)

// String implements fmt.Stringer.
func (m MembershipStatus) String() string {
	return string(m)
}

// MembershipTier is the merchandising tier of a membership plan.
type MembershipTier string

const (
	TierExplorer   MembershipTier = "explorer"
	TierAdventurer MembershipTier = "adventurer"
	TierChampion   MembershipTier = "champion"
)

var validMembershipTiers = []MembershipTier{TierExplorer, TierAdventurer, TierChampion}

// IsValid reports whether the value matches a known tier.
func (t MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMembershipTier accepts a tier id in any case.
func ParseMembershipTier(value string) (MembershipTier, error) {
	normalized := MembershipTier(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}

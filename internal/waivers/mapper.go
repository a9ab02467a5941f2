package waivers

import (
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

func ToAdmin(w models.Waiver) types.AdminWaiver {
	out := types.AdminWaiver{
		ID:            w.ID.String(),
		GuardianName:  w.GuardianName,
		GuardianEmail: w.GuardianEmail,
		GuardianPhone: w.GuardianPhone,
		Children:      append([]string{}, w.Children...),
		SignedAt:      w.SignedAt,
		ExpiresAt:     w.ExpiresAt,
	}
	if w.Notes != nil {
		out.Notes = *w.Notes
	}
	return out
}

func ToAdminList(rows []models.Waiver) []types.AdminWaiver {
	out := make([]types.AdminWaiver, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAdmin(row))
	}
	return out
}

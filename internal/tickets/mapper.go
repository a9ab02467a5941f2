package tickets

import (
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

func ToAdmin(t models.Ticket) types.AdminTicket {
	out := types.AdminTicket{
		ID:          t.ID.String(),
		Label:       t.Label,
		Quantity:    t.Quantity,
		Total:       pricing.FromCents(t.TotalCents),
		Status:      string(t.Status),
		Codes:       make([]types.AdminTicketCode, 0, len(t.Codes)),
		PurchasedAt: t.PurchasedAt,
	}
	if t.GuestEmail != nil {
		out.GuestEmail = *t.GuestEmail
	}
	for _, code := range t.Codes {
		out.Codes = append(out.Codes, types.AdminTicketCode{
			Code:       code.Code,
			Status:     string(code.Status),
			RedeemedAt: code.RedeemedAt,
		})
	}
	return out
}

func ToAdminList(rows []models.Ticket) []types.AdminTicket {
	out := make([]types.AdminTicket, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAdmin(row))
	}
	return out
}

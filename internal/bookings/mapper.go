package bookings

import (
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const dateLayout = "2006-01-02"

func ToAdmin(b models.Booking) types.AdminBooking {
	out := types.AdminBooking{
		ID:               b.ID.String(),
		Reference:        b.Reference,
		PackageID:        b.PackageID,
		Location:         b.Location,
		EventDate:        b.EventDate.Format(dateLayout),
		StartTime:        b.StartTime,
		Guests:           b.Guests,
		ContactName:      b.ContactName,
		ContactEmail:     b.ContactEmail,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		Total:            pricing.FromCents(b.TotalCents),
		DepositAmount:    pricing.FromCents(b.DepositCents),
		BalanceRemaining: pricing.FromCents(b.BalanceCents),
		CreatedAt:        b.CreatedAt,
	}
	if b.Notes != nil {
		out.Notes = *b.Notes
	}
	return out
}

func ToAdminList(rows []models.Booking) []types.AdminBooking {
	out := make([]types.AdminBooking, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToAdmin(row))
	}
	return out
}

func toEvent(b *models.Booking) payloads.BookingEvent {
	return payloads.BookingEvent{
		BookingID:        b.ID,
		Reference:        b.Reference,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		Location:         b.Location,
		EventDate:        b.EventDate.Format(dateLayout),
		StartTime:        b.StartTime,
		Guests:           b.Guests,
		Total:            pricing.FromCents(b.TotalCents),
		DepositAmount:    pricing.FromCents(b.DepositCents),
		BalanceRemaining: pricing.FromCents(b.BalanceCents),
		UserID:           b.UserID,
	}
}

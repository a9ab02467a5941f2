package payments

import (
	"fmt"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

type lineBuilder struct {
	lines []checkout.LineItem
}

func (b *lineBuilder) VisitTicket(id string, t *ledger.Ticket) error {
	b.lines = append(b.lines, checkout.LineItem{
		ItemID:    id,
		Type:      checkout.ItemTicket,
		Label:     t.Label,
		Quantity:  t.Quantity,
		UnitPrice: t.UnitPrice,
		Total:     t.Total,
		EventID:   t.EventID,
	})
	return nil
}

func (b *lineBuilder) VisitMembership(id string, m *ledger.Membership) error {
	b.lines = append(b.lines, checkout.LineItem{
		ItemID:         id,
		Type:           checkout.ItemMembership,
		Label:          m.Label,
		Quantity:       1,
		UnitPrice:      m.Total,
		Total:          m.Total,
		MembershipID:   m.MembershipID,
		DurationMonths: m.DurationMonths,
		AutoRenew:      m.AutoRenew,
	})
	return nil
}

func (b *lineBuilder) VisitBooking(id string, _ *ledger.Booking) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %s is a booking deposit and is paid through the deposit flow", id))
}

// LineItems converts a payable snapshot into request lines, in order.
func LineItems(items []ledger.Item) ([]checkout.LineItem, error) {
	b := &lineBuilder{lines: make([]checkout.LineItem, 0, len(items))}
	for _, item := range items {
		if err := item.Visit(b); err != nil {
			return nil, err
		}
	}
	return b.lines, nil
}

func intentRequest(order Order) (checkout.IntentRequest, error) {
	lines, err := LineItems(order.Items)
	if err != nil {
		return checkout.IntentRequest{}, err
	}
	return checkout.IntentRequest{
		Items:              lines,
		PromoCode:          order.PromoCode,
		Guest:              order.Guest,
		WaiverAcknowledged: order.WaiverAcknowledged,
	}, nil
}

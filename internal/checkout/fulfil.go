package checkout

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/internal/memberships"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/internal/tickets"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/db"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
)

const fulfillmentFailedMessage = "We received your payment but could not issue your order. Please contact us."

// replay returns the stored fulfillment of reference, or nil when none exists.
func (s *service) replay(ctx context.Context, reference string, o order) (*wire.FinalizeResponse, error) {
	record, err := s.Records.FindByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout record")
	}
	if record == nil {
		return nil, nil
	}
	if record.Fingerprint != o.fingerprint {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "This payment was already used for a different order").WithDetails(map[string]any{
			"paymentReference": reference,
		})
	}
	var stored wire.FinalizeResponse
	if err := json.Unmarshal(record.Result, &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout record")
	}
	s.Logger.Info(s.Logger.WithField(ctx, "payment_reference", reference), "checkout finalize replayed")
	return &stored, nil
}

// fulfil issues every line of o in one transaction and fills result. It
// reports true when a concurrent finalize already stored the fulfillment, in
// which case result holds the stored copy.
func (s *service) fulfil(ctx context.Context, o order, provider enums.PaymentProvider, reference string, amountCents int64, result *wire.FinalizeResponse) (bool, error) {
	purchasedAt := time.Now().UTC()
	result.Summary = o.summary
	result.Tickets = []wire.TicketResult{}
	result.Memberships = []wire.MembershipResult{}

	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		for idx, item := range o.req.Items {
			line := o.summary.Lines[idx]
			switch item.Type {
			case wire.ItemMembership:
				res, err := s.activate(ctx, tx, o, idx, item, provider, reference, purchasedAt)
				if err != nil {
					return err
				}
				result.Memberships = append(result.Memberships, res)
			default:
				res, err := s.reserve(ctx, tx, o, idx, item, line, provider, reference, purchasedAt)
				if err != nil {
					return err
				}
				result.Tickets = append(result.Tickets, res)
			}
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		record := &models.CheckoutRecord{
			Provider:         provider,
			PaymentReference: reference,
			UserID:           o.buyer.UserID,
			GuestEmail:       guestEmail(o),
			AmountCents:      amountCents,
			Currency:         o.summary.Currency,
			Fingerprint:      o.fingerprint,
			Result:           payload,
		}
		if err := s.Records.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}

		ticketLines, membershipLines := o.counts()
		event := payloads.CheckoutCompletedEvent{
			Provider:         string(provider),
			PaymentReference: reference,
			Amount:           pricing.FromCents(amountCents),
			TicketCount:      ticketLines,
			MembershipCount:  membershipLines,
			UserID:           o.buyer.UserID,
		}
		if email := guestEmail(o); email != nil {
			event.GuestEmail = *email
		}
		return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCheckoutCompleted,
			AggregateType: enums.AggregateCheckout,
			AggregateID:   record.ID,
			Data:          event,
		})
	})
	if err == nil {
		s.Logger.Info(s.Logger.WithFields(s.Logger.WithProvider(ctx, string(provider)), map[string]any{
			"payment_reference": reference,
			"tickets":           len(result.Tickets),
			"memberships":       len(result.Memberships),
		}), "checkout fulfilled")
		return false, nil
	}

	if db.IsUniqueViolation(err, "") {
		stored, replayErr := s.replay(ctx, reference, o)
		if replayErr != nil {
			return false, replayErr
		}
		if stored != nil {
			*result = *stored
			return true, nil
		}
	}
	s.Logger.Error(s.Logger.WithField(ctx, "payment_reference", reference), "checkout fulfillment failed", err)
	return false, pkgerrors.Wrap(pkgerrors.CodeFulfillment, err, fulfillmentFailedMessage).WithDetails(map[string]any{
		"paymentReference": reference,
	})
}

func (s *service) reserve(ctx context.Context, tx *gorm.DB, o order, idx int, item wire.LineItem, line wire.SummaryLine, provider enums.PaymentProvider, reference string, purchasedAt time.Time) (wire.TicketResult, error) {
	labels := make([]string, 0, len(line.Discounts)+1)
	for _, d := range line.Discounts {
		labels = append(labels, d.Label)
	}
	if o.promoCode != "" {
		labels = append(labels, pricing.LabelPromo)
	}
	in := tickets.ReserveInput{
		UserID:           o.buyer.UserID,
		Label:            item.Label,
		Quantity:         line.Quantity,
		UnitPriceCents:   pricing.ToCents(pricing.PerUnit(line)),
		TotalCents:       pricing.ToCents(line.Total),
		Discounts:        labels,
		PromoCode:        o.promoCode,
		Provider:         provider,
		PaymentReference: reference,
		PurchasedAt:      purchasedAt,
	}
	if g := o.req.Guest; g != nil {
		in.GuestEmail = g.Email
		in.GuestName = strings.TrimSpace(g.FirstName + " " + g.LastName)
	}
	ticket, err := s.Tickets.Reserve(ctx, tx, in)
	if err != nil {
		return wire.TicketResult{}, err
	}
	codes := make([]wire.TicketCode, 0, len(ticket.Codes))
	for _, c := range ticket.Codes {
		codes = append(codes, wire.TicketCode{Code: c.Code, Status: string(c.Status)})
	}
	return wire.TicketResult{
		CartIndex: idx,
		ItemID:    item.ItemID,
		Ticket: wire.TicketFulfillment{
			ID:          ticket.ID.String(),
			Codes:       codes,
			Discounts:   line.Discounts,
			PromoCode:   o.promoCode,
			PurchasedAt: ticket.PurchasedAt,
		},
	}, nil
}

func (s *service) activate(ctx context.Context, tx *gorm.DB, o order, idx int, item wire.LineItem, provider enums.PaymentProvider, reference string, startedAt time.Time) (wire.MembershipResult, error) {
	if o.buyer.UserID == nil {
		return wire.MembershipResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Sign in to purchase a membership")
	}
	plan := o.plans[idx]
	m, err := s.Memberships.Activate(ctx, tx, memberships.ActivateInput{
		UserID:           *o.buyer.UserID,
		Plan:             plan,
		DurationMonths:   item.DurationMonths,
		AutoRenew:        item.AutoRenew,
		Provider:         provider,
		PaymentReference: reference,
		StartedAt:        startedAt,
	})
	if err != nil {
		return wire.MembershipResult{}, err
	}
	return wire.MembershipResult{
		CartIndex: idx,
		ItemID:    item.ItemID,
		Membership: wire.MembershipFulfillment{
			ID:             m.ID.String(),
			MembershipID:   plan.ID,
			TierName:       m.TierName,
			StartedAt:      m.StartedAt,
			ExpiresAt:      m.ExpiresAt,
			AutoRenew:      m.AutoRenew,
			VisitsPerMonth: m.VisitsPerMonth,
		},
	}, nil
}

func guestEmail(o order) *string {
	if o.buyer.UserID != nil || o.req.Guest == nil {
		return nil
	}
	email := strings.TrimSpace(o.req.Guest.Email)
	return &email
}

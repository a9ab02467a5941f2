package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/internal/payments"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

var startedAt = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func seededLedger(t *testing.T, items ...ledger.Item) *ledger.Ledger {
	t.Helper()
	l := ledger.New(context.Background(), ledger.Options{Logger: logger.Nop()})
	for _, item := range items {
		require.NoError(t, l.Add(context.Background(), item))
	}
	return l
}

func sameLabelTickets() []ledger.Item {
	return []ledger.Item{
		ledger.NewTicket("t1", ledger.Ticket{Label: "Open play", Quantity: 2, UnitPrice: 20, Total: 40}),
		ledger.NewTicket("t2", ledger.Ticket{Label: "Open play", Quantity: 2, UnitPrice: 20, Total: 40}),
	}
}

func ticketResult(index int, itemID string, codes ...string) checkout.TicketResult {
	out := checkout.TicketResult{CartIndex: index, ItemID: itemID, Ticket: checkout.TicketFulfillment{ID: "tk_" + itemID, PurchasedAt: startedAt}}
	for _, code := range codes {
		out.Ticket.Codes = append(out.Ticket.Codes, checkout.TicketCode{Code: code, Status: "valid"})
	}
	return out
}

func TestApplyMarksTicketPaidAtCartIndex(t *testing.T) {
	l := seededLedger(t, ledger.NewTicket("t1", ledger.Ticket{Label: "Open play", Quantity: 2, UnitPrice: 20, Total: 40}))
	mapper, err := NewMapper(l, logger.Nop())
	require.NoError(t, err)

	snapshot := l.PayableItems()
	result := checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(0, "t1", "ABC123", "DEF456")}}
	require.NoError(t, mapper.Apply(context.Background(), snapshot, result))

	ticket := l.Items()[0].Ticket
	require.Equal(t, ledger.TicketPaid, ticket.Status)
	require.Equal(t, []string{"ABC123", "DEF456"}, ticket.Codes)
	require.Equal(t, "tk_t1", ticket.TicketID)
}

func TestApplyUsesIndexNotContent(t *testing.T) {
	l := seededLedger(t, sameLabelTickets()...)
	mapper, _ := NewMapper(l, nil)

	result := checkout.FinalizeResponse{Tickets: []checkout.TicketResult{
		ticketResult(1, "t2", "ZZZ999"),
		ticketResult(0, "t1", "AAA111"),
	}}
	require.NoError(t, mapper.Apply(context.Background(), l.PayableItems(), result))

	items := l.Items()
	require.Equal(t, ledger.TicketPaid, items[0].Ticket.Status)
	require.Equal(t, []string{"AAA111"}, items[0].Ticket.Codes)
	require.Equal(t, ledger.TicketPaid, items[1].Ticket.Status)
	require.Equal(t, []string{"ZZZ999"}, items[1].Ticket.Codes)
}

func TestApplyActivatesMemberships(t *testing.T) {
	l := seededLedger(t,
		ledger.NewTicket("t1", ledger.Ticket{Label: "Open play", Quantity: 1, UnitPrice: 20, Total: 20}),
		ledger.NewMembership("m1", ledger.Membership{MembershipID: "gold", Label: "Gold", MonthlyPrice: 65, DurationMonths: 1, Total: 65}),
	)
	mapper, _ := NewMapper(l, nil)

	result := checkout.FinalizeResponse{
		Tickets:     []checkout.TicketResult{ticketResult(0, "t1", "AAA111")},
		Memberships: []checkout.MembershipResult{{CartIndex: 1, ItemID: "m1", Membership: checkout.MembershipFulfillment{MembershipID: "gold", StartedAt: startedAt}}},
	}
	require.NoError(t, mapper.Apply(context.Background(), l.PayableItems(), result))

	membership := l.Items()[1].Membership
	require.Equal(t, ledger.MembershipActivated, membership.Status)
	require.True(t, membership.ActivatedAt.Equal(startedAt))
	require.Empty(t, l.PayableItems())
}

func TestApplyRejectsInconsistentResultsWithoutMutation(t *testing.T) {
	tests := []struct {
		name   string
		result checkout.FinalizeResponse
	}{
		{"out of range", checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(2, "", "A")}}},
		{"echo mismatch", checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(0, "t2", "A")}}},
		{"duplicate index", checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(0, "t1", "A"), ticketResult(0, "t1", "B")}}},
		{"variant mismatch", checkout.FinalizeResponse{Memberships: []checkout.MembershipResult{{CartIndex: 0, ItemID: "t1"}}}},
		{"empty", checkout.FinalizeResponse{}},
		{"dropped entry", checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(0, "t1", "A")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := seededLedger(t, sameLabelTickets()...)
			mapper, _ := NewMapper(l, nil)
			before := l.Items()

			err := mapper.Apply(context.Background(), l.PayableItems(), tt.result)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
			require.Equal(t, before, l.Items())
		})
	}
}

func TestReapplyOverwritesCodes(t *testing.T) {
	l := seededLedger(t, ledger.NewTicket("t1", ledger.Ticket{Label: "Open play", Quantity: 2, UnitPrice: 20, Total: 40}))
	mapper, _ := NewMapper(l, nil)
	snapshot := l.PayableItems()
	result := checkout.FinalizeResponse{Tickets: []checkout.TicketResult{ticketResult(0, "t1", "ABC123", "DEF456")}}

	require.NoError(t, mapper.Apply(context.Background(), snapshot, result))
	require.NoError(t, mapper.Apply(context.Background(), snapshot, result))
	require.Equal(t, []string{"ABC123", "DEF456"}, l.Items()[0].Ticket.Codes)
}

type stubProvider struct {
	proof payments.Proof
	err   error
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Prepare(context.Context, payments.Order) (checkout.IntentResponse, error) {
	return checkout.IntentResponse{}, nil
}
func (s *stubProvider) Authorize(context.Context, checkout.IntentResponse) (payments.Proof, error) {
	return s.proof, nil
}
func (s *stubProvider) Finalize(_ context.Context, _ payments.Order, proof payments.Proof) (checkout.FinalizeResponse, error) {
	s.proof = proof
	return checkout.FinalizeResponse{PaymentIntentID: proof.PaymentIntentID}, s.err
}

func TestFinalizeDelegatesToProvider(t *testing.T) {
	mapper, _ := NewMapper(seededLedger(t), nil)
	provider := &stubProvider{}
	out, err := mapper.Finalize(context.Background(), provider, payments.Order{}, payments.Proof{PaymentIntentID: "pi_1"})
	require.NoError(t, err)
	require.Equal(t, "pi_1", out.PaymentIntentID)
}

func TestCaptureErrorCarriesSentinel(t *testing.T) {
	err := CaptureError(errors.New("boom"))
	require.ErrorIs(t, err, ErrFinalizeAfterCapture)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeFulfillment, typed.Code())
	require.Equal(t, CapturedMessage, typed.Message())
}

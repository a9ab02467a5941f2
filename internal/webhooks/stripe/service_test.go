package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

type stubDeposits struct {
	calls     int
	bookingID uuid.UUID
	intentID  string
	err       error
}

func (s *stubDeposits) ConfirmDeposit(_ context.Context, id uuid.UUID, _ *uuid.UUID, paymentIntentID string) (*checkout.DepositConfirmResponse, error) {
	s.calls++
	s.bookingID = id
	s.intentID = paymentIntentID
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.DepositConfirmResponse{BookingID: id.String(), Status: "deposit_paid"}, nil
}

func intentEvent(t *testing.T, eventType stripe.EventType, metadata map[string]string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(&stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded, Metadata: metadata})
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEventConfirmsDeposit(t *testing.T) {
	deposits := &stubDeposits{}
	svc, err := NewService(deposits, logger.Nop())
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]string{"bookingId": id.String()})))
	require.Equal(t, 1, deposits.calls)
	require.Equal(t, id, deposits.bookingID)
	require.Equal(t, "pi_123", deposits.intentID)
}

func TestHandleEventIgnoresCartIntents(t *testing.T) {
	deposits := &stubDeposits{}
	svc, err := NewService(deposits, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]string{"itemCount": "2"})))
	require.NoError(t, svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]string{"bookingId": "nope"})))
	require.NoError(t, svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]string{"bookingId": uuid.NewString()})))
	require.NoError(t, svc.HandleEvent(context.Background(), intentEvent(t, stripe.EventTypeChargeRefunded, nil)))
	require.Zero(t, deposits.calls)
}

func TestHandleEventAcknowledgesTerminalErrors(t *testing.T) {
	deposits := &stubDeposits{err: pkgerrors.New(pkgerrors.CodeStateConflict, "Deposit already paid")}
	svc, err := NewService(deposits, logger.Nop())
	require.NoError(t, err)
	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]string{"bookingId": uuid.NewString()})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	deposits.err = errors.New("connection reset")
	require.Error(t, svc.HandleEvent(context.Background(), event))
}

func TestHandleEventRequiresData(t *testing.T) {
	svc, err := NewService(&stubDeposits{}, nil)
	require.NoError(t, err)
	err = svc.HandleEvent(context.Background(), &stripe.Event{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

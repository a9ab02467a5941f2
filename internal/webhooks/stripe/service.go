package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

type depositConfirmer interface {
	ConfirmDeposit(ctx context.Context, id uuid.UUID, owner *uuid.UUID, paymentIntentID string) (*checkout.DepositConfirmResponse, error)
}

type Service struct {
	deposits depositConfirmer
	logger   *logger.Logger
}

func NewService(deposits depositConfirmer, logg *logger.Logger) (*Service, error) {
	if deposits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deposit confirmer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{deposits: deposits, logger: logg}, nil
}

// HandleEvent confirms booking deposits whose intent succeeded, covering a
// client that never called the confirm route. Cart checkouts are finalized by
// the client and are ignored here. Outcomes that a retry cannot change are
// logged and acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
	default:
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if event.Type == stripe.EventTypePaymentIntentPaymentFailed {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"payment_intent_id": intent.ID,
			"booking_id":        intent.Metadata["bookingId"],
		})
		s.logger.Warn(ctx, "stripe payment failed")
		return nil
	}
	return s.confirmDeposit(ctx, &intent)
}

func (s *Service) confirmDeposit(ctx context.Context, intent *stripe.PaymentIntent) error {
	raw := strings.TrimSpace(intent.Metadata["bookingId"])
	if raw == "" {
		return nil
	}
	ctx = s.logger.WithField(s.logger.WithBookingID(ctx, raw), "payment_intent_id", intent.ID)
	bookingID, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn(ctx, "payment intent carries an invalid booking id")
		return nil
	}

	res, err := s.deposits.ConfirmDeposit(ctx, bookingID, nil, intent.ID)
	if err != nil {
		if code, ok := terminalCode(err); ok {
			s.logger.Warn(s.logger.WithField(ctx, "error_code", code), "deposit webhook not applied")
			return nil
		}
		return err
	}
	s.logger.Info(s.logger.WithField(ctx, "status", res.Status), "deposit confirmed from webhook")
	return nil
}

func terminalCode(err error) (pkgerrors.Code, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "", false
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict, pkgerrors.CodeValidation, pkgerrors.CodePayment:
		return typed.Code(), true
	}
	return "", false
}

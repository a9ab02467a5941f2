package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

const (
	DepositMismatchMessage = "Payment amount does not match the required deposit"
	depositPaidStatus      = "deposit_paid"

	metaBookingID = "bookingId"
	metaReference = "reference"
)

func (s *service) CreateDepositIntent(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*wire.DepositIntentResponse, error) {
	booking, err := s.load(ctx, s.repo, id, owner)
	if err != nil {
		return nil, err
	}
	if booking.Status == enums.BookingStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is cancelled")
	}
	if booking.PaymentStatus != enums.BookingPaymentAwaitingDeposit {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Deposit already paid").WithDetails(map[string]any{"paymentStatus": booking.PaymentStatus})
	}
	if booking.DepositCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This booking has no deposit due")
	}

	intent, err := s.intents.Create(ctx, pkgstripe.IntentInput{
		AmountCents:    booking.DepositCents,
		Currency:       s.currency,
		Description:    fmt.Sprintf("Party deposit %s", booking.Reference),
		ReceiptEmail:   booking.ContactEmail,
		Metadata:       map[string]string{metaBookingID: booking.ID.String(), metaReference: booking.Reference},
		IdempotencyKey: fmt.Sprintf("deposit-%s-%d", booking.ID, booking.DepositCents),
	})
	if err != nil {
		return nil, err
	}
	return &wire.DepositIntentResponse{
		BookingID:       booking.ID.String(),
		Reference:       booking.Reference,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          pricing.FromCents(booking.DepositCents),
		Currency:        intent.Currency,
		Mock:            intent.Mock,
	}, nil
}

// ConfirmDeposit marks the deposit paid once the intent has succeeded for at
// least the deposit amount. Confirming again with the same intent is a no-op.
func (s *service) ConfirmDeposit(ctx context.Context, id uuid.UUID, owner *uuid.UUID, paymentIntentID string) (*wire.DepositConfirmResponse, error) {
	booking, err := s.load(ctx, s.repo, id, owner)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus != enums.BookingPaymentAwaitingDeposit {
		if booking.DepositRef != nil && *booking.DepositRef == paymentIntentID {
			return confirmation(booking.ID, booking.DepositPaidAt, booking.BalanceCents), nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Deposit already paid")
	}
	if booking.Status == enums.BookingStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is cancelled")
	}

	captured, err := s.intents.Verify(ctx, paymentIntentID, booking.DepositCents)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePayment) && pkgerrors.As(err).Message() == intents.AmountMismatchMessage {
			return nil, pkgerrors.New(pkgerrors.CodePayment, DepositMismatchMessage).WithDetails(pkgerrors.As(err).Details())
		}
		return nil, err
	}
	if !captured.Mock && captured.Metadata[metaBookingID] != booking.ID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Payment intent does not belong to this booking")
	}

	paidAt := s.now().UTC()
	remaining := balance(booking.TotalCents, booking.DepositCents)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		guard := enums.BookingPaymentAwaitingDeposit
		changed, err := repo.Update(ctx, booking.ID, &guard, map[string]any{
			"payment_status":      enums.BookingPaymentDepositPaid,
			"status":              enums.BookingStatusConfirmed,
			"balance_cents":       remaining,
			"deposit_payment_ref": captured.ID,
			"deposit_paid_at":     paidAt,
		})
		if err != nil {
			return err
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Deposit already paid")
		}
		booking.PaymentStatus = enums.BookingPaymentDepositPaid
		booking.Status = enums.BookingStatusConfirmed
		booking.BalanceCents = remaining
		booking.DepositRef = &captured.ID
		booking.DepositPaidAt = &paidAt
		return s.emit(ctx, tx, enums.EventBookingUpdated, booking)
	})
	if err != nil {
		return nil, err
	}
	return confirmation(booking.ID, booking.DepositPaidAt, remaining), nil
}

func confirmation(id uuid.UUID, paidAt *time.Time, balanceCents int64) *wire.DepositConfirmResponse {
	return &wire.DepositConfirmResponse{
		BookingID:        id.String(),
		DepositPaidAt:    paidAt,
		BalanceRemaining: pricing.FromCents(balanceCents),
		Status:           depositPaidStatus,
	}
}

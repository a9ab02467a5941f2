package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/playfunia-backend/internal/fulfillment"
	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/internal/payments"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

const (
	opCheckout      = "checkout"
	opDepositPrefix = "deposit:"

	waiverRequiredMessage = "Please complete the waiver before paying."
)

// Options wires an Engine. Deposits and Estimator are optional.
type Options struct {
	Ledger    *ledger.Ledger
	Broker    *payments.Broker
	Mapper    *fulfillment.Mapper
	Deposits  *payments.Deposits
	Session   Session
	Estimator Estimator
	Logger    *logger.Logger
}

// Engine is the single entry point pages use to pay for the cart. It exposes
// the item list and the checkout and deposit operations; nothing else
// mutates the ledger.
type Engine struct {
	ledger    *ledger.Ledger
	broker    *payments.Broker
	mapper    *fulfillment.Mapper
	deposits  *payments.Deposits
	session   Session
	estimator Estimator
	logger    *logger.Logger

	mu   sync.Mutex
	busy map[string]bool
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Ledger == nil:
		return nil, errors.New("ledger is required")
	case opts.Broker == nil:
		return nil, errors.New("payment broker is required")
	case opts.Mapper == nil:
		return nil, errors.New("fulfillment mapper is required")
	case opts.Session == nil:
		return nil, errors.New("session is required")
	}
	return &Engine{
		ledger:    opts.Ledger,
		broker:    opts.Broker,
		mapper:    opts.Mapper,
		deposits:  opts.Deposits,
		session:   opts.Session,
		estimator: opts.Estimator,
		logger:    opts.Logger,
		busy:      map[string]bool{},
	}, nil
}

// Items returns the current cart.
func (e *Engine) Items() []ledger.Item {
	return e.ledger.Items()
}

// Busy reports whether the named operation ("checkout", or "deposit:<id>")
// is outstanding.
func (e *Engine) Busy(op string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy[op]
}

// DepositOp names the busy flag of one booking's deposit.
func DepositOp(bookingID string) string {
	return opDepositPrefix + bookingID
}

func (e *Engine) acquire(op string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[op] {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s already in progress", op))
	}
	e.busy[op] = true
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.busy, op)
	}, nil
}

// CheckoutRequest carries the optional promo code and, for guests, the
// waiver acknowledgement checkbox.
type CheckoutRequest struct {
	PromoCode          string
	WaiverAcknowledged bool
}

// Checkout pays for the payable snapshot: prepare, authorize, finalize, then
// reconcile the result into the ledger. Errors before the customer is
// charged leave the cart unchanged and may be retried. Errors after the
// charge are reported as a capture failure and are never retried here.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (checkout.FinalizeResponse, error) {
	release, err := e.acquire(opCheckout)
	if err != nil {
		return checkout.FinalizeResponse{}, err
	}
	defer release()

	snapshot := e.ledger.PayableItems()
	order := payments.Order{
		Items:              snapshot,
		PromoCode:          req.PromoCode,
		Guest:              e.session.Guest(),
		WaiverAcknowledged: req.WaiverAcknowledged,
	}
	if err := e.validate(order); err != nil {
		return checkout.FinalizeResponse{}, err
	}
	fingerprint, err := ledger.Fingerprint(snapshot)
	if err != nil {
		return checkout.FinalizeResponse{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fingerprint cart")
	}

	provider := e.broker.Provider()
	ctx = e.logContext(ctx, map[string]any{"provider": provider.Name(), "items": len(snapshot)})

	intent, err := e.broker.Prepare(ctx, order)
	if err != nil {
		return checkout.FinalizeResponse{}, err
	}
	if err := e.sameSnapshot(fingerprint); err != nil {
		return checkout.FinalizeResponse{}, err
	}
	proof, mock := payments.MockProof(intent)
	if !mock {
		proof, err = provider.Authorize(ctx, intent)
		if err != nil {
			return checkout.FinalizeResponse{}, err
		}
	}

	// The customer may have been charged from here on.
	ctx = context.WithoutCancel(ctx)
	if err := e.sameSnapshot(fingerprint); err != nil {
		return checkout.FinalizeResponse{}, e.captured(ctx, err)
	}
	result, err := e.mapper.Finalize(ctx, provider, order, proof)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePayment) {
			return checkout.FinalizeResponse{}, err
		}
		return checkout.FinalizeResponse{}, e.captured(ctx, err)
	}
	if err := e.mapper.Apply(ctx, snapshot, result); err != nil {
		return checkout.FinalizeResponse{}, e.captured(ctx, err)
	}
	e.info(ctx, "checkout completed")
	return result, nil
}

// DepositRequest names the booking to pay. Guests must acknowledge the
// waiver, as they do at checkout.
type DepositRequest struct {
	BookingID          string
	WaiverAcknowledged bool
}

// PayDeposit moves one booking from awaiting_deposit to deposit_paid. Mock
// intents are confirmed immediately without an interactive step. The
// remaining balance always comes from the server.
func (e *Engine) PayDeposit(ctx context.Context, req DepositRequest) (checkout.DepositConfirmResponse, error) {
	bookingID := req.BookingID
	if e.deposits == nil {
		return checkout.DepositConfirmResponse{}, errors.New("deposit payments are not configured")
	}
	release, err := e.acquire(DepositOp(bookingID))
	if err != nil {
		return checkout.DepositConfirmResponse{}, err
	}
	defer release()

	if err := e.depositPayable(bookingID); err != nil {
		return checkout.DepositConfirmResponse{}, err
	}
	if e.session.Guest() != nil {
		if !req.WaiverAcknowledged {
			return checkout.DepositConfirmResponse{}, pkgerrors.New(pkgerrors.CodeValidation, waiverRequiredMessage)
		}
	} else if !e.session.HasValidWaiver() {
		return checkout.DepositConfirmResponse{}, pkgerrors.New(pkgerrors.CodeValidation, waiverRequiredMessage)
	}
	ctx = e.logContext(ctx, map[string]any{"booking_id": bookingID})

	intent, err := e.deposits.Prepare(ctx, bookingID)
	if err != nil {
		return checkout.DepositConfirmResponse{}, err
	}
	paymentIntentID, err := e.deposits.Authorize(ctx, intent)
	if err != nil {
		return checkout.DepositConfirmResponse{}, err
	}

	ctx = context.WithoutCancel(ctx)
	confirmed, err := e.deposits.Confirm(ctx, bookingID, paymentIntentID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodePayment) {
			return checkout.DepositConfirmResponse{}, err
		}
		return checkout.DepositConfirmResponse{}, e.captured(ctx, err)
	}
	if confirmed.Status != string(ledger.BookingDepositPaid) {
		return checkout.DepositConfirmResponse{}, e.captured(ctx, fmt.Errorf("deposit confirm returned status %q", confirmed.Status))
	}
	if err := e.ledger.MarkDepositPaid(ctx, bookingID, confirmed.BalanceRemaining); err != nil {
		return checkout.DepositConfirmResponse{}, e.captured(ctx, err)
	}
	e.info(ctx, "deposit paid")
	return confirmed, nil
}

// Estimate returns the catalog's display price for a party package.
func (e *Engine) Estimate(ctx context.Context, packageID string, guests int, addOns []string) (float64, error) {
	if e.estimator == nil {
		return 0, errors.New("price estimates are not configured")
	}
	return e.estimator.Estimate(ctx, packageID, guests, addOns)
}

func (e *Engine) validate(order payments.Order) error {
	if len(order.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}
	lines, err := payments.LineItems(order.Items)
	if err != nil {
		return err
	}
	if order.Guest != nil {
		return checkout.ValidateGuestOrder(checkout.IntentRequest{
			Items:              lines,
			Guest:              order.Guest,
			WaiverAcknowledged: order.WaiverAcknowledged,
		})
	}
	for _, line := range lines {
		if line.Type == checkout.ItemTicket && !e.session.HasValidWaiver() {
			return pkgerrors.New(pkgerrors.CodeValidation, waiverRequiredMessage)
		}
	}
	return nil
}

func (e *Engine) depositPayable(bookingID string) error {
	for _, item := range e.ledger.Items() {
		if item.Kind != ledger.KindBooking || item.Booking.BookingID != bookingID {
			continue
		}
		if item.Booking.Status == ledger.BookingDepositPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Deposit already paid for this booking")
		}
		if item.Booking.DepositAmount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "Deposit amount is invalid")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("booking %s is not in the cart", bookingID))
}

func (e *Engine) sameSnapshot(fingerprint string) error {
	current, err := ledger.Fingerprint(e.ledger.PayableItems())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fingerprint cart")
	}
	if current != fingerprint {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed during checkout")
	}
	return nil
}

func (e *Engine) captured(ctx context.Context, cause error) error {
	err := fulfillment.CaptureError(cause)
	if e.logger != nil {
		e.logger.Error(ctx, "payment captured but order not finalized", cause)
	}
	return err
}

func (e *Engine) logContext(ctx context.Context, fields map[string]any) context.Context {
	if e.logger == nil {
		return ctx
	}
	return e.logger.WithFields(ctx, fields)
}

func (e *Engine) info(ctx context.Context, msg string) {
	if e.logger != nil {
		e.logger.Info(ctx, msg)
	}
}

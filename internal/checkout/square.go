package checkout

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/playfunia-backend/internal/intents"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	LocationID() string
}

const squareUnavailableMessage = "Card payments are temporarily unavailable. Please try again later."

// CreateSquareIntent prices the order for the Square card form. Square takes
// the charge at finalize, so only mock mode issues an intent id.
func (s *service) CreateSquareIntent(ctx context.Context, buyer Buyer, req wire.IntentRequest) (resp *wire.IntentResponse, err error) {
	defer func() { s.Metrics.IncIntent(string(enums.ProviderSquare), metrics.OutcomeOf(err)) }()

	o, err := s.prepare(ctx, buyer, req)
	if err != nil {
		return nil, err
	}
	resp = &wire.IntentResponse{
		Provider:  string(enums.ProviderSquare),
		Amount:    o.amountCents,
		Currency:  o.summary.Currency,
		Summary:   o.summary,
		PromoCode: o.promoCode,
	}
	if s.Intents.Mock() {
		intent, err := s.Intents.Create(ctx, pkgstripe.IntentInput{AmountCents: o.amountCents, Currency: o.summary.Currency})
		if err != nil {
			return nil, err
		}
		resp.PaymentIntentID = intent.ID
		resp.ClientSecret = intent.ClientSecret
		resp.Mock = true
		return resp, nil
	}
	if s.Square == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, squareUnavailableMessage)
	}
	return resp, nil
}

// FinalizeSquare charges the card source and fulfils the order. A mock intent
// id is finalized like any other intent.
func (s *service) FinalizeSquare(ctx context.Context, buyer Buyer, req wire.FinalizeRequest) (resp *wire.FinalizeResponse, err error) {
	if intents.IsMockID(req.PaymentIntentID) {
		return s.Finalize(ctx, buyer, req)
	}
	outcome := ""
	defer func() {
		if outcome == "" {
			outcome = metrics.OutcomeOf(err)
		}
		s.Metrics.IncFinalize(string(enums.ProviderSquare), outcome)
	}()

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId is required")
	}
	if s.Square == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, squareUnavailableMessage)
	}
	o, err := s.prepare(ctx, buyer, req.IntentRequest)
	if err != nil {
		return nil, err
	}

	location := s.Square.LocationID()
	referenceID := squareReferenceID(o.fingerprint)
	payment, err := s.Square.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:       o.amountCents,
		Currency:          o.summary.Currency,
		LocationID:        location,
		SourceID:          sourceID,
		VerificationToken: req.VerificationToken,
		BuyerEmail:        o.receiptEmail(),
		IdempotencyKey:    squareIdempotencyKey(o.fingerprint, o.amountCents, location, referenceID, sourceID),
		Note:              "Playfunia order",
		ReferenceID:       referenceID,
	})
	if err != nil {
		return nil, err
	}
	if square.StatusOf(payment) != square.PaymentStatusCompleted && square.IDOf(payment) != "" {
		// A payment still settling at create time is read back once.
		if settled, err := s.Square.GetPayment(ctx, square.IDOf(payment)); err == nil && settled != nil {
			payment = settled
		}
	}
	if status := square.StatusOf(payment); status != square.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePayment, intents.NotCompleteMessage).WithDetails(map[string]any{"status": status})
	}
	charged := square.AmountCents(payment)
	if charged < o.amountCents {
		return nil, pkgerrors.New(pkgerrors.CodePayment, intents.AmountMismatchMessage).WithDetails(map[string]any{
			"expected": o.amountCents,
			"received": charged,
		})
	}

	reference := square.IDOf(payment)
	if stored, err := s.replay(ctx, reference, o); stored != nil || err != nil {
		if stored != nil {
			outcome = metrics.OutcomeReplay
		}
		return stored, err
	}
	result := &wire.FinalizeResponse{
		Provider:     string(enums.ProviderSquare),
		PaymentID:    reference,
		ReceiptEmail: o.receiptEmail(),
		ReceiptURL:   square.ReceiptURLOf(payment),
	}
	stored, err := s.fulfil(ctx, o, enums.ProviderSquare, reference, charged, result)
	if stored {
		outcome = metrics.OutcomeReplay
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

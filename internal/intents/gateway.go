package intents

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

const (
	mockIntentPrefix = "mock_pi_"
	mockSecretPrefix = "mock_secret_"

	// NotCompleteMessage is returned until the card charge has succeeded.
	NotCompleteMessage    = "Payment is not complete yet. Please try again."
	AmountMismatchMessage = "Payment amount does not match the order total"
	unavailableMessage    = "Payments are temporarily unavailable. Please try again later."
)

// StripeAPI is the part of pkg/stripe the gateway calls.
type StripeAPI interface {
	CreatePaymentIntent(ctx context.Context, in pkgstripe.IntentInput) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// Intent is a created payment intent, real or mock.
type Intent struct {
	ID           string
	ClientSecret string
	Currency     string
	Mock         bool
}

// Captured is a verified, succeeded payment intent.
type Captured struct {
	ID             string
	AmountReceived int64
	Metadata       map[string]string
	ReceiptEmail   string
	ReceiptURL     string
	Mock           bool
}

func (c Captured) Provider() enums.PaymentProvider {
	if c.Mock {
		return enums.ProviderMock
	}
	return enums.ProviderStripe
}

// Gateway creates and verifies card payment intents. In mock mode no
// provider is called and intents succeed immediately.
type Gateway struct {
	stripe StripeAPI
	mock   bool
}

func NewGateway(api StripeAPI, mock bool) *Gateway {
	return &Gateway{stripe: api, mock: mock}
}

func (g *Gateway) Mock() bool {
	return g.mock
}

// IsMockID reports whether id was issued by a mock gateway.
func IsMockID(id string) bool {
	return strings.HasPrefix(id, mockIntentPrefix)
}

func (g *Gateway) Create(ctx context.Context, in pkgstripe.IntentInput) (Intent, error) {
	if in.AmountCents <= 0 {
		return Intent{}, pkgerrors.New(pkgerrors.CodeValidation, "No payment is required for this cart")
	}
	currency := strings.ToLower(in.Currency)
	if g.mock {
		return Intent{
			ID:           mockIntentPrefix + uuid.NewString(),
			ClientSecret: mockSecretPrefix + uuid.NewString(),
			Currency:     currency,
			Mock:         true,
		}, nil
	}
	if g.stripe == nil {
		return Intent{}, pkgerrors.New(pkgerrors.CodeDependency, unavailableMessage)
	}
	pi, err := g.stripe.CreatePaymentIntent(ctx, in)
	if err != nil {
		return Intent{}, err
	}
	if pi.Currency != "" {
		currency = string(pi.Currency)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Currency: currency}, nil
}

// Verify requires the intent to have succeeded with at least minCents received.
func (g *Gateway) Verify(ctx context.Context, id string, minCents int64) (Captured, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Captured{}, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}
	if IsMockID(id) {
		if !g.mock {
			return Captured{}, pkgerrors.New(pkgerrors.CodeValidation, "mock payments are disabled")
		}
		return Captured{ID: id, AmountReceived: minCents, Mock: true}, nil
	}
	if g.stripe == nil {
		return Captured{}, pkgerrors.New(pkgerrors.CodeDependency, unavailableMessage)
	}
	pi, err := g.stripe.GetPaymentIntent(ctx, id)
	if err != nil {
		return Captured{}, err
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Captured{}, pkgerrors.New(pkgerrors.CodePayment, NotCompleteMessage).WithDetails(map[string]any{"status": string(pi.Status)})
	}
	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}
	if received < minCents {
		return Captured{}, pkgerrors.New(pkgerrors.CodePayment, AmountMismatchMessage).WithDetails(map[string]any{
			"expected": minCents,
			"received": received,
		})
	}
	email, url := pkgstripe.ReceiptOf(pi)
	return Captured{
		ID:             pi.ID,
		AmountReceived: received,
		Metadata:       pi.Metadata,
		ReceiptEmail:   email,
		ReceiptURL:     url,
	}, nil
}

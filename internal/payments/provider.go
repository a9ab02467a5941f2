package payments

import (
	"context"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
)

// Proof is the provider-specific evidence that the customer authorized a
// charge: a confirmed intent id (Stripe, mock) or a single-use source token
// (Square).
type Proof struct {
	PaymentIntentID   string
	SourceID          string
	VerificationToken string
}

// Order is the payable snapshot plus the buyer context sent with it.
type Order struct {
	Items              []ledger.Item
	PromoCode          string
	Guest              *checkout.Guest
	WaiverAcknowledged bool
}

// Provider is one card-payment backend. Prepare and Finalize talk to the API;
// Authorize is the customer's interactive step.
type Provider interface {
	Name() string
	Prepare(ctx context.Context, order Order) (checkout.IntentResponse, error)
	Authorize(ctx context.Context, intent checkout.IntentResponse) (Proof, error)
	Finalize(ctx context.Context, order Order, proof Proof) (checkout.FinalizeResponse, error)
}

// MockProof returns the proof of a mock intent, which needs no interactive
// authorization. ok is false for real intents.
func MockProof(intent checkout.IntentResponse) (Proof, bool) {
	if !intent.Mock || intent.PaymentIntentID == "" {
		return Proof{}, false
	}
	return Proof{PaymentIntentID: intent.PaymentIntentID}, true
}

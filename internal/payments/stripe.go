package payments

import (
	"context"
	"errors"

	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

const (
	stripeIntentPath   = "/api/checkout/intent"
	stripeFinalizePath = "/api/checkout/finalize"
)

// Authorizer performs the customer's confirmation of a Stripe intent and
// returns the confirmed intent id.
type Authorizer interface {
	Authorize(ctx context.Context, paymentIntentID, clientSecret string) (string, error)
}

type Stripe struct {
	api        *httpclient.Client
	authorizer Authorizer
}

func NewStripe(api *httpclient.Client, authorizer Authorizer) (*Stripe, error) {
	if api == nil {
		return nil, errors.New("api client is required")
	}
	return &Stripe{api: api, authorizer: authorizer}, nil
}

func (s *Stripe) Name() string { return config.ProviderStripe }

func (s *Stripe) Prepare(ctx context.Context, order Order) (checkout.IntentResponse, error) {
	req, err := intentRequest(order)
	if err != nil {
		return checkout.IntentResponse{}, err
	}
	var intent checkout.IntentResponse
	if err := s.api.PostJSON(ctx, stripeIntentPath, req, &intent); err != nil {
		return checkout.IntentResponse{}, err
	}
	if !intent.Mock && (intent.PaymentIntentID == "" || intent.ClientSecret == "") {
		return checkout.IntentResponse{}, pkgerrors.New(pkgerrors.CodeDependency, "stripe intent is missing its client secret")
	}
	return intent, nil
}

func (s *Stripe) Authorize(ctx context.Context, intent checkout.IntentResponse) (Proof, error) {
	if proof, ok := MockProof(intent); ok {
		return proof, nil
	}
	if s.authorizer == nil {
		return Proof{}, pkgerrors.New(pkgerrors.CodePayment, "card payments are not available on this device")
	}
	id, err := s.authorizer.Authorize(ctx, intent.PaymentIntentID, intent.ClientSecret)
	if err != nil {
		return Proof{}, err
	}
	return Proof{PaymentIntentID: id}, nil
}

func (s *Stripe) Finalize(ctx context.Context, order Order, proof Proof) (checkout.FinalizeResponse, error) {
	return finalizeIntent(ctx, s.api, order, proof)
}

func finalizeIntent(ctx context.Context, api *httpclient.Client, order Order, proof Proof) (checkout.FinalizeResponse, error) {
	if proof.PaymentIntentID == "" {
		return checkout.FinalizeResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	req, err := intentRequest(order)
	if err != nil {
		return checkout.FinalizeResponse{}, err
	}
	var out checkout.FinalizeResponse
	body := checkout.FinalizeRequest{IntentRequest: req, PaymentIntentID: proof.PaymentIntentID}
	if err := api.PostJSON(ctx, stripeFinalizePath, body, &out, httpclient.WithIdempotencyKey("finalize:"+proof.PaymentIntentID)); err != nil {
		return checkout.FinalizeResponse{}, err
	}
	return out, nil
}

// intentConfirmer is the slice of pkg/stripe used to confirm intents.
type intentConfirmer interface {
	ConfirmPaymentIntent(ctx context.Context, id, paymentMethod string) (*stripego.PaymentIntent, error)
}

// StripeConfirmer confirms intents server-to-server with a fixed payment
// method. Test-mode tooling uses it in place of a card form.
type StripeConfirmer struct {
	client        intentConfirmer
	paymentMethod string
}

func NewStripeConfirmer(client *pkgstripe.Client, paymentMethod string) (*StripeConfirmer, error) {
	if client == nil {
		return nil, errors.New("stripe client is required")
	}
	if paymentMethod == "" {
		return nil, errors.New("payment method is required")
	}
	return &StripeConfirmer{client: client, paymentMethod: paymentMethod}, nil
}

func (c *StripeConfirmer) Authorize(ctx context.Context, paymentIntentID, _ string) (string, error) {
	intent, err := c.client.ConfirmPaymentIntent(ctx, paymentIntentID, c.paymentMethod)
	if err != nil {
		return "", err
	}
	if intent.Status != stripego.PaymentIntentStatusSucceeded {
		return "", pkgerrors.New(pkgerrors.CodePayment, "Payment is not complete yet. Please try again.")
	}
	return intent.ID, nil
}

package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
)

const (
	squareIntentPath   = "/api/checkout/square/intent"
	squareFinalizePath = "/api/checkout/square/finalize"
)

// Tokenizer turns the customer's card entry into a single-use Square source.
type Tokenizer interface {
	Tokenize(ctx context.Context, amountCents int64, currency string) (sourceID, verificationToken string, err error)
}

// StaticTokenizer returns a fixed source id, such as a sandbox test nonce.
type StaticTokenizer string

func (s StaticTokenizer) Tokenize(context.Context, int64, string) (string, string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", "", pkgerrors.New(pkgerrors.CodePayment, "card details are required")
	}
	return string(s), "", nil
}

type Square struct {
	api       *httpclient.Client
	tokenizer Tokenizer
}

func NewSquare(api *httpclient.Client, tokenizer Tokenizer) (*Square, error) {
	if api == nil {
		return nil, errors.New("api client is required")
	}
	return &Square{api: api, tokenizer: tokenizer}, nil
}

func (s *Square) Name() string { return config.ProviderSquare }

func (s *Square) Prepare(ctx context.Context, order Order) (checkout.IntentResponse, error) {
	req, err := intentRequest(order)
	if err != nil {
		return checkout.IntentResponse{}, err
	}
	var intent checkout.IntentResponse
	if err := s.api.PostJSON(ctx, squareIntentPath, req, &intent); err != nil {
		return checkout.IntentResponse{}, err
	}
	return intent, nil
}

func (s *Square) Authorize(ctx context.Context, intent checkout.IntentResponse) (Proof, error) {
	if proof, ok := MockProof(intent); ok {
		return proof, nil
	}
	if s.tokenizer == nil {
		return Proof{}, pkgerrors.New(pkgerrors.CodePayment, "card payments are not available on this device")
	}
	sourceID, verification, err := s.tokenizer.Tokenize(ctx, intent.Amount, intent.Currency)
	if err != nil {
		return Proof{}, err
	}
	return Proof{SourceID: sourceID, VerificationToken: verification}, nil
}

// Finalize charges the source token. A mock proof carries an intent id and
// finalizes through the intent endpoint instead.
func (s *Square) Finalize(ctx context.Context, order Order, proof Proof) (checkout.FinalizeResponse, error) {
	if proof.PaymentIntentID != "" {
		return finalizeIntent(ctx, s.api, order, proof)
	}
	if proof.SourceID == "" {
		return checkout.FinalizeResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}
	req, err := intentRequest(order)
	if err != nil {
		return checkout.FinalizeResponse{}, err
	}
	body := checkout.FinalizeRequest{IntentRequest: req, SourceID: proof.SourceID, VerificationToken: proof.VerificationToken}
	var out checkout.FinalizeResponse
	if err := s.api.PostJSON(ctx, squareFinalizePath, body, &out, httpclient.WithIdempotencyKey("square:"+proof.SourceID)); err != nil {
		return checkout.FinalizeResponse{}, err
	}
	return out, nil
}

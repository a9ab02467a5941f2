package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// intentBackend is the slice of the PaymentIntents API the wrapper calls.
type intentBackend interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type packageIntents struct{}

func (packageIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (packageIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (packageIntents) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Confirm(id, params)
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	intents       intentBackend
	environment   string
	signingSecret string
	logger        *logger.Logger
}

// NewClient initializes Stripe once with the configured secrets and env.
// The webhook secret is optional; without it the webhook route is disabled.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		intents:       packageIntents{},
		environment:   env,
		signingSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// IntentInput describes a PaymentIntent to create.
type IntentInput struct {
	AmountCents    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// CreatePaymentIntent creates an intent with automatic payment methods and
// redirects disabled, so it can be confirmed with a card in one step.
func (c *Client) CreatePaymentIntent(ctx context.Context, in IntentInput) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountCents),
		Currency: stripe.String(strings.ToLower(in.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	c.log(ctx, "request", "create_payment_intent", map[string]any{"amount": in.AmountCents, "currency": in.Currency})
	intent, err := c.intents.New(params)
	if err != nil {
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "create payment intent")
	}
	c.log(ctx, "response", "create_payment_intent", map[string]any{"payment_intent_id": intent.ID, "status": intent.Status})
	return intent, nil
}

// GetPaymentIntent retrieves an intent with its latest charge expanded.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	c.log(ctx, "request", "get_payment_intent", map[string]any{"payment_intent_id": id})
	intent, err := c.intents.Get(id, params)
	if err != nil {
		c.log(ctx, "error", "get_payment_intent", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "retrieve payment intent")
	}
	c.log(ctx, "response", "get_payment_intent", map[string]any{"payment_intent_id": intent.ID, "status": intent.Status})
	return intent, nil
}

// ConfirmPaymentIntent confirms an intent with a payment method. Test-mode
// tooling uses this in place of an interactive card form.
func (c *Client) ConfirmPaymentIntent(ctx context.Context, id, paymentMethod string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{PaymentMethod: stripe.String(paymentMethod)}
	params.Context = ctx

	c.log(ctx, "request", "confirm_payment_intent", map[string]any{"payment_intent_id": id, "payment_method": paymentMethod})
	intent, err := c.intents.Confirm(id, params)
	if err != nil {
		c.log(ctx, "error", "confirm_payment_intent", map[string]any{"error": err.Error()})
		return nil, mapStripeError(err, "confirm payment intent")
	}
	c.log(ctx, "response", "confirm_payment_intent", map[string]any{"payment_intent_id": intent.ID, "status": intent.Status})
	return intent, nil
}

// ReceiptOf returns the receipt email and URL of an intent's latest charge.
func ReceiptOf(intent *stripe.PaymentIntent) (email, url string) {
	if intent == nil {
		return "", ""
	}
	email = intent.ReceiptEmail
	if intent.LatestCharge != nil {
		url = intent.LatestCharge.ReceiptURL
		if email == "" {
			email = intent.LatestCharge.ReceiptEmail
		}
	}
	return email, url
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		if strings.Contains(strings.ToLower(k), "secret") {
			v = "[REDACTED]"
		}
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("stripe %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("stripe %s", phase))
	}
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("stripe %s failed", op))
	}
	message := fmt.Sprintf("stripe %s failed", op)
	if stripeErr.Msg != "" {
		message = stripeErr.Msg
	}
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		return pkgerrors.Wrap(pkgerrors.CodePayment, err, message)
	case stripeErr.Code == stripe.ErrorCodeIdempotencyKeyInUse:
		return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, message)
	case stripeErr.HTTPStatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe credentials rejected")
	case stripeErr.HTTPStatusCode == http.StatusBadRequest:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}

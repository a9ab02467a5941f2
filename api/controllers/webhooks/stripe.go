package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/playfunia-backend/api/responses"
	stripewebhook "github.com/angelmondragon/playfunia-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

const (
	maxWebhookBytes = 1 << 16
	signatureHeader = "Stripe-Signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type eventDeduper interface {
	Claim(ctx context.Context, eventID string) (stripewebhook.Claim, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

type signingSecretSource interface {
	SigningSecret() string
}

// StripeWebhook verifies a Stripe delivery, dedupes it by event id and hands it
// to svc. A delivery that races one still being processed gets a 409 so Stripe
// tries again later; a failed event releases its claim.
func StripeWebhook(svc StripeWebhookService, secrets signingSecretSource, dedupe eventDeduper, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || secrets == nil || dedupe == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook is not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sig := r.Header.Get(signatureHeader)
		if sig == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}
		event, err := webhook.ConstructEvent(payload, sig, secrets.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}
		ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

		claim, err := dedupe.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event"))
			return
		}
		switch claim {
		case stripewebhook.ClaimDuplicate:
			logg.Debug(ctx, "stripe event already processed")
			responses.WriteSuccess(w, nil)
			return
		case stripewebhook.ClaimInFlight:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "stripe event is being processed"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if relErr := dedupe.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
				logg.Warn(logg.WithField(ctx, "error", relErr.Error()), "release webhook claim failed")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := dedupe.Complete(context.WithoutCancel(ctx), event.ID); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "record processed webhook failed")
		}

		logg.Info(ctx, "stripe event processed")
		responses.WriteSuccess(w, nil)
	}
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
)

// Deposits drives the booking deposit endpoints. Deposits are charged through
// Stripe intents, or mock intents when the server runs without a processor.
type Deposits struct {
	api        *httpclient.Client
	authorizer Authorizer
}

func NewDeposits(api *httpclient.Client, authorizer Authorizer) (*Deposits, error) {
	if api == nil {
		return nil, errors.New("api client is required")
	}
	return &Deposits{api: api, authorizer: authorizer}, nil
}

func (d *Deposits) Prepare(ctx context.Context, bookingID string) (checkout.DepositIntentResponse, error) {
	var out checkout.DepositIntentResponse
	err := d.api.PostJSON(ctx, depositPath(bookingID, "intent"), struct{}{}, &out)
	return out, err
}

// Authorize returns the intent id to confirm. Mock intents skip the
// interactive step.
func (d *Deposits) Authorize(ctx context.Context, intent checkout.DepositIntentResponse) (string, error) {
	if intent.Mock && intent.PaymentIntentID != "" {
		return intent.PaymentIntentID, nil
	}
	if d.authorizer == nil {
		return "", pkgerrors.New(pkgerrors.CodePayment, "card payments are not available on this device")
	}
	return d.authorizer.Authorize(ctx, intent.PaymentIntentID, intent.ClientSecret)
}

func (d *Deposits) Confirm(ctx context.Context, bookingID, paymentIntentID string) (checkout.DepositConfirmResponse, error) {
	var out checkout.DepositConfirmResponse
	err := d.api.PostJSON(ctx, depositPath(bookingID, "confirm"),
		checkout.DepositConfirmRequest{PaymentIntentID: paymentIntentID}, &out,
		httpclient.WithIdempotencyKey("deposit:"+paymentIntentID))
	return out, err
}

func depositPath(bookingID, step string) string {
	return fmt.Sprintf("/api/bookings/%s/deposit/%s", url.PathEscape(bookingID), step)
}

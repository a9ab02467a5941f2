package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// Broker prepares intents through the configured provider. It never retries;
// a failed Prepare is repeated only when the customer tries again.
type Broker struct {
	provider Provider
	logger   *logger.Logger
}

func NewBroker(provider Provider, logg *logger.Logger) (*Broker, error) {
	if provider == nil {
		return nil, errors.New("payment provider is required")
	}
	return &Broker{provider: provider, logger: logg}, nil
}

// Provider returns the selected provider.
func (b *Broker) Provider() Provider {
	return b.provider
}

// Prepare asks the provider for an intent over the given payable snapshot.
// The returned summary total is the amount the customer is charged.
func (b *Broker) Prepare(ctx context.Context, order Order) (checkout.IntentResponse, error) {
	if len(order.Items) == 0 {
		return checkout.IntentResponse{}, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}
	order.PromoCode = strings.ToUpper(strings.TrimSpace(order.PromoCode))
	intent, err := b.provider.Prepare(ctx, order)
	if err != nil {
		return checkout.IntentResponse{}, err
	}
	if intent.Summary.Total <= 0 || intent.Amount <= 0 {
		return checkout.IntentResponse{}, pkgerrors.New(pkgerrors.CodePayment, "No payment is required for this cart")
	}
	if b.logger != nil {
		ctx = b.logger.WithFields(b.logger.WithProvider(ctx, b.provider.Name()), map[string]any{
			"items":  len(order.Items),
			"amount": intent.Amount,
			"mock":   intent.Mock,
		})
		b.logger.Info(ctx, fmt.Sprintf("%s intent prepared", b.provider.Name()))
	}
	return intent, nil
}

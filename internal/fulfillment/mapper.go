package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/internal/payments"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// CapturedMessage is shown when a charge went through but the order could not
// be finalized.
const CapturedMessage = "Payment captured, but we could not finalize the order. Please contact support."

// ErrFinalizeAfterCapture marks a failure after the customer was charged. It
// is never retried automatically.
var ErrFinalizeAfterCapture = errors.New("payment captured but order not finalized")

// CaptureError wraps the cause of a post-capture failure.
func CaptureError(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeFulfillment, errors.Join(ErrFinalizeAfterCapture, cause), CapturedMessage)
}

// Ledger is the slice of the cart ledger the mapper mutates.
type Ledger interface {
	Apply(ctx context.Context, op string, transforms ...func([]ledger.Item) ([]ledger.Item, error)) error
	PaidTransform(id string, f ledger.TicketFulfillment) func([]ledger.Item) ([]ledger.Item, error)
	ActivatedTransform(id string, activatedAt *time.Time) func([]ledger.Item) ([]ledger.Item, error)
}

type Mapper struct {
	ledger Ledger
	logger *logger.Logger
}

func NewMapper(l Ledger, logg *logger.Logger) (*Mapper, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	return &Mapper{ledger: l, logger: logg}, nil
}

// Finalize submits the snapshot and proof through the provider's finalize
// endpoint.
func (m *Mapper) Finalize(ctx context.Context, provider payments.Provider, order payments.Order, proof payments.Proof) (checkout.FinalizeResponse, error) {
	if provider == nil {
		return checkout.FinalizeResponse{}, errors.New("payment provider is required")
	}
	return provider.Finalize(ctx, order, proof)
}

// Apply reconciles a result into the ledger. Entries are located by cartIndex
// in the submitted snapshot; the snapshot item id, never its label or price,
// selects the ledger item. Every entry is validated before the first
// mutation, and all mutations land as one ledger change.
func (m *Mapper) Apply(ctx context.Context, snapshot []ledger.Item, result checkout.FinalizeResponse) error {
	transforms, err := m.plan(snapshot, result)
	if err != nil {
		return err
	}
	if err := m.ledger.Apply(ctx, "fulfill", transforms...); err != nil {
		return err
	}
	if m.logger != nil {
		ctx = m.logger.WithFields(ctx, map[string]any{
			"tickets":     len(result.Tickets),
			"memberships": len(result.Memberships),
		})
		m.logger.Info(ctx, "fulfillment applied to cart")
	}
	return nil
}

func (m *Mapper) plan(snapshot []ledger.Item, result checkout.FinalizeResponse) ([]func([]ledger.Item) ([]ledger.Item, error), error) {
	used := map[int]bool{}
	locate := func(index int, itemID string, kind ledger.Kind) (ledger.Item, error) {
		if index < 0 || index >= len(snapshot) {
			return ledger.Item{}, mismatch("cartIndex %d is outside the submitted cart of %d items", index, len(snapshot))
		}
		if used[index] {
			return ledger.Item{}, mismatch("cartIndex %d was fulfilled twice", index)
		}
		used[index] = true
		item := snapshot[index]
		if itemID != "" && itemID != item.ID {
			return ledger.Item{}, mismatch("cartIndex %d echoed item %s but the cart holds %s", index, itemID, item.ID)
		}
		if item.Kind != kind {
			return ledger.Item{}, mismatch("cartIndex %d is a %s, not a %s", index, item.Kind, kind)
		}
		return item, nil
	}

	transforms := make([]func([]ledger.Item) ([]ledger.Item, error), 0, len(result.Tickets)+len(result.Memberships))
	for _, entry := range result.Tickets {
		item, err := locate(entry.CartIndex, entry.ItemID, ledger.KindTicket)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, m.ledger.PaidTransform(item.ID, ticketFulfillment(entry.Ticket)))
	}
	for _, entry := range result.Memberships {
		item, err := locate(entry.CartIndex, entry.ItemID, ledger.KindMembership)
		if err != nil {
			return nil, err
		}
		startedAt := entry.Membership.StartedAt
		var at *time.Time
		if !startedAt.IsZero() {
			at = &startedAt
		}
		transforms = append(transforms, m.ledger.ActivatedTransform(item.ID, at))
	}
	if len(used) != len(snapshot) {
		return nil, mismatch("the server fulfilled %d of %d submitted items", len(used), len(snapshot))
	}
	return transforms, nil
}

func ticketFulfillment(t checkout.TicketFulfillment) ledger.TicketFulfillment {
	codes := make([]string, 0, len(t.Codes))
	for _, code := range t.Codes {
		codes = append(codes, code.Code)
	}
	discounts := make([]ledger.Discount, 0, len(t.Discounts))
	for _, d := range t.Discounts {
		discounts = append(discounts, ledger.Discount{Label: d.Label, Amount: d.Amount})
	}
	var purchasedAt *time.Time
	if !t.PurchasedAt.IsZero() {
		at := t.PurchasedAt
		purchasedAt = &at
	}
	return ledger.TicketFulfillment{
		TicketID:    t.ID,
		Codes:       codes,
		Discounts:   discounts,
		PromoCode:   t.PromoCode,
		PurchasedAt: purchasedAt,
	}
}

func mismatch(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf(format, args...))
}

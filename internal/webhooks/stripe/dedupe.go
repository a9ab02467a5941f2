package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/angelmondragon/playfunia-backend/pkg/redis"
)

const (
	markProcessing = "processing"
	markDone       = "done"

	// DefaultProcessingTTL bounds how long a crashed handler can hold an event.
	DefaultProcessingTTL = 5 * time.Minute
)

// Claim is the outcome of trying to take ownership of a webhook event.
type Claim int

const (
	// ClaimAcquired means the caller must process the event.
	ClaimAcquired Claim = iota
	// ClaimDuplicate means the event was already processed.
	ClaimDuplicate
	// ClaimInFlight means another delivery of the event is being processed.
	ClaimInFlight
)

type dedupeStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// Deduper remembers processed provider events so redeliveries are
// acknowledged without running side effects twice.
type Deduper struct {
	store      dedupeStore
	provider   string
	ttl        time.Duration
	processing time.Duration
}

func NewDeduper(store dedupeStore, provider string, ttl time.Duration) (*Deduper, error) {
	if store == nil {
		return nil, errors.New("dedupe store is required")
	}
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	processing := DefaultProcessingTTL
	if processing > ttl {
		processing = ttl
	}
	return &Deduper{store: store, provider: provider, ttl: ttl, processing: processing}, nil
}

// Claim marks eventID as processing unless a marker already exists.
func (d *Deduper) Claim(ctx context.Context, eventID string) (Claim, error) {
	if eventID == "" {
		return ClaimAcquired, errors.New("event id is required")
	}
	key := d.store.WebhookEventKey(d.provider, eventID)
	set, err := d.store.SetNX(ctx, key, markProcessing, d.processing)
	if err != nil {
		return ClaimAcquired, fmt.Errorf("claim webhook event: %w", err)
	}
	if set {
		return ClaimAcquired, nil
	}
	mark, err := d.store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.ErrNotFound):
		// the marker expired between the two calls
		return d.Claim(ctx, eventID)
	case err != nil:
		return ClaimAcquired, fmt.Errorf("read webhook event marker: %w", err)
	case mark == markDone:
		return ClaimDuplicate, nil
	default:
		return ClaimInFlight, nil
	}
}

// Complete records eventID as processed for the replay window.
func (d *Deduper) Complete(ctx context.Context, eventID string) error {
	return d.store.Set(ctx, d.store.WebhookEventKey(d.provider, eventID), markDone, d.ttl)
}

// Release drops the marker so the provider's retry is processed.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	return d.store.Del(ctx, d.store.WebhookEventKey(d.provider, eventID))
}

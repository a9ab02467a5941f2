package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// TicketFulfillment is what the server returned for one ticket item.
type TicketFulfillment struct {
	TicketID    string
	Codes       []string
	Discounts   []Discount
	PromoCode   string
	PurchasedAt *time.Time
}

// Options configures a Ledger. Store defaults to an empty MemoryStore and
// Clock to time.Now.
type Options struct {
	Store  Store
	Logger *logger.Logger
	Clock  func() time.Time
}

// Ledger holds the in-progress cart. Every mutator is a pure transform over
// the item list; on success the new list is saved to the store and handed
// to every subscriber.
type Ledger struct {
	mu      sync.Mutex
	items   []Item
	store   Store
	logger  *logger.Logger
	now     func() time.Time
	subs    map[int]func([]Item)
	nextSub int
}

// New loads the persisted cart. Load failures are logged and start empty.
func New(ctx context.Context, opts Options) *Ledger {
	l := &Ledger{
		store:  opts.Store,
		logger: opts.Logger,
		now:    opts.Clock,
		subs:   map[int]func([]Item){},
	}
	if l.store == nil {
		l.store = NewMemoryStore(nil)
	}
	if l.now == nil {
		l.now = time.Now
	}
	data, err := l.store.Load(ctx)
	if err != nil {
		warn(ctx, l.logger, "cart store unreadable, starting empty", err, nil)
		data = nil
	}
	l.items = Decode(ctx, data, l.logger)
	return l
}

// Items returns a copy of the full item list.
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAll(l.items)
}

// PayableItems returns the tickets that are not paid followed by the
// memberships that are not activated. Relative cart order is kept within
// each group.
func (l *Ledger) PayableItems() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return payable(l.items)
}

func payable(items []Item) []Item {
	out := []Item{}
	for _, kind := range []Kind{KindTicket, KindMembership} {
		for _, item := range items {
			if item.Kind == kind && item.Payable() {
				out = append(out, item.clone())
			}
		}
	}
	return out
}

// Subscribe registers fn for every change and returns its unsubscribe func.
// fn runs outside the ledger lock.
func (l *Ledger) Subscribe(fn func([]Item)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Add appends a ticket or membership. A booking replaces any item holding
// the same bookingId, unless that would undo a paid deposit.
func (l *Ledger) Add(ctx context.Context, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	added := item.clone()
	return l.mutate(ctx, "add", func(items []Item) ([]Item, error) {
		for _, existing := range items {
			if existing.ID == added.ID {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cart item %s already exists", added.ID))
			}
		}
		if added.Kind != KindBooking {
			return append(items, added), nil
		}
		out := make([]Item, 0, len(items)+1)
		for _, existing := range items {
			if existing.Kind == KindBooking && existing.Booking.BookingID == added.Booking.BookingID {
				if existing.Booking.Status == BookingDepositPaid && added.Booking.Status != BookingDepositPaid {
					return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deposit already paid for this booking")
				}
				continue
			}
			out = append(out, existing)
		}
		return append(out, added), nil
	})
}

// Remove drops the item with the given id.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	return l.mutate(ctx, "remove", func(items []Item) ([]Item, error) {
		out := make([]Item, 0, len(items))
		for _, item := range items {
			if item.ID != id {
				out = append(out, item)
			}
		}
		if len(out) == len(items) {
			return nil, notFound(id)
		}
		return out, nil
	})
}

// MarkPaid moves a ticket to paid. Applying it again to a paid ticket
// replaces the codes instead of appending.
func (l *Ledger) MarkPaid(ctx context.Context, id string, f TicketFulfillment) error {
	return l.mutate(ctx, "mark_paid", l.PaidTransform(id, f))
}

// MarkActivated moves a membership to activated. A nil activatedAt means now.
func (l *Ledger) MarkActivated(ctx context.Context, id string, activatedAt *time.Time) error {
	return l.mutate(ctx, "mark_activated", l.ActivatedTransform(id, activatedAt))
}

// MarkDepositPaid records the server-computed balance on the booking item.
func (l *Ledger) MarkDepositPaid(ctx context.Context, bookingID string, balanceRemaining float64) error {
	return l.mutate(ctx, "mark_deposit_paid", func(items []Item) ([]Item, error) {
		for idx, item := range items {
			if item.Kind != KindBooking || item.Booking.BookingID != bookingID {
				continue
			}
			out := cloneAll(items)
			out[idx].Booking.Status = BookingDepositPaid
			out[idx].Booking.BalanceRemaining = balanceRemaining
			return out, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no deposit item for booking %s", bookingID))
	})
}

// Clear empties the cart.
func (l *Ledger) Clear(ctx context.Context) error {
	return l.mutate(ctx, "clear", func([]Item) ([]Item, error) {
		return []Item{}, nil
	})
}

// Apply runs several transforms as one change: either all succeed and a
// single update is published, or nothing changes.
func (l *Ledger) Apply(ctx context.Context, op string, transforms ...func([]Item) ([]Item, error)) error {
	return l.mutate(ctx, op, func(items []Item) ([]Item, error) {
		current := items
		for _, transform := range transforms {
			next, err := transform(current)
			if err != nil {
				return nil, err
			}
			current = next
		}
		return current, nil
	})
}

// PaidTransform is the MarkPaid transform, for use with Apply.
func (l *Ledger) PaidTransform(id string, f TicketFulfillment) func([]Item) ([]Item, error) {
	return func(items []Item) ([]Item, error) {
		return update(items, id, KindTicket, func(item *Item) error {
			t := item.Ticket
			t.Status = TicketPaid
			if f.TicketID != "" {
				t.TicketID = f.TicketID
			}
			if f.Codes != nil {
				t.Codes = append([]string{}, f.Codes...)
			}
			if f.Discounts != nil {
				t.Discounts = append([]Discount{}, f.Discounts...)
			}
			if f.PromoCode != "" {
				t.PromoCode = f.PromoCode
			}
			if t.PurchasedAt == nil {
				t.PurchasedAt = l.stamp(f.PurchasedAt)
			}
			return nil
		})
	}
}

// ActivatedTransform is the MarkActivated transform, for use with Apply.
func (l *Ledger) ActivatedTransform(id string, activatedAt *time.Time) func([]Item) ([]Item, error) {
	return func(items []Item) ([]Item, error) {
		return update(items, id, KindMembership, func(item *Item) error {
			item.Membership.Status = MembershipActivated
			item.Membership.ActivatedAt = l.stamp(activatedAt)
			return nil
		})
	}
}

func (l *Ledger) stamp(at *time.Time) *time.Time {
	ts := l.now().UTC()
	if at != nil {
		ts = at.UTC()
	}
	return &ts
}

func (l *Ledger) mutate(ctx context.Context, op string, transform func([]Item) ([]Item, error)) error {
	l.mu.Lock()
	next, err := transform(cloneAll(l.items))
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.items = next
	l.persist(ctx, op)
	snapshot := cloneAll(next)
	subs := make([]func([]Item), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(cloneAll(snapshot))
	}
	return nil
}

// persist runs under l.mu so saves land in mutation order.
func (l *Ledger) persist(ctx context.Context, op string) {
	data, err := Encode(l.items)
	if err == nil {
		err = l.store.Save(ctx, data)
	}
	if err != nil {
		warn(ctx, l.logger, "cart save failed", err, map[string]any{"op": op})
	}
}

func update(items []Item, id string, kind Kind, fn func(*Item) error) ([]Item, error) {
	for idx, item := range items {
		if item.ID != id {
			continue
		}
		if item.Kind != kind {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %s is a %s, not a %s", id, item.Kind, kind))
		}
		out := cloneAll(items)
		if err := fn(&out[idx]); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, notFound(id)
}

func cloneAll(items []Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.clone()
	}
	return out
}

func notFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart item %s not found", id))
}

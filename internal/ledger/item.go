package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

// Kind tags the variant held by an Item.
type Kind string

const (
	KindTicket     Kind = "ticket"
	KindMembership Kind = "membership"
	KindBooking    Kind = "booking"
)

type TicketStatus string

const (
	TicketPending TicketStatus = "pending"
	TicketPaid    TicketStatus = "paid"
)

type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActivated MembershipStatus = "activated"
)

type BookingStatus string

const (
	BookingAwaitingDeposit BookingStatus = "awaiting_deposit"
	BookingDepositPaid     BookingStatus = "deposit_paid"
)

// Discount is one itemized price reduction.
type Discount struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type Ticket struct {
	TicketID    string       `json:"ticketId,omitempty"`
	EventID     string       `json:"eventId,omitempty"`
	Label       string       `json:"label"`
	Quantity    int          `json:"quantity"`
	UnitPrice   float64      `json:"unitPrice"`
	Total       float64      `json:"total"`
	Codes       []string     `json:"codes"`
	Discounts   []Discount   `json:"discounts"`
	PromoCode   string       `json:"promoCode,omitempty"`
	Status      TicketStatus `json:"status"`
	PurchasedAt *time.Time   `json:"purchasedAt,omitempty"`
}

type Membership struct {
	MembershipID   string           `json:"membershipId"`
	Label          string           `json:"label"`
	MonthlyPrice   float64          `json:"monthlyPrice"`
	DurationMonths int              `json:"durationMonths"`
	AutoRenew      bool             `json:"autoRenew"`
	Total          float64          `json:"total"`
	Status         MembershipStatus `json:"status"`
	ActivatedAt    *time.Time       `json:"activatedAt,omitempty"`
}

type Booking struct {
	BookingID        string        `json:"bookingId"`
	Reference        string        `json:"reference"`
	Location         string        `json:"location"`
	EventDate        string        `json:"eventDate"`
	StartTime        string        `json:"startTime"`
	Total            float64       `json:"total"`
	DepositAmount    float64       `json:"depositAmount"`
	BalanceRemaining float64       `json:"balanceRemaining"`
	Status           BookingStatus `json:"status"`
}

// Item is one cart entry. Exactly one of Ticket, Membership or Booking is
// set, matching Kind. Use the constructors and Visit instead of switching on
// Kind by hand.
type Item struct {
	ID         string
	Kind       Kind
	Ticket     *Ticket
	Membership *Membership
	Booking    *Booking
}

// Visitor handles every variant. Adding a variant adds a method, so every
// implementation stops compiling until it handles the new case.
type Visitor interface {
	VisitTicket(id string, t *Ticket) error
	VisitMembership(id string, m *Membership) error
	VisitBooking(id string, b *Booking) error
}

func NewTicket(id string, t Ticket) Item {
	if t.Status == "" {
		t.Status = TicketPending
	}
	if t.Codes == nil {
		t.Codes = []string{}
	}
	if t.Discounts == nil {
		t.Discounts = []Discount{}
	}
	return Item{ID: id, Kind: KindTicket, Ticket: &t}
}

func NewMembership(id string, m Membership) Item {
	if m.Status == "" {
		m.Status = MembershipPending
	}
	return Item{ID: id, Kind: KindMembership, Membership: &m}
}

func NewBooking(id string, b Booking) Item {
	if b.Status == "" {
		b.Status = BookingAwaitingDeposit
	}
	return Item{ID: id, Kind: KindBooking, Booking: &b}
}

// Visit dispatches to the visitor method of the held variant.
func (i Item) Visit(v Visitor) error {
	if err := i.validateShape(); err != nil {
		return err
	}
	switch i.Kind {
	case KindTicket:
		return v.VisitTicket(i.ID, i.Ticket)
	case KindMembership:
		return v.VisitMembership(i.ID, i.Membership)
	default:
		return v.VisitBooking(i.ID, i.Booking)
	}
}

// Validate checks a new item: its shape plus a positive ticket quantity.
func (i Item) Validate() error {
	if err := i.validateShape(); err != nil {
		return err
	}
	if i.Kind == KindTicket && i.Ticket.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity must be positive")
	}
	return nil
}

// validateShape checks the tag against the variant and the status
// invariants. Stored items are held to this only, so a saved quantity-0
// ticket still reloads.
func (i Item) validateShape() error {
	if strings.TrimSpace(i.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required")
	}
	set := 0
	for _, present := range []bool{i.Ticket != nil, i.Membership != nil, i.Booking != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %s must hold exactly one variant", i.ID))
	}
	switch i.Kind {
	case KindTicket:
		if i.Ticket == nil {
			return variantMismatch(i.ID, i.Kind)
		}
		if i.Ticket.Quantity < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity cannot be negative")
		}
		if i.Ticket.Status == TicketPending && len(i.Ticket.Codes) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "pending tickets cannot carry codes")
		}
		if i.Ticket.Status != TicketPending && i.Ticket.Status != TicketPaid {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown ticket status %q", i.Ticket.Status))
		}
	case KindMembership:
		if i.Membership == nil {
			return variantMismatch(i.ID, i.Kind)
		}
		if i.Membership.MembershipID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "membership plan id is required")
		}
		if i.Membership.Status != MembershipPending && i.Membership.Status != MembershipActivated {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown membership status %q", i.Membership.Status))
		}
	case KindBooking:
		if i.Booking == nil {
			return variantMismatch(i.ID, i.Kind)
		}
		if i.Booking.BookingID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
		}
		if i.Booking.Status != BookingAwaitingDeposit && i.Booking.Status != BookingDepositPaid {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown booking status %q", i.Booking.Status))
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cart item type %q", i.Kind))
	}
	return nil
}

// Payable reports whether the item still awaits checkout. Bookings are paid
// through the deposit flow and are never payable here.
func (i Item) Payable() bool {
	switch i.Kind {
	case KindTicket:
		return i.Ticket != nil && i.Ticket.Status != TicketPaid
	case KindMembership:
		return i.Membership != nil && i.Membership.Status != MembershipActivated
	default:
		return false
	}
}

// Label returns a display label for any variant.
func (i Item) Label() string {
	switch {
	case i.Ticket != nil:
		return i.Ticket.Label
	case i.Membership != nil:
		return i.Membership.Label
	case i.Booking != nil:
		return "Deposit " + i.Booking.Reference
	}
	return ""
}

func (i Item) clone() Item {
	out := Item{ID: i.ID, Kind: i.Kind}
	if i.Ticket != nil {
		t := *i.Ticket
		t.Codes = append([]string{}, i.Ticket.Codes...)
		t.Discounts = append([]Discount{}, i.Ticket.Discounts...)
		if i.Ticket.PurchasedAt != nil {
			at := *i.Ticket.PurchasedAt
			t.PurchasedAt = &at
		}
		out.Ticket = &t
	}
	if i.Membership != nil {
		m := *i.Membership
		if i.Membership.ActivatedAt != nil {
			at := *i.Membership.ActivatedAt
			m.ActivatedAt = &at
		}
		out.Membership = &m
	}
	if i.Booking != nil {
		b := *i.Booking
		out.Booking = &b
	}
	return out
}

func variantMismatch(id string, kind Kind) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart item %s is tagged %s but holds another variant", id, kind))
}

type itemHeader struct {
	ID   string `json:"id"`
	Type Kind   `json:"type"`
}

// MarshalJSON writes the flat `{id, type, ...variant}` document.
func (i Item) MarshalJSON() ([]byte, error) {
	header := itemHeader{ID: i.ID, Type: i.Kind}
	switch i.Kind {
	case KindTicket:
		if i.Ticket == nil {
			return nil, variantMismatch(i.ID, i.Kind)
		}
		return json.Marshal(struct {
			itemHeader
			*Ticket
		}{header, i.Ticket})
	case KindMembership:
		if i.Membership == nil {
			return nil, variantMismatch(i.ID, i.Kind)
		}
		return json.Marshal(struct {
			itemHeader
			*Membership
		}{header, i.Membership})
	case KindBooking:
		if i.Booking == nil {
			return nil, variantMismatch(i.ID, i.Kind)
		}
		return json.Marshal(struct {
			itemHeader
			*Booking
		}{header, i.Booking})
	default:
		return nil, fmt.Errorf("unknown cart item type %q", i.Kind)
	}
}

// UnmarshalJSON reads the flat document and fills absent fields: ticket
// unitPrice from total/quantity, empty codes and discounts, and the initial
// status of each variant.
func (i *Item) UnmarshalJSON(data []byte) error {
	var header itemHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	switch header.Type {
	case KindTicket:
		var wire struct {
			Ticket
			UnitPrice *float64 `json:"unitPrice"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return err
		}
		t := wire.Ticket
		switch {
		case wire.UnitPrice != nil:
			t.UnitPrice = *wire.UnitPrice
		case t.Quantity > 0:
			t.UnitPrice = t.Total / float64(t.Quantity)
		default:
			t.UnitPrice = 0
		}
		*i = NewTicket(header.ID, t)
	case KindMembership:
		var m Membership
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*i = NewMembership(header.ID, m)
	case KindBooking:
		var b Booking
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*i = NewBooking(header.ID, b)
	default:
		return fmt.Errorf("unknown cart item type %q", header.Type)
	}
	return nil
}

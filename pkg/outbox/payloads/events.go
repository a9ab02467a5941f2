package payloads

import (
	"time"

	"github.com/google/uuid"
)

// BookingEvent covers created, updated, cancelled and status changes.
type BookingEvent struct {
	BookingID        uuid.UUID  `json:"bookingId"`
	Reference        string     `json:"reference"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"paymentStatus"`
	Location         string     `json:"location,omitempty"`
	EventDate        string     `json:"eventDate,omitempty"`
	StartTime        string     `json:"startTime,omitempty"`
	Guests           int        `json:"guests,omitempty"`
	Total            float64    `json:"total"`
	DepositAmount    float64    `json:"depositAmount"`
	BalanceRemaining float64    `json:"balanceRemaining"`
	UserID           *uuid.UUID `json:"userId,omitempty"`
}

// TicketReservedEvent is emitted once per ticket row created by checkout.
type TicketReservedEvent struct {
	TicketID    uuid.UUID  `json:"ticketId"`
	Label       string     `json:"label"`
	Quantity    int        `json:"quantity"`
	Codes       []string   `json:"codes"`
	Total       float64    `json:"total"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	GuestEmail  string     `json:"guestEmail,omitempty"`
	PurchasedAt time.Time  `json:"purchasedAt"`
}

type TicketRedeemedEvent struct {
	TicketID   uuid.UUID  `json:"ticketId"`
	Code       string     `json:"code"`
	RedeemedAt time.Time  `json:"redeemedAt"`
	RedeemedBy *uuid.UUID `json:"redeemedBy,omitempty"`
}

type WaiverUpdatedEvent struct {
	WaiverID      uuid.UUID  `json:"waiverId"`
	GuardianName  string     `json:"guardianName"`
	GuardianEmail string     `json:"guardianEmail"`
	Children      []string   `json:"children"`
	SignedAt      time.Time  `json:"signedAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type MembershipEvent struct {
	MembershipID   uuid.UUID  `json:"membershipId"`
	UserID         uuid.UUID  `json:"userId"`
	Tier           string     `json:"tier"`
	Status         string     `json:"status"`
	VisitsUsed     int        `json:"visitsUsed"`
	VisitsPerMonth *int       `json:"visitsPerMonth,omitempty"`
	LastVisitAt    *time.Time `json:"lastVisitAt,omitempty"`
	ExpiresAt      time.Time  `json:"expiresAt"`
}

// CheckoutCompletedEvent summarizes one finalized payment.
type CheckoutCompletedEvent struct {
	Provider         string     `json:"provider"`
	PaymentReference string     `json:"paymentReference"`
	Amount           float64    `json:"amount"`
	TicketCount      int        `json:"ticketCount"`
	MembershipCount  int        `json:"membershipCount"`
	UserID           *uuid.UUID `json:"userId,omitempty"`
	GuestEmail       string     `json:"guestEmail,omitempty"`
}

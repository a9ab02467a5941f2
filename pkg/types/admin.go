package types

import "time"

// AdminSummary is the back-office headline counters.
type AdminSummary struct {
	UpcomingBookings  int     `json:"upcomingBookings"`
	PendingDeposits   int     `json:"pendingDeposits"`
	TicketsSold       int     `json:"ticketsSold"`
	TicketsRedeemed   int     `json:"ticketsRedeemed"`
	ActiveMemberships int     `json:"activeMemberships"`
	WaiversOnFile     int     `json:"waiversOnFile"`
	DepositsCollected float64 `json:"depositsCollected"`
}

type AdminBooking struct {
	ID               string    `json:"id"`
	Reference        string    `json:"reference"`
	PackageID        string    `json:"packageId"`
	Location         string    `json:"location"`
	EventDate        string    `json:"eventDate"`
	StartTime        string    `json:"startTime"`
	Guests           int       `json:"guests"`
	Notes            string    `json:"notes,omitempty"`
	ContactName      string    `json:"contactName"`
	ContactEmail     string    `json:"contactEmail"`
	Status           string    `json:"status"`
	PaymentStatus    string    `json:"paymentStatus"`
	Total            float64   `json:"total"`
	DepositAmount    float64   `json:"depositAmount"`
	BalanceRemaining float64   `json:"balanceRemaining"`
	CreatedAt        time.Time `json:"createdAt"`
}

type AdminWaiver struct {
	ID            string    `json:"id"`
	GuardianName  string    `json:"guardianName"`
	GuardianEmail string    `json:"guardianEmail"`
	GuardianPhone string    `json:"guardianPhone"`
	Children      []string  `json:"children"`
	Notes         string    `json:"notes,omitempty"`
	SignedAt      time.Time `json:"signedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type AdminTicketCode struct {
	Code       string     `json:"code"`
	Status     string     `json:"status"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

type AdminTicket struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Quantity    int               `json:"quantity"`
	Total       float64           `json:"total"`
	Status      string            `json:"status"`
	GuestEmail  string            `json:"guestEmail,omitempty"`
	Codes       []AdminTicketCode `json:"codes"`
	PurchasedAt time.Time         `json:"purchasedAt"`
}

type AdminMembership struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	PlanID         string     `json:"planId"`
	TierName       string     `json:"tierName"`
	Status         string     `json:"status"`
	VisitsPerMonth *int       `json:"visitsPerMonth,omitempty"`
	VisitsUsed     int        `json:"visitsUsed"`
	LastVisitAt    *time.Time `json:"lastVisitAt,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
}

// AdminEvent is one operational notification on the admin event stream.
type AdminEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingPatch is the editable subset of a booking. Nil fields are unchanged.
type BookingPatch struct {
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=500"`
	Guests *int    `json:"guests,omitempty" validate:"omitempty,min=1,max=60"`
}

// BookingStatusPatch moves a booking through its lifecycle.
type BookingStatusPatch struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}

// WaiverPatch is the editable subset of a waiver. Nil fields are unchanged.
type WaiverPatch struct {
	GuardianName  *string `json:"guardianName,omitempty" validate:"omitempty,min=1,max=120"`
	GuardianEmail *string `json:"guardianEmail,omitempty" validate:"omitempty,email"`
	GuardianPhone *string `json:"guardianPhone,omitempty" validate:"omitempty,min=10,max=30"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

package checkout

import "time"

// Item types carried in LineItem.Type.
const (
	ItemTicket     = "ticket"
	ItemMembership = "membership"
)

// LineItem is one payable cart item as declared by the client. Prices are
// advisory; the server re-prices every line.
type LineItem struct {
	ItemID         string  `json:"itemId" validate:"required"`
	Type           string  `json:"type" validate:"required,oneof=ticket membership"`
	Label          string  `json:"label" validate:"required"`
	Quantity       int     `json:"quantity" validate:"min=1"`
	UnitPrice      float64 `json:"unitPrice" validate:"min=0"`
	Total          float64 `json:"total" validate:"min=0"`
	EventID        string  `json:"eventId,omitempty"`
	MembershipID   string  `json:"membershipId,omitempty"`
	DurationMonths int     `json:"durationMonths,omitempty"`
	AutoRenew      bool    `json:"autoRenew,omitempty"`
}

// Guest is the contact of a customer paying without an account.
type Guest struct {
	FirstName string `json:"firstName" validate:"required,max=80"`
	LastName  string `json:"lastName" validate:"required,max=80"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,min=10,max=32"`
}

// IntentRequest asks for a priced, chargeable intent.
type IntentRequest struct {
	Items              []LineItem `json:"items" validate:"required,min=1,dive"`
	PromoCode          string     `json:"promoCode,omitempty" validate:"max=32"`
	Guest              *Guest     `json:"guest,omitempty" validate:"omitempty"`
	WaiverAcknowledged bool       `json:"waiverAcknowledged,omitempty"`
}

type Discount struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// SummaryLine is the server price of one request line.
type SummaryLine struct {
	CartIndex int        `json:"cartIndex"`
	ItemID    string     `json:"itemId"`
	Type      string     `json:"type"`
	Label     string     `json:"label"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unitPrice"`
	Subtotal  float64    `json:"subtotal"`
	Discount  float64    `json:"discount"`
	Discounts []Discount `json:"discounts"`
	Total     float64    `json:"total"`
}

// Summary is the authoritative price of an order. Total is what is charged.
type Summary struct {
	Currency  string        `json:"currency"`
	Subtotal  float64       `json:"subtotal"`
	Discounts []Discount    `json:"discounts"`
	Total     float64       `json:"total"`
	Lines     []SummaryLine `json:"lines"`
}

// IntentResponse is a prepared payment intent. Amount is in minor units.
// Square intents carry no id or secret; the source token comes later.
type IntentResponse struct {
	Provider        string  `json:"provider"`
	PaymentIntentID string  `json:"paymentIntentId,omitempty"`
	ClientSecret    string  `json:"clientSecret,omitempty"`
	Amount          int64   `json:"amount"`
	Currency        string  `json:"currency"`
	Summary         Summary `json:"summary"`
	PromoCode       string  `json:"promoCode,omitempty"`
	Mock            bool    `json:"mock"`
}

// FinalizeRequest exchanges proof of payment for fulfillment. Stripe and mock
// payments send PaymentIntentID; Square sends SourceID.
type FinalizeRequest struct {
	IntentRequest
	PaymentIntentID   string `json:"paymentIntentId,omitempty"`
	SourceID          string `json:"sourceId,omitempty"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

type TicketCode struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

type TicketFulfillment struct {
	ID          string       `json:"id"`
	Codes       []TicketCode `json:"codes"`
	Discounts   []Discount   `json:"discounts"`
	PromoCode   string       `json:"promoCode,omitempty"`
	PurchasedAt time.Time    `json:"purchasedAt"`
}

type TicketResult struct {
	CartIndex int               `json:"cartIndex"`
	ItemID    string            `json:"itemId"`
	Ticket    TicketFulfillment `json:"ticket"`
}

type MembershipFulfillment struct {
	ID             string    `json:"id"`
	MembershipID   string    `json:"membershipId"`
	TierName       string    `json:"tierName"`
	StartedAt      time.Time `json:"startedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	AutoRenew      bool      `json:"autoRenew"`
	VisitsPerMonth *int      `json:"visitsPerMonth,omitempty"`
}

type MembershipResult struct {
	CartIndex  int                   `json:"cartIndex"`
	ItemID     string                `json:"itemId"`
	Membership MembershipFulfillment `json:"membership"`
}

// FinalizeResponse lists one result per request line, each tagged with the
// request position and the echoed item id.
type FinalizeResponse struct {
	Provider        string             `json:"provider"`
	PaymentIntentID string             `json:"paymentIntentId,omitempty"`
	PaymentID       string             `json:"paymentId,omitempty"`
	Summary         Summary            `json:"summary"`
	Tickets         []TicketResult     `json:"tickets"`
	Memberships     []MembershipResult `json:"memberships"`
	ReceiptEmail    string             `json:"receiptEmail,omitempty"`
	ReceiptURL      string             `json:"receiptUrl,omitempty"`
}

// DepositIntentResponse prepares the deposit of one booking. Amount is in
// dollars, matching the booking fields.
type DepositIntentResponse struct {
	BookingID       string  `json:"bookingId"`
	Reference       string  `json:"reference"`
	PaymentIntentID string  `json:"paymentIntentId"`
	ClientSecret    string  `json:"clientSecret"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Mock            bool    `json:"mock"`
}

type DepositConfirmRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

type DepositConfirmResponse struct {
	BookingID        string     `json:"bookingId"`
	DepositPaidAt    *time.Time `json:"depositPaidAt,omitempty"`
	BalanceRemaining float64    `json:"balanceRemaining"`
	Status           string     `json:"status"`
}

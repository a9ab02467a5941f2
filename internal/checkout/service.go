package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/memberships"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/internal/tickets"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

// WaiverRequiredMessage blocks ticket purchases until a waiver is on file.
const WaiverRequiredMessage = "Please sign the waiver before purchasing tickets."

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pricer interface {
	Price(lines []wire.LineItem, promoCode string, memberDiscountPercent int) (wire.Summary, error)
	Currency() string
}

type planLookup interface {
	Plan(ctx context.Context, id string) (*models.MembershipPlan, error)
}

type memberDiscounts interface {
	ActiveDiscount(ctx context.Context, userID uuid.UUID) (int, error)
}

type waiverChecker interface {
	HasValid(ctx context.Context, userID uuid.UUID) (bool, error)
}

type intentGateway interface {
	Create(ctx context.Context, in pkgstripe.IntentInput) (intents.Intent, error)
	Verify(ctx context.Context, id string, minCents int64) (intents.Captured, error)
	Mock() bool
}

type ticketReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, in tickets.ReserveInput) (*models.Ticket, error)
}

type membershipActivator interface {
	Activate(ctx context.Context, tx *gorm.DB, in memberships.ActivateInput) (*models.Membership, error)
}

// Buyer is the authenticated caller. UserID is nil for guest checkout.
type Buyer struct {
	UserID *uuid.UUID
	Email  string
}

// Service prices carts, prepares payment intents and fulfils captured payments.
type Service interface {
	CreateIntent(ctx context.Context, buyer Buyer, req wire.IntentRequest) (*wire.IntentResponse, error)
	CreateSquareIntent(ctx context.Context, buyer Buyer, req wire.IntentRequest) (*wire.IntentResponse, error)
	Finalize(ctx context.Context, buyer Buyer, req wire.FinalizeRequest) (*wire.FinalizeResponse, error)
	FinalizeSquare(ctx context.Context, buyer Buyer, req wire.FinalizeRequest) (*wire.FinalizeResponse, error)
}

// Deps groups the collaborators of the checkout service. Square is optional.
type Deps struct {
	Tx          txRunner
	Records     Repository
	Pricer      pricer
	Plans       planLookup
	Discounts   memberDiscounts
	Waivers     waiverChecker
	Intents     intentGateway
	Square      squarePayments
	Tickets     ticketReserver
	Memberships membershipActivator
	Outbox      outbox.Emitter
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
}

type service struct {
	Deps
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Records == nil:
		return nil, fmt.Errorf("checkout repository required")
	case deps.Pricer == nil:
		return nil, fmt.Errorf("pricer required")
	case deps.Plans == nil:
		return nil, fmt.Errorf("plan lookup required")
	case deps.Discounts == nil:
		return nil, fmt.Errorf("membership discounts required")
	case deps.Waivers == nil:
		return nil, fmt.Errorf("waiver checker required")
	case deps.Intents == nil:
		return nil, fmt.Errorf("intent gateway required")
	case deps.Tickets == nil:
		return nil, fmt.Errorf("ticket reserver required")
	case deps.Memberships == nil:
		return nil, fmt.Errorf("membership activator required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{Deps: deps}, nil
}

// order is a validated, server-priced request.
type order struct {
	buyer       Buyer
	req         wire.IntentRequest
	summary     wire.Summary
	amountCents int64
	plans       map[int]models.MembershipPlan
	fingerprint string
	promoCode   string
}

func (o order) receiptEmail() string {
	if o.req.Guest != nil {
		return strings.TrimSpace(o.req.Guest.Email)
	}
	return o.buyer.Email
}

func (o order) counts() (ticketLines, membershipLines int) {
	for _, item := range o.req.Items {
		if item.Type == wire.ItemMembership {
			membershipLines++
		} else {
			ticketLines++
		}
	}
	return ticketLines, membershipLines
}

func (s *service) CreateIntent(ctx context.Context, buyer Buyer, req wire.IntentRequest) (resp *wire.IntentResponse, err error) {
	defer func() { s.Metrics.IncIntent(string(enums.ProviderStripe), metrics.OutcomeOf(err)) }()

	o, err := s.prepare(ctx, buyer, req)
	if err != nil {
		return nil, err
	}
	intent, err := s.Intents.Create(ctx, pkgstripe.IntentInput{
		AmountCents:  o.amountCents,
		Currency:     o.summary.Currency,
		Description:  "Playfunia order",
		ReceiptEmail: o.receiptEmail(),
		Metadata:     intentMetadata(o),
	})
	if err != nil {
		return nil, err
	}
	provider := enums.ProviderStripe
	if intent.Mock {
		provider = enums.ProviderMock
	}
	s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{
		"payment_intent_id": intent.ID,
		"amount":            o.amountCents,
		"mock":              intent.Mock,
	}), "checkout intent created")
	return &wire.IntentResponse{
		Provider:        string(provider),
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          o.amountCents,
		Currency:        intent.Currency,
		Summary:         o.summary,
		PromoCode:       o.promoCode,
		Mock:            intent.Mock,
	}, nil
}

func (s *service) Finalize(ctx context.Context, buyer Buyer, req wire.FinalizeRequest) (resp *wire.FinalizeResponse, err error) {
	provider := enums.ProviderStripe
	if intents.IsMockID(req.PaymentIntentID) {
		provider = enums.ProviderMock
	}
	outcome := ""
	defer func() {
		if outcome == "" {
			outcome = metrics.OutcomeOf(err)
		}
		s.Metrics.IncFinalize(string(provider), outcome)
	}()

	o, err := s.prepare(ctx, buyer, req.IntentRequest)
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(req.PaymentIntentID)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}
	if stored, err := s.replay(ctx, reference, o); stored != nil || err != nil {
		if stored != nil {
			outcome = metrics.OutcomeReplay
		}
		return stored, err
	}

	captured, err := s.Intents.Verify(ctx, reference, o.amountCents)
	if err != nil {
		return nil, err
	}
	if bookingID := captured.Metadata["bookingId"]; bookingID != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "This payment belongs to a party booking deposit").WithDetails(map[string]any{"bookingId": bookingID})
	}

	result := &wire.FinalizeResponse{
		Provider:        string(captured.Provider()),
		PaymentIntentID: captured.ID,
		ReceiptEmail:    firstNonEmpty(captured.ReceiptEmail, o.receiptEmail()),
		ReceiptURL:      captured.ReceiptURL,
	}
	stored, err := s.fulfil(ctx, o, captured.Provider(), captured.ID, captured.AmountReceived, result)
	if stored {
		outcome = metrics.OutcomeReplay
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepare validates the request, applies the guest and waiver rules and
// prices the order.
func (s *service) prepare(ctx context.Context, buyer Buyer, req wire.IntentRequest) (order, error) {
	if err := wire.ValidateLines(req.Items); err != nil {
		return order{}, err
	}
	if buyer.UserID == nil {
		if err := wire.ValidateGuestOrder(req); err != nil {
			return order{}, err
		}
	} else if hasTickets(req.Items) {
		ok, err := s.Waivers.HasValid(ctx, *buyer.UserID)
		if err != nil {
			return order{}, err
		}
		if !ok {
			return order{}, pkgerrors.New(pkgerrors.CodeValidation, WaiverRequiredMessage).WithDetails(map[string]any{"waiverRequired": true})
		}
	}

	plans := map[int]models.MembershipPlan{}
	for idx, item := range req.Items {
		if item.Type != wire.ItemMembership {
			continue
		}
		plan, err := s.Plans.Plan(ctx, item.MembershipID)
		if err != nil {
			return order{}, err
		}
		plans[idx] = *plan
	}

	discount := 0
	if buyer.UserID != nil {
		pct, err := s.Discounts.ActiveDiscount(ctx, *buyer.UserID)
		if err != nil {
			return order{}, err
		}
		discount = pct
	}
	summary, err := s.Pricer.Price(req.Items, req.PromoCode, discount)
	if err != nil {
		return order{}, err
	}

	o := order{
		buyer:       buyer,
		req:         req,
		summary:     summary,
		amountCents: pricing.ToCents(summary.Total),
		plans:       plans,
		fingerprint: Fingerprint(req),
	}
	for _, d := range summary.Discounts {
		if d.Label == pricing.LabelPromo {
			o.promoCode = pricing.NormalizePromo(req.PromoCode)
		}
	}
	return o, nil
}

func intentMetadata(o order) map[string]string {
	meta := map[string]string{
		"itemCount": strconv.Itoa(len(o.req.Items)),
	}
	if o.buyer.UserID != nil {
		meta["userId"] = o.buyer.UserID.String()
	} else if o.req.Guest != nil {
		meta["guestEmail"] = strings.TrimSpace(o.req.Guest.Email)
		meta["guestName"] = strings.TrimSpace(o.req.Guest.FirstName + " " + o.req.Guest.LastName)
	}
	if o.promoCode != "" {
		meta["promoCode"] = o.promoCode
	}
	return meta
}

func hasTickets(items []wire.LineItem) bool {
	for _, item := range items {
		if item.Type == wire.ItemTicket {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

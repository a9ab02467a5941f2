package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	wire "github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

const (
	timeLayout = "15:04"

	// A party occupies the room for partyLength, plus cleaningBuffer on
	// either side.
	partyLength    = 2 * time.Hour
	cleaningBuffer = 30 * time.Minute

	SlotTakenMessage = "Selected slot is no longer available"
)

var validate = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type quoter interface {
	Quote(ctx context.Context, packageID string, guests int, addOns []string) (pricing.Quote, error)
}

type intentGateway interface {
	Create(ctx context.Context, in pkgstripe.IntentInput) (intents.Intent, error)
	Verify(ctx context.Context, id string, minCents int64) (intents.Captured, error)
}

// CreateInput is a party booking request.
type CreateInput struct {
	UserID       *uuid.UUID
	PackageID    string
	Location     string
	EventDate    string
	StartTime    string
	Guests       int
	AddOns       []string
	Notes        string
	ContactName  string
	ContactEmail string
	ContactPhone string
}

type ListFilter struct {
	UserID *uuid.UUID
	// From drops bookings whose event date is before this day.
	From  *time.Time
	Limit int
}

type Service interface {
	Estimate(ctx context.Context, packageID string, guests int, addOns []string) (pricing.Quote, error)
	Create(ctx context.Context, in CreateInput) (*models.Booking, error)
	// Get returns the booking when owner is nil or owns it.
	Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, filter ListFilter) ([]models.Booking, error)
	Update(ctx context.Context, id uuid.UUID, patch types.BookingPatch) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus) (*models.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Booking, error)
	CreateDepositIntent(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*wire.DepositIntentResponse, error)
	ConfirmDeposit(ctx context.Context, id uuid.UUID, owner *uuid.UUID, paymentIntentID string) (*wire.DepositConfirmResponse, error)
}

type service struct {
	repo      *Repository
	tx        txRunner
	quotes    quoter
	intents   intentGateway
	outbox    outbox.Emitter
	locations []string
	currency  string
	now       func() time.Time
}

func NewService(repo *Repository, tx txRunner, quotes quoter, gateway intentGateway, emitter outbox.Emitter, cfg config.BookingsConfig, currency string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if quotes == nil {
		return nil, fmt.Errorf("estimator required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("intent gateway required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	locations := cfg.LocationList()
	if len(locations) == 0 {
		return nil, fmt.Errorf("at least one booking location required")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "usd"
	}
	return &service{
		repo:      repo,
		tx:        tx,
		quotes:    quotes,
		intents:   gateway,
		outbox:    emitter,
		locations: locations,
		currency:  strings.ToLower(currency),
		now:       time.Now,
	}, nil
}

func (s *service) Estimate(ctx context.Context, packageID string, guests int, addOns []string) (pricing.Quote, error) {
	return s.quotes.Quote(ctx, packageID, guests, addOns)
}

func (s *service) Create(ctx context.Context, in CreateInput) (*models.Booking, error) {
	location, day, start, err := s.validateCreate(&in)
	if err != nil {
		return nil, err
	}
	quote, err := s.quotes.Quote(ctx, in.PackageID, in.Guests, in.AddOns)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	booking := &models.Booking{
		Reference:     newReference(now),
		UserID:        in.UserID,
		PackageID:     quote.PackageID,
		Location:      location,
		EventDate:     day,
		StartTime:     start,
		Guests:        in.Guests,
		Notes:         optional(in.Notes),
		AddOns:        quote.AddOns,
		ContactName:   in.ContactName,
		ContactEmail:  in.ContactEmail,
		ContactPhone:  optional(in.ContactPhone),
		TotalCents:    quote.TotalCents,
		DepositCents:  quote.DepositCents,
		BalanceCents:  quote.BalanceCents,
		Status:        enums.BookingStatusPending,
		PaymentStatus: enums.BookingPaymentAwaitingDeposit,
	}

	err = s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListActiveOn(ctx, location, day)
		if err != nil {
			return err
		}
		if !slotFree(existing, start, uuid.Nil) {
			return pkgerrors.New(pkgerrors.CodeConflict, SlotTakenMessage).WithDetails(map[string]any{
				"location":  location,
				"eventDate": day.Format(dateLayout),
				"startTime": start,
			})
		}
		if err := repo.Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create booking")
		}
		return s.emit(ctx, tx, enums.EventBookingCreated, booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Booking, error) {
	return s.load(ctx, s.repo, id, owner)
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Booking, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return rows, nil
}

// Update edits notes and guest count. A guest change re-prices the booking;
// a paid deposit is kept and only the balance moves.
func (s *service) Update(ctx context.Context, id uuid.UUID, patch types.BookingPatch) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		booking, err = s.load(ctx, repo, id, nil)
		if err != nil {
			return err
		}
		if booking.Status == enums.BookingStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is cancelled")
		}

		fields := map[string]any{}
		if patch.Notes != nil {
			booking.Notes = optional(*patch.Notes)
			fields["notes"] = booking.Notes
		}
		if patch.Guests != nil && *patch.Guests != booking.Guests {
			quote, err := s.quotes.Quote(ctx, booking.PackageID, *patch.Guests, booking.AddOns)
			if err != nil {
				return err
			}
			booking.Guests = *patch.Guests
			booking.TotalCents = quote.TotalCents
			if booking.PaymentStatus == enums.BookingPaymentAwaitingDeposit {
				booking.DepositCents = quote.DepositCents
			}
			booking.BalanceCents = balance(booking.TotalCents, booking.DepositCents)
			fields["guests"] = booking.Guests
			fields["total_cents"] = booking.TotalCents
			fields["deposit_cents"] = booking.DepositCents
			fields["balance_cents"] = booking.BalanceCents
		}
		if len(fields) == 0 {
			return nil
		}
		if _, err := repo.Update(ctx, id, nil, fields); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventBookingUpdated, booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus) (*models.Booking, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking status").WithDetails(map[string]any{"status": status})
	}
	if status == enums.BookingStatusCancelled {
		return s.Cancel(ctx, id, nil)
	}
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		booking, err = s.load(ctx, repo, id, nil)
		if err != nil {
			return err
		}
		if booking.Status == enums.BookingStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Booking is cancelled")
		}
		if booking.Status == status {
			return nil
		}
		booking.Status = status
		if _, err := repo.Update(ctx, id, nil, map[string]any{"status": status}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventBookingStatusUpdated, booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID, owner *uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		booking, err = s.load(ctx, repo, id, owner)
		if err != nil {
			return err
		}
		if booking.Status == enums.BookingStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Booking already cancelled")
		}
		now := s.now().UTC()
		booking.Status = enums.BookingStatusCancelled
		booking.CancelledAt = &now
		if _, err := repo.Update(ctx, id, nil, map[string]any{"status": booking.Status, "cancelled_at": now}); err != nil {
			return err
		}
		return s.emit(ctx, tx, enums.EventBookingCancelled, booking)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID, owner *uuid.UUID) (*models.Booking, error) {
	booking, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Booking not found")
		}
		return nil, err
	}
	if owner != nil && (booking.UserID == nil || *booking.UserID != *owner) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Booking not found")
	}
	return booking, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, booking *models.Booking) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Data:          toEvent(booking),
	})
}

func (s *service) validateCreate(in *CreateInput) (string, time.Time, string, error) {
	in.PackageID = strings.TrimSpace(in.PackageID)
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)

	details := map[string]string{}
	if in.PackageID == "" {
		details["partyPackageId"] = "is required"
	}
	if in.Guests < 1 {
		details["guests"] = "must be at least 1"
	}
	if in.ContactName == "" {
		details["contactName"] = "is required"
	}
	if err := validate.Var(in.ContactEmail, "required,email"); err != nil {
		details["contactEmail"] = "must be a valid email"
	}
	location, ok := s.matchLocation(in.Location)
	if !ok {
		details["location"] = "Location is not supported"
	}
	day, err := time.Parse(dateLayout, strings.TrimSpace(in.EventDate))
	if err != nil {
		details["eventDate"] = "Invalid event date"
	} else if today := s.now().UTC().Truncate(24 * time.Hour); day.Before(today) {
		details["eventDate"] = "must not be in the past"
	}
	start, err := time.Parse(timeLayout, strings.TrimSpace(in.StartTime))
	if err != nil {
		details["startTime"] = "Invalid start time"
	}
	if len(details) > 0 {
		return "", time.Time{}, "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return location, day.UTC(), start.Format(timeLayout), nil
}

func (s *service) matchLocation(raw string) (string, bool) {
	for _, loc := range s.locations {
		if strings.EqualFold(loc, strings.TrimSpace(raw)) {
			return loc, true
		}
	}
	return "", false
}

// slotFree reports whether start on the day clears every other booking,
// including the cleaning buffer around each party.
func slotFree(existing []models.Booking, start string, ignore uuid.UUID) bool {
	begin, err := time.Parse(timeLayout, start)
	if err != nil {
		return false
	}
	end := begin.Add(partyLength)
	for _, other := range existing {
		if other.ID == ignore {
			continue
		}
		otherBegin, err := time.Parse(timeLayout, other.StartTime)
		if err != nil {
			continue
		}
		otherEnd := otherBegin.Add(partyLength)
		if begin.Before(otherEnd.Add(cleaningBuffer)) && otherBegin.Before(end.Add(cleaningBuffer)) {
			return false
		}
	}
	return true
}

func newReference(now time.Time) string {
	return "BK-" + now.Format("200601021504") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func balance(total, deposit int64) int64 {
	if total-deposit < 0 {
		return 0
	}
	return total - deposit
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

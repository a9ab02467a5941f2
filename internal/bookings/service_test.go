package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/internal/dbtest"
	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

type fixture struct {
	svc    *service
	client *db.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	cfg := config.BookingsConfig{DepositPercent: 50, CleaningFeeCents: 5000, Locations: "Albany"}
	estimator, err := pricing.NewEstimator(pricing.NewCatalog(client.DB()), cfg)
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), logger.Nop())
	svc, err := NewService(NewRepository(client.DB()), client, estimator, intents.NewGateway(nil, true), emitter, cfg, "USD")
	require.NoError(t, err)
	s := svc.(*service)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC) }
	return &fixture{svc: s, client: client}
}

func (f *fixture) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func party(start string) CreateInput {
	return CreateInput{
		PackageID:    "classic",
		Location:     "albany",
		EventDate:    "2026-07-04",
		StartTime:    start,
		Guests:       10,
		ContactName:  "Rita Lane",
		ContactEmail: "rita@example.com",
	}
}

func TestCreatePricesBookingAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, party("14:00"))
	require.NoError(t, err)
	require.Equal(t, "Albany", booking.Location)
	require.Regexp(t, `^BK-202606010930-[0-9A-F]{8}$`, booking.Reference)
	require.Equal(t, int64(39900), booking.TotalCents)
	require.Equal(t, int64(19950), booking.DepositCents)
	require.Equal(t, int64(19950), booking.BalanceCents)
	require.Equal(t, enums.BookingStatusPending, booking.Status)
	require.Equal(t, enums.BookingPaymentAwaitingDeposit, booking.PaymentStatus)
	require.Equal(t, int64(1), f.events(t, enums.EventBookingCreated))
}

func TestCreateRejectsOverlappingSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, party("14:00"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, party("16:15"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, SlotTakenMessage, pkgerrors.As(err).Message())

	_, err = f.svc.Create(ctx, party("16:30"))
	require.NoError(t, err)

	other := party("14:00")
	other.EventDate = "2026-07-05"
	_, err = f.svc.Create(ctx, other)
	require.NoError(t, err)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)
	in := party("2pm")
	in.Location = "Boston"
	in.EventDate = "2026-05-01"
	in.ContactEmail = "nope"

	_, err := f.svc.Create(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	require.Equal(t, "Location is not supported", details["location"])
	require.Equal(t, "Invalid start time", details["startTime"])
	require.Contains(t, details, "eventDate")
	require.Contains(t, details, "contactEmail")
}

func TestUpdateRepricesAndEmits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking, err := f.svc.Create(ctx, party("10:00"))
	require.NoError(t, err)

	guests := 12
	notes := "Dinosaur theme"
	updated, err := f.svc.Update(ctx, booking.ID, types.BookingPatch{Guests: &guests, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, int64(47900), updated.TotalCents)
	require.Equal(t, int64(23950), updated.DepositCents)
	require.Equal(t, int64(23950), updated.BalanceCents)

	stored, err := f.svc.Get(ctx, booking.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 12, stored.Guests)
	require.Equal(t, "Dinosaur theme", *stored.Notes)
	require.Equal(t, int64(1), f.events(t, enums.EventBookingUpdated))

	zero := 0
	_, err = f.svc.Update(ctx, booking.ID, types.BookingPatch{Guests: &zero})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking, err := f.svc.Create(ctx, party("10:00"))
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, booking.ID, enums.BookingStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusConfirmed, updated.Status)
	require.Equal(t, int64(1), f.events(t, enums.EventBookingStatusUpdated))

	_, err = f.svc.UpdateStatus(ctx, booking.ID, enums.BookingStatus("partying"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cancelled, err := f.svc.Cancel(ctx, booking.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.Cancel(ctx, booking.ID, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, "Booking already cancelled", pkgerrors.As(err).Message())
	require.Equal(t, int64(1), f.events(t, enums.EventBookingCancelled))

	// a cancelled slot is free again
	_, err = f.svc.Create(ctx, party("10:00"))
	require.NoError(t, err)
}

func TestOwnerScopedAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	in := party("10:00")
	in.UserID = &owner
	booking, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, booking.ID, &owner)
	require.NoError(t, err)

	stranger := uuid.New()
	_, err = f.svc.Get(ctx, booking.ID, &stranger)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	rows, err := f.svc.List(ctx, ListFilter{UserID: &owner})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestListFromDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, party("10:00"))
	require.NoError(t, err)
	later := party("10:00")
	later.EventDate = "2026-08-01"
	_, err = f.svc.Create(ctx, later)
	require.NoError(t, err)

	from := time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)
	rows, err := f.svc.List(ctx, ListFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2026-08-01", rows[0].EventDate.Format("2006-01-02"))
}

func TestDepositFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	booking, err := f.svc.Create(ctx, party("10:00"))
	require.NoError(t, err)

	intent, err := f.svc.CreateDepositIntent(ctx, booking.ID, nil)
	require.NoError(t, err)
	require.True(t, intent.Mock)
	require.Equal(t, 199.5, intent.Amount)
	require.Equal(t, booking.Reference, intent.Reference)

	confirmed, err := f.svc.ConfirmDeposit(ctx, booking.ID, nil, intent.PaymentIntentID)
	require.NoError(t, err)
	require.Equal(t, "deposit_paid", confirmed.Status)
	require.Equal(t, 199.5, confirmed.BalanceRemaining)
	require.NotNil(t, confirmed.DepositPaidAt)

	stored, err := f.svc.Get(ctx, booking.ID, nil)
	require.NoError(t, err)
	require.Equal(t, enums.BookingPaymentDepositPaid, stored.PaymentStatus)
	require.Equal(t, enums.BookingStatusConfirmed, stored.Status)
	require.Equal(t, intent.PaymentIntentID, *stored.DepositRef)

	again, err := f.svc.ConfirmDeposit(ctx, booking.ID, nil, intent.PaymentIntentID)
	require.NoError(t, err)
	require.Equal(t, "deposit_paid", again.Status)
	require.Equal(t, int64(1), f.events(t, enums.EventBookingUpdated))

	_, err = f.svc.ConfirmDeposit(ctx, booking.ID, nil, "mock_pi_other")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.CreateDepositIntent(ctx, booking.ID, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	guests := 12
	updated, err := f.svc.Update(ctx, booking.ID, types.BookingPatch{Guests: &guests})
	require.NoError(t, err)
	require.Equal(t, int64(19950), updated.DepositCents)
	require.Equal(t, int64(47900-19950), updated.BalanceCents)
}

func TestSlotFreeBuffer(t *testing.T) {
	existing := []models.Booking{{ID: uuid.New(), StartTime: "12:00"}}
	require.False(t, slotFree(existing, "09:45", uuid.Nil))
	require.True(t, slotFree(existing, "09:30", uuid.Nil))
	require.False(t, slotFree(existing, "14:29", uuid.Nil))
	require.True(t, slotFree(existing, "14:30", uuid.Nil))
	require.True(t, slotFree(existing, "12:00", existing[0].ID))
}

// Package dashboard computes the back-office headline counters.
package dashboard

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

type Service interface {
	Summary(ctx context.Context) (types.AdminSummary, error)
}

type service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &service{db: db, now: time.Now}, nil
}

// Summary counts upcoming bookings from today on, open deposits, ticket
// codes sold and redeemed, unexpired memberships and waivers, and the sum of
// deposits already paid.
func (s *service) Summary(ctx context.Context) (types.AdminSummary, error) {
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)

	var upcoming, pending, sold, redeemed, members, waivers, collected int64
	counts := []struct {
		dst   *int64
		model any
		query string
		args  []any
	}{
		{&upcoming, &models.Booking{}, "event_date >= ? AND status <> ?", []any{today, enums.BookingStatusCancelled}},
		{&pending, &models.Booking{}, "payment_status = ? AND status <> ?", []any{enums.BookingPaymentAwaitingDeposit, enums.BookingStatusCancelled}},
		{&sold, &models.TicketCode{}, "", nil},
		{&redeemed, &models.TicketCode{}, "status = ?", []any{enums.TicketCodeRedeemed}},
		{&members, &models.Membership{}, "status = ? AND expires_at > ?", []any{enums.MembershipStatusActive, now}},
		{&waivers, &models.Waiver{}, "expires_at > ?", []any{now}},
	}
	db := s.db.WithContext(ctx)
	for _, c := range counts {
		query := db.Model(c.model)
		if c.query != "" {
			query = query.Where(c.query, c.args...)
		}
		if err := query.Count(c.dst).Error; err != nil {
			return types.AdminSummary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dashboard summary")
		}
	}
	err := db.Model(&models.Booking{}).
		Where("payment_status <> ?", enums.BookingPaymentAwaitingDeposit).
		Select("COALESCE(SUM(deposit_cents), 0)").
		Scan(&collected).Error
	if err != nil {
		return types.AdminSummary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum collected deposits")
	}

	return types.AdminSummary{
		UpcomingBookings:  int(upcoming),
		PendingDeposits:   int(pending),
		TicketsSold:       int(sold),
		TicketsRedeemed:   int(redeemed),
		ActiveMemberships: int(members),
		WaiversOnFile:     int(waivers),
		DepositsCollected: pricing.FromCents(collected),
	}, nil
}

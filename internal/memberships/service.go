package memberships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
)

// VisitLimitMessage is returned once a plan's monthly visits are used up.
const VisitLimitMessage = "Visit limit reached for this membership period"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	// Activate starts a membership term inside tx.
	Activate(ctx context.Context, tx *gorm.DB, in ActivateInput) (*models.Membership, error)
	RecordVisit(ctx context.Context, id uuid.UUID) (*VisitResult, error)
	// ActiveDiscount is the member discount percent applied to ticket lines.
	ActiveDiscount(ctx context.Context, userID uuid.UUID) (int, error)
	List(ctx context.Context, filter ListFilter) ([]models.Membership, error)
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("membership repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, now: time.Now}, nil
}

func (s *service) Activate(ctx context.Context, tx *gorm.DB, in ActivateInput) (*models.Membership, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if in.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Sign in to purchase a membership")
	}
	if strings.TrimSpace(in.Plan.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "membership plan required")
	}
	months := in.DurationMonths
	if months <= 0 {
		months = 1
	}
	started := in.StartedAt.UTC()
	if in.StartedAt.IsZero() {
		started = s.now().UTC()
	}

	membership := &models.Membership{
		UserID:           in.UserID,
		PlanID:           in.Plan.ID,
		TierName:         in.Plan.Name,
		Tier:             in.Plan.Tier,
		DurationMonths:   months,
		AutoRenew:        in.AutoRenew,
		VisitsPerMonth:   in.Plan.VisitsPerMonth,
		Status:           enums.MembershipStatusActive,
		StartedAt:        started,
		ExpiresAt:        started.AddDate(0, months, 0),
		Provider:         in.Provider,
		PaymentReference: in.PaymentReference,
	}
	if err := s.repo.WithTx(tx).Create(ctx, membership); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate membership")
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventMembershipActivated,
		AggregateType: enums.AggregateMembership,
		AggregateID:   membership.ID,
		Data:          toEvent(membership),
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *service) RecordVisit(ctx context.Context, id uuid.UUID) (*VisitResult, error) {
	var result VisitResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		membership, err := repo.FindByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Membership not found")
			}
			return err
		}

		now := s.now().UTC()
		if membership.Status != enums.MembershipStatusActive || !membership.ExpiresAt.After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Membership is not active").WithDetails(map[string]any{
				"status":    membership.Status,
				"expiresAt": membership.ExpiresAt,
			})
		}
		if membership.LastVisitAt != nil && !samePeriod(*membership.LastVisitAt, now) {
			membership.VisitsUsed = 0
		}
		if limit := membership.VisitsPerMonth; limit != nil && membership.VisitsUsed >= *limit {
			return pkgerrors.New(pkgerrors.CodeValidation, VisitLimitMessage).WithDetails(map[string]any{
				"visitsPerMonth": *limit,
			})
		}
		membership.VisitsUsed++
		membership.LastVisitAt = &now
		if err := repo.SaveVisit(ctx, membership); err != nil {
			return err
		}
		result = toVisitResult(membership)

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMembershipVisitRecorded,
			AggregateType: enums.AggregateMembership,
			AggregateID:   membership.ID,
			Data:          toEvent(membership),
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) ActiveDiscount(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	pct, err := s.repo.ActiveDiscountPercent(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership discount")
	}
	return pct, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Membership, error) {
	rows, err := s.repo.List(ctx, filter.UserID, filter.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	return rows, nil
}

// samePeriod reports whether a and b fall in the same calendar month (UTC).
func samePeriod(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

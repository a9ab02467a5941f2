package waivers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// validYears is how long a signed waiver covers visits.
const validYears = 1

var validate = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubmitInput is a signed waiver. UserID is nil for guests.
type SubmitInput struct {
	UserID           *uuid.UUID
	GuardianName     string
	GuardianEmail    string
	GuardianPhone    string
	Children         []string
	AcceptedPolicies []string
	Signature        string
	MarketingOptIn   bool
	Notes            string
}

type Service interface {
	Submit(ctx context.Context, in SubmitInput) (*models.Waiver, error)
	Update(ctx context.Context, id uuid.UUID, patch types.WaiverPatch) (*models.Waiver, error)
	// HasValid reports whether the user has an unexpired waiver on file.
	HasValid(ctx context.Context, userID uuid.UUID) (bool, error)
	List(ctx context.Context, limit int) ([]models.Waiver, error)
}

type service struct {
	db     *gorm.DB
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

func NewService(db *gorm.DB, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{db: db, tx: tx, outbox: emitter, now: time.Now}, nil
}

func (s *service) Submit(ctx context.Context, in SubmitInput) (*models.Waiver, error) {
	children, err := normalizeSubmit(&in)
	if err != nil {
		return nil, err
	}
	signedAt := s.now().UTC()
	waiver := &models.Waiver{
		UserID:           in.UserID,
		GuardianName:     in.GuardianName,
		GuardianEmail:    in.GuardianEmail,
		GuardianPhone:    in.GuardianPhone,
		Children:         children,
		AcceptedPolicies: append([]string{}, in.AcceptedPolicies...),
		Signature:        in.Signature,
		MarketingOptIn:   in.MarketingOptIn,
		Notes:            optional(in.Notes),
		SignedAt:         signedAt,
		ExpiresAt:        signedAt.AddDate(validYears, 0, 0),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(waiver).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "We couldn't save the waiver right now. Please try again in a moment.")
		}
		return s.emit(ctx, tx, waiver)
	})
	if err != nil {
		return nil, err
	}
	return waiver, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, patch types.WaiverPatch) (*models.Waiver, error) {
	var waiver models.Waiver
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).First(&waiver, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Waiver not found")
			}
			return err
		}

		updates := map[string]any{}
		if patch.GuardianName != nil {
			name := strings.TrimSpace(*patch.GuardianName)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "guardian name is required")
			}
			waiver.GuardianName = name
			updates["guardian_name"] = name
		}
		if patch.GuardianEmail != nil {
			email := strings.TrimSpace(*patch.GuardianEmail)
			if err := validate.Var(email, "required,email"); err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "guardian email must be a valid email")
			}
			waiver.GuardianEmail = email
			updates["guardian_email"] = email
		}
		if patch.GuardianPhone != nil {
			phone := strings.TrimSpace(*patch.GuardianPhone)
			waiver.GuardianPhone = phone
			updates["guardian_phone"] = phone
		}
		if patch.Notes != nil {
			waiver.Notes = optional(*patch.Notes)
			updates["notes"] = waiver.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Waiver{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return s.emit(ctx, tx, &waiver)
	})
	if err != nil {
		return nil, err
	}
	return &waiver, nil
}

func (s *service) HasValid(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Waiver{}).
		Where("user_id = ? AND expires_at > ?", userID, s.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check waiver status")
	}
	return count > 0, nil
}

func (s *service) List(ctx context.Context, limit int) ([]models.Waiver, error) {
	query := s.db.WithContext(ctx).Order("signed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Waiver
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list waivers")
	}
	return rows, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, w *models.Waiver) error {
	expires := w.ExpiresAt
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWaiverUpdated,
		AggregateType: enums.AggregateWaiver,
		AggregateID:   w.ID,
		Data: payloads.WaiverUpdatedEvent{
			WaiverID:      w.ID,
			GuardianName:  w.GuardianName,
			GuardianEmail: w.GuardianEmail,
			Children:      w.Children,
			SignedAt:      w.SignedAt,
			ExpiresAt:     &expires,
		},
	})
}

func normalizeSubmit(in *SubmitInput) ([]string, error) {
	in.GuardianName = strings.TrimSpace(in.GuardianName)
	in.GuardianEmail = strings.TrimSpace(in.GuardianEmail)
	in.GuardianPhone = strings.TrimSpace(in.GuardianPhone)
	in.Signature = strings.TrimSpace(in.Signature)

	details := map[string]string{}
	if in.GuardianName == "" {
		details["guardianName"] = "is required"
	}
	if err := validate.Var(in.GuardianEmail, "required,email"); err != nil {
		details["guardianEmail"] = "must be a valid email"
	}
	if in.Signature == "" {
		details["signature"] = "is required"
	}
	if len(in.AcceptedPolicies) == 0 {
		details["acceptedPolicies"] = "must accept the waiver policies"
	}
	children := make([]string, 0, len(in.Children))
	for _, child := range in.Children {
		name := strings.TrimSpace(child)
		if name == "" {
			details["children"] = "Each child must include a first name."
			continue
		}
		children = append(children, name)
	}
	if len(in.Children) == 0 {
		details["children"] = "at least one child is required"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return children, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

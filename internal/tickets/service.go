package tickets

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
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
)

const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 8
	maxCodeAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReserveInput describes one paid ticket line.
type ReserveInput struct {
	UserID           *uuid.UUID
	GuestEmail       string
	GuestName        string
	Label            string
	Quantity         int
	UnitPriceCents   int64
	TotalCents       int64
	Discounts        []string
	PromoCode        string
	Provider         enums.PaymentProvider
	PaymentReference string
	PurchasedAt      time.Time
}

type ListFilter struct {
	UserID *uuid.UUID
	Limit  int
}

type Service interface {
	// Reserve creates the ticket and one code per admitted guest inside tx.
	Reserve(ctx context.Context, tx *gorm.DB, in ReserveInput) (*models.Ticket, error)
	Redeem(ctx context.Context, code string, staffID *uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, filter ListFilter) ([]models.Ticket, error)
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

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, in ReserveInput) (*models.Ticket, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if in.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket quantity must be at least 1")
	}
	if strings.TrimSpace(in.PaymentReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	purchasedAt := in.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = s.now().UTC()
	}

	codes, err := uniqueCodes(tx, in.Quantity)
	if err != nil {
		return nil, err
	}
	ticket := &models.Ticket{
		UserID:           in.UserID,
		GuestEmail:       optional(in.GuestEmail),
		GuestName:        optional(in.GuestName),
		Label:            in.Label,
		Quantity:         in.Quantity,
		UnitPriceCents:   in.UnitPriceCents,
		TotalCents:       in.TotalCents,
		DiscountLabels:   append([]string{}, in.Discounts...),
		PromoCode:        optional(in.PromoCode),
		Provider:         in.Provider,
		PaymentReference: in.PaymentReference,
		Status:           enums.TicketStatusReserved,
		PurchasedAt:      purchasedAt,
	}
	for _, code := range codes {
		ticket.Codes = append(ticket.Codes, models.TicketCode{Code: code, Status: enums.TicketCodeValid})
	}
	if err := tx.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve tickets")
	}

	guestEmail := ""
	if ticket.GuestEmail != nil {
		guestEmail = *ticket.GuestEmail
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTicketReserved,
		AggregateType: enums.AggregateTicket,
		AggregateID:   ticket.ID,
		Data: payloads.TicketReservedEvent{
			TicketID:    ticket.ID,
			Label:       ticket.Label,
			Quantity:    ticket.Quantity,
			Codes:       codes,
			Total:       pricing.FromCents(ticket.TotalCents),
			UserID:      ticket.UserID,
			GuestEmail:  guestEmail,
			PurchasedAt: purchasedAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *service) Redeem(ctx context.Context, code string, staffID *uuid.UUID) (*models.Ticket, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket code required")
	}

	var ticket models.Ticket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.TicketCode
		if err := tx.Where("code = ?", code).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Ticket code not found")
			}
			return err
		}
		if row.Status == enums.TicketCodeRedeemed {
			return alreadyRedeemed(row)
		}

		now := s.now().UTC()
		res := tx.Model(&models.TicketCode{}).
			Where("id = ? AND status = ?", row.ID, enums.TicketCodeValid).
			Updates(map[string]any{
				"status":      enums.TicketCodeRedeemed,
				"redeemed_at": now,
				"redeemed_by": staffID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return alreadyRedeemed(row)
		}

		var remaining int64
		if err := tx.Model(&models.TicketCode{}).
			Where("ticket_id = ? AND status = ?", row.TicketID, enums.TicketCodeValid).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.Model(&models.Ticket{}).
				Where("id = ?", row.TicketID).
				Update("status", enums.TicketStatusRedeemed).Error; err != nil {
				return err
			}
		}
		if err := tx.Preload("Codes").First(&ticket, "id = ?", row.TicketID).Error; err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTicketRedeemed,
			AggregateType: enums.AggregateTicket,
			AggregateID:   row.TicketID,
			Data: payloads.TicketRedeemedEvent{
				TicketID:   row.TicketID,
				Code:       code,
				RedeemedAt: now,
				RedeemedBy: staffID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.Ticket, error) {
	query := s.db.WithContext(ctx).Preload("Codes").Order("purchased_at DESC")
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []models.Ticket
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tickets")
	}
	return rows, nil
}

func alreadyRedeemed(row models.TicketCode) error {
	details := map[string]any{"code": row.Code}
	if row.RedeemedAt != nil {
		details["redeemedAt"] = row.RedeemedAt.UTC()
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Ticket code already redeemed").WithDetails(details)
}

// uniqueCodes draws n codes that are unused both in the batch and in the table.
func uniqueCodes(tx *gorm.DB, n int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for attempt := 0; len(codes) < n; attempt++ {
		if attempt == maxCodeAttempts {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate ticket codes")
		}
		batch := make([]string, 0, n-len(codes))
		for len(batch) < n-len(codes) {
			code := newCode()
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			batch = append(batch, code)
		}
		var taken []string
		if err := tx.Model(&models.TicketCode{}).Where("code IN ?", batch).Pluck("code", &taken).Error; err != nil {
			return nil, err
		}
		used := make(map[string]struct{}, len(taken))
		for _, code := range taken {
			used[code] = struct{}{}
		}
		for _, code := range batch {
			if _, clash := used[code]; !clash {
				codes = append(codes, code)
			}
		}
	}
	return codes, nil
}

func newCode() string {
	id := uuid.New()
	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[int(id[i])%len(codeAlphabet)]
	}
	return string(out)
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

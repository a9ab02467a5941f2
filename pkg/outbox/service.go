package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

const envelopeVersion = 1

type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	OccurredAt    time.Time
}

// Emitter is what domain services depend on to queue events inside their
// own transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

// RequestInfo extracts the caller and request id of the request being served.
type RequestInfo func(ctx context.Context) (actor *Actor, requestID string)

type Option func(*Service)

// WithRequestInfo stamps every envelope with the request that queued it.
func WithRequestInfo(fn RequestInfo) Option {
	return func(s *Service) { s.requestInfo = fn }
}

type Service struct {
	repo        *Repository
	logg        *logger.Logger
	requestInfo RequestInfo
	now         func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger, opts ...Option) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Service{repo: repo, logg: logg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.EventType.IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	if event.AggregateID == uuid.Nil {
		return fmt.Errorf("%s: aggregate id required", event.EventType)
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}

	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = s.now()
	}
	envelope.OccurredAt = envelope.OccurredAt.UTC()
	if s.requestInfo != nil {
		actor, requestID := s.requestInfo(ctx)
		envelope.RequestID = requestID
		if envelope.Actor == nil {
			envelope.Actor = actor
		}
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

// DecodeEnvelope parses the stored payload of an outbox row.
func DecodeEnvelope(row models.OutboxEvent) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope of %s: %w", row.ID, err)
	}
	return envelope, nil
}

package registry

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/channel/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Channel        string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry. Every event currently feeds the
// admin events channel.
func NewEventRegistry(cfg config.AdminEventsConfig) (*EventRegistry, error) {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		return nil, fmt.Errorf("admin events channel is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	booking := func() interface{} { return &payloads.BookingEvent{} }
	membership := func() interface{} { return &payloads.MembershipEvent{} }

	for _, desc := range []EventDescriptor{
		{EventType: enums.EventBookingCreated, AggregateType: enums.AggregateBooking, PayloadFactory: booking},
		{EventType: enums.EventBookingUpdated, AggregateType: enums.AggregateBooking, PayloadFactory: booking},
		{EventType: enums.EventBookingCancelled, AggregateType: enums.AggregateBooking, PayloadFactory: booking},
		{EventType: enums.EventBookingStatusUpdated, AggregateType: enums.AggregateBooking, PayloadFactory: booking},
		{
			EventType:      enums.EventTicketReserved,
			AggregateType:  enums.AggregateTicket,
			PayloadFactory: func() interface{} { return &payloads.TicketReservedEvent{} },
		},
		{
			EventType:      enums.EventTicketRedeemed,
			AggregateType:  enums.AggregateTicket,
			PayloadFactory: func() interface{} { return &payloads.TicketRedeemedEvent{} },
		},
		{
			EventType:      enums.EventWaiverUpdated,
			AggregateType:  enums.AggregateWaiver,
			PayloadFactory: func() interface{} { return &payloads.WaiverUpdatedEvent{} },
		},
		{EventType: enums.EventMembershipVisitRecorded, AggregateType: enums.AggregateMembership, PayloadFactory: membership},
		{EventType: enums.EventMembershipActivated, AggregateType: enums.AggregateMembership, PayloadFactory: membership},
		{
			EventType:      enums.EventCheckoutCompleted,
			AggregateType:  enums.AggregateCheckout,
			PayloadFactory: func() interface{} { return &payloads.CheckoutCompletedEvent{} },
		},
	} {
		desc.Channel = channel
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

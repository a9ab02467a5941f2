package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateBooking    OutboxAggregateType = "booking"
	AggregateTicket     OutboxAggregateType = "ticket"
	AggregateWaiver     OutboxAggregateType = "waiver"
	AggregateMembership OutboxAggregateType = "membership"
	AggregateCheckout   OutboxAggregateType = "checkout"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregateTicket,
	AggregateWaiver,
	AggregateMembership,
	AggregateCheckout,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the wire type of an operational event. The same string
// is what dashboards receive on the admin event stream.
type OutboxEventType string

const (
	EventBookingCreated          OutboxEventType = "booking.created"
	EventBookingUpdated          OutboxEventType = "booking.updated"
	EventBookingCancelled        OutboxEventType = "booking.cancelled"
	EventBookingStatusUpdated    OutboxEventType = "booking.statusUpdated"
	EventTicketReserved          OutboxEventType = "ticket.reserved"
	EventTicketRedeemed          OutboxEventType = "ticket.redeemed"
	EventWaiverUpdated           OutboxEventType = "waiver.updated"
	EventMembershipVisitRecorded OutboxEventType = "membership.visitRecorded"
	EventMembershipActivated     OutboxEventType = "membership.activated"
	EventCheckoutCompleted       OutboxEventType = "checkout.completed"
)

var validEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingCancelled,
	EventBookingStatusUpdated,
	EventTicketReserved,
	EventTicketRedeemed,
	EventWaiverUpdated,
	EventMembershipVisitRecorded,
	EventMembershipActivated,
	EventCheckoutCompleted,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an outbox row stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}

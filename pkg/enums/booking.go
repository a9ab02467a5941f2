package enums

import "fmt"

// BookingStatus tracks the operational state of a party booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value matches a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}

// BookingPaymentStatus tracks how much of a booking has been paid.
type BookingPaymentStatus string

const (
	BookingPaymentAwaitingDeposit BookingPaymentStatus = "awaiting_deposit"
	BookingPaymentDepositPaid     BookingPaymentStatus = "deposit_paid"
	BookingPaymentPaidInFull      BookingPaymentStatus = "paid_in_full"
)

// IsValid reports whether the value matches a known BookingPaymentStatus.
func (b BookingPaymentStatus) IsValid() bool {
	switch b {
	case BookingPaymentAwaitingDeposit, BookingPaymentDepositPaid, BookingPaymentPaidInFull:
		return true
	}
	return false
}

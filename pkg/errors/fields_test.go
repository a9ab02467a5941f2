package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stripe/stripe-go/v84"
)

func TestLogFieldsFlattensChain(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "bookings_slot_key", TableName: "bookings"}
	err := fmt.Errorf("create booking: %w", Wrap(CodeConflict, pgErr, "slot taken"))

	fields := LogFields(err)
	if fields["error_code"] != string(CodeConflict) {
		t.Fatalf("expected conflict code, got %v", fields["error_code"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "bookings_slot_key" || fields["pg_table"] != "bookings" {
		t.Fatalf("missing pg fields: %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty values should be omitted")
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", fields["error_chain"])
	}
}

func TestLogFieldsStripeError(t *testing.T) {
	err := Wrap(CodePayment, &stripe.Error{
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		DeclineCode:    stripe.DeclineCodeInsufficientFunds,
		RequestID:      "req_123",
		HTTPStatusCode: 402,
	}, "card declined")

	fields := LogFields(err)
	if fields["stripe_code"] != "card_declined" || fields["stripe_decline_code"] != "insufficient_funds" {
		t.Fatalf("missing stripe fields: %v", fields)
	}
	if fields["provider_status"] != 402 || fields["stripe_request_id"] != "req_123" {
		t.Fatalf("missing provider status: %v", fields)
	}
}

func TestLogFieldsNil(t *testing.T) {
	if LogFields(nil) != nil {
		t.Fatalf("nil error should produce no fields")
	}
}

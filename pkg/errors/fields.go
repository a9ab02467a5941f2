package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	sqcore "github.com/square/square-go-sdk/core"
	"github.com/stripe/stripe-go/v84"
)

// LogFields flattens err into structured log fields: the typed code, the
// wrap chain, and whatever the database or payment provider attached to the
// root cause. Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	var stripeErr *stripe.Error
	var squareErr *sqcore.APIError
	switch {
	case stdErrors.As(err, &pgErr):
		put(fields, "pg_code", pgErr.Code)
		put(fields, "pg_constraint", pgErr.ConstraintName)
		put(fields, "pg_table", pgErr.TableName)
		put(fields, "pg_detail", pgErr.Detail)
	case stdErrors.As(err, &pqErr):
		put(fields, "pg_code", string(pqErr.Code))
		put(fields, "pg_constraint", pqErr.Constraint)
		put(fields, "pg_table", pqErr.Table)
		put(fields, "pg_detail", pqErr.Detail)
	case stdErrors.As(err, &stripeErr):
		put(fields, "stripe_type", string(stripeErr.Type))
		put(fields, "stripe_code", string(stripeErr.Code))
		put(fields, "stripe_decline_code", string(stripeErr.DeclineCode))
		put(fields, "stripe_request_id", stripeErr.RequestID)
		if stripeErr.HTTPStatusCode != 0 {
			fields["provider_status"] = stripeErr.HTTPStatusCode
		}
	case stdErrors.As(err, &squareErr):
		fields["provider_status"] = squareErr.StatusCode
	}
	return fields
}

func put(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

package httpclient

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/playfunia-backend/pkg/logger"
)

// newBreaker trips after half of at least five reads in a minute fail with a
// server-side error. Client errors (4xx) do not count against it.
func newBreaker(name string, logg *logger.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		IsSuccessful: func(err error) bool {
			return !IsServerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state change")
		},
	})
}

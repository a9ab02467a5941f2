package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeReplay  = "replay"
)

// CheckoutMetrics counts intent creation and finalize calls per provider.
type CheckoutMetrics struct {
	intents  *prometheus.CounterVec
	finalize *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_intents_total",
		Help: "Checkout intents created, by provider and outcome.",
	}, []string{"provider", "outcome"})
	finalize := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_finalize_total",
		Help: "Checkout finalize calls, by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(intents, finalize)
	return &CheckoutMetrics{intents: intents, finalize: finalize}
}

func (c *CheckoutMetrics) IncIntent(provider, outcome string) {
	if c == nil || c.intents == nil {
		return
	}
	c.intents.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (c *CheckoutMetrics) IncFinalize(provider, outcome string) {
	if c == nil || c.finalize == nil {
		return
	}
	c.finalize.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// OutcomeOf maps an error to the success/error label.
func OutcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

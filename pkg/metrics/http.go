package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics tracks API request latency and the admin SSE audience.
type HTTPMetrics struct {
	requests    *prometheus.HistogramVec
	subscribers prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method, route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admin_event_subscribers",
		Help: "Connected admin event stream subscribers.",
	})
	reg.MustRegister(requests, subscribers)
	return &HTTPMetrics{requests: requests, subscribers: subscribers}
}

func (h *HTTPMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if h == nil || h.requests == nil {
		return
	}
	h.requests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// SubscriberConnected and SubscriberDisconnected move the SSE gauge.
func (h *HTTPMetrics) SubscriberConnected() {
	if h == nil || h.subscribers == nil {
		return
	}
	h.subscribers.Inc()
}

func (h *HTTPMetrics) SubscriberDisconnected() {
	if h == nil || h.subscribers == nil {
		return
	}
	h.subscribers.Dec()
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

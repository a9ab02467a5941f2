package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRelayMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRelayMetrics(reg)
	metrics.ObserveBatch(250 * time.Millisecond)
	metrics.IncRow(OutcomePublished)
	metrics.IncRow(OutcomePublished)
	metrics.IncRow(OutcomeTerminal)
	metrics.SetBacklog(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "outbox_relay_published_total", "outcome", OutcomePublished); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 2 {
		t.Fatalf("expected published=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "outbox_relay_published_total", "outcome", OutcomeTerminal); err != nil {
		t.Fatalf("fetch terminal: %v", err)
	} else if got != 1 {
		t.Fatalf("expected terminal=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "outbox_relay_batch_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatalf("expected batch duration sample")
	}
	if mf := findMetricFamily(mfs, "outbox_relay_backlog"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatalf("expected backlog gauge of 7")
	}
}

func TestCheckoutMetricsLabelsProviderAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.IncIntent("stripe", OutcomeOf(nil))
	metrics.IncFinalize("square", OutcomeOf(errors.New("declined")))
	metrics.IncFinalize("", OutcomeReplay)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_intents_total", "provider", "stripe"); err != nil || got != 1 {
		t.Fatalf("expected one stripe intent, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_finalize_total", "outcome", OutcomeError); err != nil || got != 1 {
		t.Fatalf("expected one finalize error, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_finalize_total", "provider", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank provider to normalize, got %f (%v)", got, err)
	}
}

func TestHTTPMetricsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.ObserveRequest(http.MethodPost, "/api/checkout/intent", http.StatusCreated, 40*time.Millisecond)
	metrics.SubscriberConnected()
	metrics.SubscriberConnected()
	metrics.SubscriberDisconnected()

	if got, err := fetchHistogramSum(mustGather(t, reg), "http_request_duration_seconds", "status", "201"); err != nil || got <= 0 {
		t.Fatalf("expected request sample, got %f (%v)", got, err)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "admin_event_subscribers 1") {
		t.Fatalf("gauge missing from exposition:\n%s", rec.Body.String())
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var relay *RelayMetrics
	relay.IncRow(OutcomeFailed)
	relay.SetBacklog(3)
	NewCheckoutMetrics(nil).IncIntent("stripe", OutcomeSuccess)
	NewHTTPMetrics(nil).SubscriberConnected()
}

func mustGather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	return mfs
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

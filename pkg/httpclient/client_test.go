package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

func newTestClient(t *testing.T, srv *httptest.Server, breaker string) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, Tokens: StaticToken("tok_1"), Timeout: time.Second, BreakerName: breaker}, nil)
	require.NoError(t, err)
	return c
}

func TestPostJSONSendsHeadersAndDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkout/intent", r.URL.Path)
		assert.Equal(t, "Bearer tok_1", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "PLAYFUN10", body["promoCode"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"paymentIntentId":"pi_1"}}`))
	}))
	defer srv.Close()

	var out struct {
		PaymentIntentID string `json:"paymentIntentId"`
	}
	err := newTestClient(t, srv, "").PostJSON(context.Background(), "/api/checkout/intent",
		map[string]string{"promoCode": "PLAYFUN10"}, &out, WithIdempotencyKey("key-1"))
	require.NoError(t, err)
	require.Equal(t, "pi_1", out.PaymentIntentID)
}

func TestServerErrorSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"PAYMENT_FAILED","message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	err := newTestClient(t, srv, "").PostJSON(context.Background(), "x", map[string]string{}, nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodePayment, typed.Code())
	require.Equal(t, "Your card was declined.", typed.Message())
}

func TestUnstructuredErrorFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestClient(t, srv, "").GetJSON(context.Background(), "/api/admin/summary", &struct{}{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.True(t, IsServerFailure(err))
}

func TestBreakerOpensOnRepeatedServerFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "dashboard")
	for i := 0; i < 5; i++ {
		_ = c.GetJSON(context.Background(), "/api/admin/bookings", &[]any{})
	}
	err := c.GetJSON(context.Background(), "/api/admin/bookings", &[]any{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, int32(5), calls.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"FORBIDDEN","message":"access denied"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "dashboard")
	for i := 0; i < 7; i++ {
		err := c.GetJSON(context.Background(), "/api/admin/bookings", &[]any{})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	}
	require.Equal(t, int32(7), calls.Load())
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "localhost"}, nil)
	require.Error(t, err)
	c, err := New(Config{BaseURL: "http://localhost:8080/"}, nil)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api/admin/events", c.URL("/api/admin/events"))
	require.Empty(t, c.Token())
}

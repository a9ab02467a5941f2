package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

func TestRateLimit_AllowsUnderLimitAndKeepsBody(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 2, 2)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"guest@example.com"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/intent", strings.NewReader(`{"items":[],"guest":{"email":"guest@example.com"}}`))
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRateLimit_GuestEmailLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("checkout", time.Minute, 0, 2)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/intent", strings.NewReader(`{"guest":{"email":"Blocked@Example.com "}}`))
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		switch {
		case i < 2 && rec.Code != http.StatusOK:
			t.Fatalf("expected success before limit, got %d", rec.Code)
		case i >= 2:
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}
}

func TestRateLimit_IPLimitTriggers(t *testing.T) {
	store := newFakeRateStore()
	policy := NewRateLimitPolicy("waivers", time.Minute, 1, 0)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/waivers", strings.NewReader(`{"guardianEmail":"foo@example.com"}`))
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
}

func TestRateLimit_CountsInNamespacedRedisWindow(t *testing.T) {
	store, srv := newReplayStore(t)
	policy := NewRateLimitPolicy("Waivers", time.Minute, 1, 1)
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/waivers", strings.NewReader(`{"guardianEmail":"Foo@Example.com"}`))
	req.RemoteAddr = "5.6.7.8:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected success, got %d", rec.Code)
	}

	ipKey := store.RateLimitKey("ip:waivers:5.6.7.8")
	if got, err := srv.Get(ipKey); err != nil || got != "1" {
		t.Fatalf("expected ip counter at %s, got %q %v", ipKey, got, err)
	}
	if ttl := srv.TTL(ipKey); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl, got %s", ttl)
	}
	emailKey := store.RateLimitKey("email:waivers:" + hashValue("foo@example.com"))
	if !srv.Exists(emailKey) {
		t.Fatalf("expected email counter at %s", emailKey)
	}

	again := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/waivers", strings.NewReader(`{"guardianEmail":"foo@example.com"}`))
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := again(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside the window, got %d", code)
	}
	srv.FastForward(time.Minute + time.Second)
	if code := again(); code != http.StatusOK {
		t.Fatalf("expected a fresh window after expiry, got %d", code)
	}
}

func TestExtractEmail(t *testing.T) {
	tests := map[string]string{
		`{"guest":{"email":"a@x.test"}}`:  "a@x.test",
		`{"guardianEmail":"b@x.test"}`:    "b@x.test",
		`{"email":"c@x.test"}`:            "c@x.test",
		`{"items":[{"itemId":"t1"}]}`:     "",
		`not json`:                        "",
	}
	for body, want := range tests {
		if got := extractEmail([]byte(body)); got != want {
			t.Fatalf("%s: expected %q got %q", body, want, got)
		}
	}
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

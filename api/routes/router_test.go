package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/playfunia-backend/internal/adminevents"
	"github.com/angelmondragon/playfunia-backend/internal/bookings"
	checkoutsvc "github.com/angelmondragon/playfunia-backend/internal/checkout"
	"github.com/angelmondragon/playfunia-backend/internal/dashboard"
	"github.com/angelmondragon/playfunia-backend/internal/dbtest"
	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/memberships"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/internal/tickets"
	"github.com/angelmondragon/playfunia-backend/internal/waivers"
	"github.com/angelmondragon/playfunia-backend/pkg/auth"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	pkgredis "github.com/angelmondragon/playfunia-backend/pkg/redis"
)

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Env: "test", Port: "0"},
		JWT:         config.JWTConfig{Secret: "router-secret", Issuer: "playfunia-test", ExpirationMinutes: 10},
		Payments:    config.PaymentsConfig{Currency: "usd", PromoCodes: "PLAYFUN10:0.10"},
		Bookings:    config.BookingsConfig{DepositPercent: 50, CleaningFeeCents: 5000, Locations: "Albany"},
		AdminEvents: config.AdminEventsConfig{Heartbeat: time.Second},
		RateLimit:   config.RateLimitConfig{Window: time.Minute, IPLimit: 100, EmailLimit: 100},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	client := dbtest.Client(t)
	conn := client.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())

	mr := miniredis.RunT(t)
	redisClient := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	calc, err := pricing.NewCalculator(cfg.Payments)
	require.NoError(t, err)
	catalog := pricing.NewCatalog(conn)
	estimator, err := pricing.NewEstimator(catalog, cfg.Bookings)
	require.NoError(t, err)
	gateway := intents.NewGateway(nil, true)

	ticketSvc, err := tickets.NewService(conn, client, emitter)
	require.NoError(t, err)
	memberSvc, err := memberships.NewService(memberships.NewRepository(conn), client, emitter)
	require.NoError(t, err)
	waiverSvc, err := waivers.NewService(conn, client, emitter)
	require.NoError(t, err)
	bookingSvc, err := bookings.NewService(bookings.NewRepository(conn), client, estimator, gateway, emitter, cfg.Bookings, "USD")
	require.NoError(t, err)
	dash, err := dashboard.NewService(conn)
	require.NoError(t, err)
	checkout, err := checkoutsvc.NewService(checkoutsvc.Deps{
		Tx:          client,
		Records:     checkoutsvc.NewRepository(conn),
		Pricer:      calc,
		Plans:       catalog,
		Discounts:   memberSvc,
		Waivers:     waiverSvc,
		Intents:     gateway,
		Tickets:     ticketSvc,
		Memberships: memberSvc,
		Outbox:      emitter,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	router := NewRouter(cfg, logger.Nop(), Dependencies{
		DB:          client,
		Redis:       redisClient,
		Checkout:    checkout,
		Bookings:    bookingSvc,
		Waivers:     waiverSvc,
		Tickets:     ticketSvc,
		Memberships: memberSvc,
		Dashboard:   dash,
		Events:      adminevents.NewHub(10),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})
	return router, cfg
}

func token(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	tok, err := auth.IssueToken(cfg.JWT, time.Now(), auth.Identity{
		UserID: uuid.New(),
		Email:  "member@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return tok
}

func serve(router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	live := serve(router, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, live.Code)
	require.Equal(t, "test", live.Header().Get("X-Playfunia-Env"))

	ready := serve(router, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
}

func TestBookingsRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := serve(router, http.MethodGet, "/api/bookings", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRequiresOperatorRole(t *testing.T) {
	router, cfg := newTestRouter(t)

	customer := serve(router, http.MethodGet, "/api/admin/summary", token(t, cfg, enums.RoleCustomer), nil)
	require.Equal(t, http.StatusForbidden, customer.Code)

	staff := serve(router, http.MethodGet, "/api/admin/summary", token(t, cfg, enums.RoleStaff), nil)
	require.Equal(t, http.StatusOK, staff.Code, staff.Body.String())
}

func TestGuestCheckoutIntentUsesMockProvider(t *testing.T) {
	router, _ := newTestRouter(t)
	body := map[string]any{
		"items": []map[string]any{
			{"itemId": "t-1", "type": "ticket", "label": "Open play", "quantity": 1, "unitPrice": 18, "total": 18},
		},
		"guest":              map[string]any{"firstName": "Sam", "lastName": "Guest", "email": "sam@example.com", "phone": "5185550123"},
		"waiverAcknowledged": true,
	}
	rec := serve(router, http.MethodPost, "/api/checkout/intent", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			Provider        string `json:"provider"`
			PaymentIntentID string `json:"paymentIntentId"`
			Amount          int64  `json:"amount"`
			Mock            bool   `json:"mock"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.True(t, envelope.Data.Mock)
	require.Equal(t, "mock", envelope.Data.Provider)
	require.EqualValues(t, 1800, envelope.Data.Amount)
	require.NotEmpty(t, envelope.Data.PaymentIntentID)
}

func TestMetricsEndpointExportsRequests(t *testing.T) {
	router, _ := newTestRouter(t)
	serve(router, http.MethodGet, "/health/live", "", nil)
	rec := serve(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/health/live")
}

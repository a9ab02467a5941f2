package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/playfunia-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/playfunia-backend/api/controllers/webhooks"
	"github.com/angelmondragon/playfunia-backend/api/middleware"
	"github.com/angelmondragon/playfunia-backend/internal/adminevents"
	"github.com/angelmondragon/playfunia-backend/internal/bookings"
	checkoutsvc "github.com/angelmondragon/playfunia-backend/internal/checkout"
	"github.com/angelmondragon/playfunia-backend/internal/dashboard"
	"github.com/angelmondragon/playfunia-backend/internal/memberships"
	"github.com/angelmondragon/playfunia-backend/internal/tickets"
	"github.com/angelmondragon/playfunia-backend/internal/waivers"
	stripewebhook "github.com/angelmondragon/playfunia-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/redis"
	"github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

// Dependencies are the services mounted on the router. The Stripe webhook is
// only mounted when a client with a signing secret is present.
type Dependencies struct {
	DB          db.Pinger
	Redis       *redis.Client
	Checkout    checkoutsvc.Service
	Bookings    bookings.Service
	Waivers     waivers.Service
	Tickets     tickets.Service
	Memberships memberships.Service
	Dashboard   dashboard.Service
	Events      *adminevents.Hub
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	WebhookDedupe *stripewebhook.Deduper
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, cfg.RateLimit.EmailLimit)
	waiverPolicy := middleware.NewRateLimitPolicy("waivers", cfg.RateLimit.Window, cfg.RateLimit.IPLimit, cfg.RateLimit.EmailLimit)
	intentOnce, captureOnce := passThrough, passThrough
	if deps.Redis != nil {
		intentOnce = middleware.Idempotent(deps.Redis, middleware.IntentTTL, logg)
		captureOnce = middleware.Idempotent(deps.Redis, middleware.CaptureTTL, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Ping: deps.DB.Ping},
			controllers.Dependency{Name: "redis", Ping: deps.Redis.Ping},
		))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	if deps.StripeClient != nil && deps.StripeClient.SigningSecret() != "" && deps.StripeWebhook != nil {
		r.Post("/api/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.WebhookDedupe, logg))
	}

	r.Route("/api", func(r chi.Router) {
		// guests allowed
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Use(middleware.RateLimit(checkoutPolicy, deps.Redis, logg))
				r.With(intentOnce).Post("/intent", controllers.CheckoutIntent(deps.Checkout, logg))
				r.With(captureOnce).Post("/finalize", controllers.CheckoutFinalize(deps.Checkout, logg))
				r.With(intentOnce).Post("/square/intent", controllers.SquareIntent(deps.Checkout, logg))
				r.With(captureOnce).Post("/square/finalize", controllers.SquareFinalize(deps.Checkout, logg))
			})

			r.With(
				middleware.RateLimit(waiverPolicy, deps.Redis, logg),
				intentOnce,
			).Post("/waivers", controllers.SubmitWaiver(deps.Waivers, logg))
			r.Post("/bookings/estimate", controllers.BookingEstimate(deps.Bookings, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/waivers/status", controllers.WaiverStatus(deps.Waivers, logg))

			r.Route("/bookings", func(r chi.Router) {
				r.With(intentOnce).Post("/", controllers.CreateBooking(deps.Bookings, logg))
				r.Get("/", controllers.MyBookings(deps.Bookings, logg))
				r.Get("/{id}", controllers.GetBooking(deps.Bookings, logg))
				r.With(intentOnce).Post("/{id}/deposit/intent", controllers.CreateDepositIntent(deps.Bookings, logg))
				r.With(captureOnce).Post("/{id}/deposit/confirm", controllers.ConfirmDeposit(deps.Bookings, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireOperator(logg),
			)
			r.Get("/summary", controllers.AdminSummary(deps.Dashboard, logg))
			r.Get("/bookings", controllers.AdminBookings(deps.Bookings, logg))
			r.Get("/waivers", controllers.AdminWaivers(deps.Waivers, logg))
			r.Get("/tickets", controllers.AdminTickets(deps.Tickets, logg))
			r.Get("/memberships", controllers.AdminMemberships(deps.Memberships, logg))

			r.Patch("/bookings/{id}", controllers.AdminUpdateBooking(deps.Bookings, logg))
			r.Patch("/bookings/{id}/status", controllers.AdminUpdateBookingStatus(deps.Bookings, logg))
			r.Post("/bookings/{id}/cancel", controllers.AdminCancelBooking(deps.Bookings, logg))
			r.Post("/tickets/{code}/redeem", controllers.AdminRedeemTicket(deps.Tickets, logg))
			r.Patch("/waivers/{id}", controllers.AdminUpdateWaiver(deps.Waivers, logg))
			r.With(intentOnce).
				Post("/memberships/{id}/visits", controllers.AdminRecordVisit(deps.Memberships, logg))

			r.Get("/events", controllers.AdminEvents(deps.Events, cfg.AdminEvents.Heartbeat, deps.HTTPMetrics, logg))
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }

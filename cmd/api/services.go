package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/playfunia-backend/api/middleware"
	"github.com/angelmondragon/playfunia-backend/api/routes"
	"github.com/angelmondragon/playfunia-backend/internal/adminevents"
	"github.com/angelmondragon/playfunia-backend/internal/bookings"
	checkoutsvc "github.com/angelmondragon/playfunia-backend/internal/checkout"
	"github.com/angelmondragon/playfunia-backend/internal/dashboard"
	"github.com/angelmondragon/playfunia-backend/internal/intents"
	"github.com/angelmondragon/playfunia-backend/internal/memberships"
	"github.com/angelmondragon/playfunia-backend/internal/pricing"
	"github.com/angelmondragon/playfunia-backend/internal/tickets"
	"github.com/angelmondragon/playfunia-backend/internal/waivers"
	stripewebhook "github.com/angelmondragon/playfunia-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/metrics"
	"github.com/angelmondragon/playfunia-backend/pkg/outbox"
	"github.com/angelmondragon/playfunia-backend/pkg/redis"
	"github.com/angelmondragon/playfunia-backend/pkg/square"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

const webhookReplayTTL = 72 * time.Hour

// buildDependencies wires the domain services behind the router. Stripe runs
// in mock mode when MockPayments is set or no key is configured; Square is
// skipped without an access token.
func buildDependencies(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, hub *adminevents.Hub) (routes.Dependencies, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg, outbox.WithRequestInfo(requestInfo))

	var stripeClient *pkgstripe.Client
	gateway := intents.NewGateway(nil, true)
	if !cfg.FeatureFlags.MockPayments && cfg.Stripe.APIKey != "" {
		client, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return routes.Dependencies{}, fmt.Errorf("stripe: %w", err)
		}
		stripeClient = client
		gateway = intents.NewGateway(client, false)
	} else {
		logg.Warn(ctx, "stripe disabled, card payments run in mock mode")
	}

	calc, err := pricing.NewCalculator(cfg.Payments)
	if err != nil {
		return routes.Dependencies{}, err
	}
	catalog := pricing.NewCatalog(conn)
	estimator, err := pricing.NewEstimator(catalog, cfg.Bookings)
	if err != nil {
		return routes.Dependencies{}, err
	}

	ticketSvc, err := tickets.NewService(conn, dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	memberSvc, err := memberships.NewService(memberships.NewRepository(conn), dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	waiverSvc, err := waivers.NewService(conn, dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	bookingSvc, err := bookings.NewService(bookings.NewRepository(conn), dbClient, estimator, gateway, emitter, cfg.Bookings, cfg.Payments.Currency)
	if err != nil {
		return routes.Dependencies{}, err
	}
	dash, err := dashboard.NewService(conn)
	if err != nil {
		return routes.Dependencies{}, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	deps := checkoutsvc.Deps{
		Tx:          dbClient,
		Records:     checkoutsvc.NewRepository(conn),
		Pricer:      calc,
		Plans:       catalog,
		Discounts:   memberSvc,
		Waivers:     waiverSvc,
		Intents:     gateway,
		Tickets:     ticketSvc,
		Memberships: memberSvc,
		Outbox:      emitter,
		Metrics:     metrics.NewCheckoutMetrics(reg),
		Logger:      logg,
	}
	if cfg.Square.AccessToken != "" {
		sqClient, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return routes.Dependencies{}, fmt.Errorf("square: %w", err)
		}
		deps.Square = sqClient
	}
	checkout, err := checkoutsvc.NewService(deps)
	if err != nil {
		return routes.Dependencies{}, err
	}

	out := routes.Dependencies{
		DB:           dbClient,
		Redis:        redisClient,
		Checkout:     checkout,
		Bookings:     bookingSvc,
		Waivers:      waiverSvc,
		Tickets:      ticketSvc,
		Memberships:  memberSvc,
		Dashboard:    dash,
		Events:       hub,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		Gatherer:     reg,
		StripeClient: stripeClient,
	}
	if stripeClient != nil && stripeClient.SigningSecret() != "" {
		if out.StripeWebhook, err = stripewebhook.NewService(bookingSvc, logg); err != nil {
			return routes.Dependencies{}, err
		}
		if out.WebhookDedupe, err = stripewebhook.NewDeduper(redisClient, "stripe", webhookReplayTTL); err != nil {
			return routes.Dependencies{}, err
		}
	}
	return out, nil
}

// requestInfo stamps outbox envelopes with the signed-in caller and request id.
func requestInfo(ctx context.Context) (*outbox.Actor, string) {
	var actor *outbox.Actor
	if a, ok := middleware.ActorFromContext(ctx); ok && a.UserID != uuid.Nil {
		actor = &outbox.Actor{UserID: a.UserID, Role: a.Role}
	}
	return actor, middleware.RequestIDFromContext(ctx)
}

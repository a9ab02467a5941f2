package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/playfunia-backend/internal/fulfillment"
	"github.com/angelmondragon/playfunia-backend/internal/ledger"
	"github.com/angelmondragon/playfunia-backend/internal/orchestrator"
	"github.com/angelmondragon/playfunia-backend/internal/payments"
	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/httpclient"
	"github.com/angelmondragon/playfunia-backend/pkg/logger"
	"github.com/angelmondragon/playfunia-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/playfunia-backend/pkg/stripe"
)

// app holds the collaborators one cartctl invocation needs. Everything that
// talks to the API is built lazily so cart-only commands work offline.
type app struct {
	cfg    *config.ClientConfig
	logger *logger.Logger
	redis  *redis.Client
	ledger *ledger.Ledger
}

func newApp(ctx context.Context, cfg *config.ClientConfig, logg *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logg}
	store, err := a.cartStore(ctx)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger.New(ctx, ledger.Options{Store: store, Logger: logg})
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// cartStore keeps the cart in Redis when a key is configured, otherwise in a
// local file.
func (a *app) cartStore(ctx context.Context) (ledger.Store, error) {
	if key := strings.TrimSpace(a.cfg.CartRedisKey); key != "" {
		if a.cfg.RedisURL == "" {
			return nil, errors.New("PLAYFUNIA_CLIENT_REDIS_URL is required with a redis cart key")
		}
		client, err := redis.NewFromURL(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect cart redis: %w", err)
		}
		a.redis = client
		return ledger.NewRedisStore(client, key)
	}
	path := a.cfg.CartPath
	if path == "" {
		var err error
		if path, err = ledger.DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	return ledger.NewFileStore(path), nil
}

func (a *app) api(token string) (*httpclient.Client, error) {
	cfg := httpclient.Config{
		BaseURL:     a.cfg.APIBaseURL,
		Timeout:     a.cfg.Timeout,
		BreakerName: "playfunia-api",
	}
	if token != "" {
		cfg.Tokens = httpclient.StaticToken(token)
	}
	return httpclient.New(cfg, a.logger)
}

// stripeAuthorizer confirms intents with the configured test payment method.
// Without a secret key only mock intents can be paid.
func (a *app) stripeAuthorizer(ctx context.Context) (payments.Authorizer, error) {
	if a.cfg.StripeSecretKey == "" {
		return nil, nil
	}
	client, err := pkgstripe.NewClient(ctx, config.StripeConfig{APIKey: a.cfg.StripeSecretKey, Env: "test"}, a.logger)
	if err != nil {
		return nil, err
	}
	return payments.NewStripeConfirmer(client, a.cfg.StripePaymentMethod)
}

func (a *app) provider(ctx context.Context, api *httpclient.Client) (payments.Provider, error) {
	if a.cfg.Provider == config.ProviderSquare {
		return payments.NewSquare(api, payments.StaticTokenizer(a.cfg.SquareSourceToken))
	}
	authorizer, err := a.stripeAuthorizer(ctx)
	if err != nil {
		return nil, err
	}
	return payments.NewStripe(api, authorizer)
}

func (a *app) deposits(ctx context.Context, api *httpclient.Client) (*payments.Deposits, error) {
	authorizer, err := a.stripeAuthorizer(ctx)
	if err != nil {
		return nil, err
	}
	return payments.NewDeposits(api, authorizer)
}

// engine wires the checkout orchestrator. A configured token makes the
// session signed in; otherwise guest must be set.
func (a *app) engine(ctx context.Context, guest *checkout.Guest) (*orchestrator.Engine, error) {
	api, err := a.api(a.cfg.Token)
	if err != nil {
		return nil, err
	}

	var session orchestrator.Session
	if a.cfg.Token != "" {
		if session, err = orchestrator.LoadSession(ctx, api, a.cfg.Token); err != nil {
			return nil, err
		}
	} else {
		if guest == nil {
			return nil, errors.New("guest contact details are required without PLAYFUNIA_CLIENT_TOKEN")
		}
		session = orchestrator.GuestSession(*guest)
	}

	provider, err := a.provider(ctx, api)
	if err != nil {
		return nil, err
	}
	broker, err := payments.NewBroker(provider, a.logger)
	if err != nil {
		return nil, err
	}
	mapper, err := fulfillment.NewMapper(a.ledger, a.logger)
	if err != nil {
		return nil, err
	}
	deposits, err := a.deposits(ctx, api)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Options{
		Ledger:    a.ledger,
		Broker:    broker,
		Mapper:    mapper,
		Deposits:  deposits,
		Session:   session,
		Estimator: orchestrator.NewAPIEstimator(api),
		Logger:    a.logger,
	})
}

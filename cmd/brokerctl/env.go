package main

import (
	"fmt"
	"net/http"

	"brokerfolio/internal/config"
	"brokerfolio/internal/database"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/services"
)

// env is the shared state every command starts from.
type env struct {
	cfg *config.Config
	db  *database.Manager
}

func loadEnv(connect bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.Env, cfg.LogLevel)

	e := &env{cfg: cfg}
	if !connect {
		return e, nil
	}
	e.db, err = database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return e, nil
}

func (e *env) close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}
}

// pricing builds a pricing service with a live quote client, failing when
// no provider credentials are configured.
func (e *env) pricing() (services.PricingServicer, error) {
	if !e.cfg.QuoteConfigured() {
		return nil, fmt.Errorf("IOL_USERNAME and IOL_PASSWORD must be set")
	}
	client := quote.NewClient(
		quote.Credentials{Username: e.cfg.QuoteUsername, Password: e.cfg.QuotePassword},
		quote.WithBaseURL(e.cfg.QuoteBaseURL),
		quote.WithMarket(e.cfg.QuoteMarket),
		quote.WithHTTPClient(&http.Client{Timeout: e.cfg.QuoteTimeout}),
	)
	return services.NewPricingService(e.db.DB(), client, nil), nil
}

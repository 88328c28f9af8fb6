package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brokerfolio/internal/config"
	"brokerfolio/internal/database"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/quote"
	"brokerfolio/internal/reports"
	"brokerfolio/internal/scheduler"
	"brokerfolio/internal/server"
	"brokerfolio/internal/services"
	"brokerfolio/internal/validator"
)

// @title           Brokerfolio API
// @version         1.0
// @description     Brokerfolio tracks broker accounts, portfolios, fixed-term deposits and market prices for a small investment team.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Shared key for the price pipeline endpoints.

func main() {
	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	log := logger.Get()

	validator.Register()

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()

	var fetcher services.QuoteFetcher
	var live quote.PriceSource
	if cfg.QuoteConfigured() {
		client := quote.NewClient(
			quote.Credentials{Username: cfg.QuoteUsername, Password: cfg.QuotePassword},
			quote.WithBaseURL(cfg.QuoteBaseURL),
			quote.WithMarket(cfg.QuoteMarket),
			quote.WithHTTPClient(&http.Client{Timeout: cfg.QuoteTimeout}),
		)
		fetcher = client

		if cfg.RedisAddr != "" {
			store := quote.NewRedisStore(cfg.RedisAddr)
			defer store.Close()
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := store.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnw("quote cache unavailable, serving quotes uncached", "addr", cfg.RedisAddr, "error", err)
			} else {
				live = quote.NewCachedSource(client, store, cfg.QuoteCacheTTL)
				log.Infow("quote cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.QuoteCacheTTL)
			}
		}
	} else {
		log.Warn("IOL_USERNAME/IOL_PASSWORD not set, price refresh and live quotes are disabled")
	}
	pricing := services.NewPricingService(db, fetcher, live)

	renderer, err := reports.NewRenderer(cfg.ReportTimezone)
	if err != nil {
		return fmt.Errorf("failed to load report timezone: %w", err)
	}

	sched := scheduler.New(renderer.Location())
	var lastRefresh server.RefreshStatus
	if cfg.RefreshEnabled && fetcher != nil {
		job := scheduler.NewPriceRefreshJob(pricing)
		if err := sched.Register(cfg.RefreshSchedule, job); err != nil {
			return fmt.Errorf("failed to schedule price refresh: %w", err)
		}
		lastRefresh = job.LastRun
	}

	router := server.NewRouter(server.Deps{
		DB:             db,
		Pricing:        pricing,
		Renderer:       renderer,
		PipelineAPIKey: cfg.PipelineAPIKey,
		LastRefresh:    lastRefresh,
	})
	if cfg.PipelineAPIKey == "" {
		log.Warn("PIPELINE_API_KEY not set, pipeline endpoints are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.WithCORS(router, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Brokerfolio server on port %s", cfg.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infow("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("http shutdown", "error", err)
	}
	sched.Stop(ctx)
	return nil
}

// Package main is the entry point for the Postroom API server.
//
// It loads configuration, connects the PostgreSQL pool, wires the plan
// catalog, quota engine, auth service, and external provider clients into the
// HTTP handlers, and serves requests until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postroom/internal/api/handlers"
	"postroom/internal/auth"
	"postroom/internal/config"
	"postroom/internal/core"
	"postroom/internal/db"
	"postroom/internal/external"
	"postroom/internal/plan"
	"postroom/internal/quota"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("postroom API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	workspaceRepo := db.NewWorkspaceRepository(pool)
	usageRepo := db.NewUsageRepository(pool)
	memberRepo := db.NewMemberRepository(pool)
	assetRepo := db.NewAssetRepository(pool)
	postRepo := db.NewPostRepository(pool)
	tokenRepo := db.NewTokenRepository(pool)
	generationRepo := db.NewGenerationRepository(pool)

	// Plan catalog and the quota engine.
	catalog := plan.NewStaticCatalog()
	aggregator := quota.NewAggregator(workspaceRepo, usageRepo, catalog, nil)
	gate := quota.NewGate(workspaceRepo, aggregator, logger)
	ledger := quota.NewLedger(workspaceRepo, usageRepo, aggregator, logger)

	authSvc := auth.NewService(auth.ServiceConfig{
		Tokens:     tokenRepo,
		BcryptCost: cfg.Security.BcryptCost,
		Logger:     logger,
	})

	// External provider clients. Each gets its own http.Client so one slow
	// upstream cannot exhaust another's connection budget.
	llmClient := external.NewLLMClient(
		&http.Client{Timeout: cfg.LLM.Timeout},
		external.LLMClientConfig{
			APIKey:   cfg.LLM.APIKey.Unmask(),
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			MaxWords: cfg.LLM.MaxWords,
			Logger:   logger,
		},
	)

	var emailSender external.EmailSender
	if cfg.Email.Enabled {
		emailSender = external.NewSendGridClient(
			&http.Client{Timeout: 10 * time.Second},
			external.SendGridClientConfig{
				APIKey:      cfg.Email.SendGridAPIKey.Unmask(),
				FromAddress: cfg.Email.FromAddress,
				FromName:    cfg.Email.FromName,
				Logger:      logger,
			},
		)
	} else {
		logger.Warn("invite email delivery disabled by feature flag")
	}

	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: 20 * time.Second},
		external.StripeClientConfig{
			SecretKey:  cfg.Billing.StripeSecretKey.Unmask(),
			ProPriceID: cfg.Billing.ProPriceID,
			SuccessURL: cfg.Server.DashboardURL + "/billing/success",
			CancelURL:  cfg.Server.DashboardURL + "/billing/cancelled",
			Logger:     logger,
		},
	)

	objectStore, err := external.NewS3Store(ctx, external.S3StoreConfig{
		Region:      cfg.Storage.Region,
		Bucket:      cfg.Storage.AssetBucket,
		PresignTTL:  cfg.Storage.PresignTTL,
		EndpointURL: cfg.Storage.EndpointURL,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("initializing object storage: %w", err)
	}

	// Build the server chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = authSvc

	// Handlers.
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceRepo, catalog, srv.Validator, logger)
	generationHandler := handlers.NewGenerationHandler(workspaceRepo, generationRepo, gate, ledger, llmClient, srv.Validator, logger)
	usageHandler := handlers.NewUsageHandler(workspaceRepo, usageRepo, aggregator, catalog, logger)
	memberHandler := handlers.NewMemberHandler(workspaceRepo, memberRepo, handlers.NewInviteTokens(), emailSender, catalog, srv.Validator, logger, cfg.Server.DashboardURL)
	assetHandler := handlers.NewAssetHandler(workspaceRepo, assetRepo, usageRepo, objectStore, catalog, srv.Validator, logger)
	postHandler := handlers.NewPostHandler(workspaceRepo, postRepo, srv.Validator, logger)
	adminHandler := handlers.NewAdminHandler(workspaceRepo, catalog, srv.Validator, logger, srv.RequireAdmin)
	tokenHandler := handlers.NewTokenHandler(authSvc, tokenRepo, srv.Validator, logger)
	billingHandler := handlers.NewBillingHandler(workspaceRepo, stripeClient, srv.Validator, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		workspaceRepo,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)

	srv.V1RouteRegistrars = []core.RouteRegistrar{
		workspaceHandler.RegisterRoutes,
		generationHandler.RegisterRoutes,
		usageHandler.RegisterRoutes,
		memberHandler.RegisterRoutes,
		assetHandler.RegisterRoutes,
		postHandler.RegisterRoutes,
		adminHandler.RegisterRoutes,
		tokenHandler.RegisterRoutes,
		billingHandler.RegisterRoutes,
		webhookHandler.RegisterRoutes,
	}
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}

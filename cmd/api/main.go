// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsdeck-io/provisioning/internal/admin"
	"github.com/opsdeck-io/provisioning/internal/billing"
	"github.com/opsdeck-io/provisioning/internal/config"
	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/health"
	"github.com/opsdeck-io/provisioning/internal/mailer"
	"github.com/opsdeck-io/provisioning/internal/middleware"
	"github.com/opsdeck-io/provisioning/internal/organization"
	"github.com/opsdeck-io/provisioning/internal/server"
	"github.com/opsdeck-io/provisioning/internal/subscription"
	"github.com/opsdeck-io/provisioning/internal/token"
	"github.com/opsdeck-io/provisioning/internal/user"
	"github.com/opsdeck-io/provisioning/internal/webhook"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	signer, err := token.NewSigner(cfg.Token)
	if err != nil {
		return err
	}

	mail, err := mailer.New(cfg.Email, logger)
	if err != nil {
		return err
	}
	logger.Info("mailer started",
		"queue_size", cfg.Email.QueueSize,
		"workers", cfg.Email.Workers,
	)

	stripeClient := billing.NewClient(cfg.Stripe)
	verifier := billing.NewVerifier(cfg.Stripe.WebhookSecret)

	userRepo := user.NewRepository(db.DB)
	orgRepo := organization.NewRepository(db.DB)
	subRepo := subscription.NewRepository(db.DB)

	provisioner := webhook.NewProvisioner(
		stripeClient,
		userRepo,
		orgRepo,
		mail,
		signer,
		cfg.App.PublicURL,
		logger,
	)
	tenantUpdater := webhook.NewTenantUpdater(stripeClient, orgRepo, logger)
	lifecycleSyncer := webhook.NewLifecycleSyncer(subRepo, orgRepo, logger)
	processor := webhook.NewProcessor(
		provisioner,
		tenantUpdater,
		lifecycleSyncer,
		logger,
	)

	counters := &webhook.Counters{}
	webhookHandler := webhook.NewHandler(
		verifier,
		webhook.NewEventClaims(redis.Client, logger),
		processor,
		counters,
		logger,
	)

	checkoutHandler := billing.NewCheckoutHandler(stripeClient, orgRepo, logger)
	userHandler := user.NewHandler(userRepo, signer, logger)

	healthHandler := health.NewHandler(db, redis, mail)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Webhooks:   counters,
		Mail:       mail,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	healthHandler.RegisterRoutes(router)

	// The webhook endpoint sits outside the rate limiter: Stripe retries
	// in bursts and the signature check already gates abuse.
	webhookHandler.RegisterRoutes(router)

	rateLimiter := middleware.NewRateLimiter(
		redis.Client,
		middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		},
	)
	apiKeyGuard := middleware.RequireAPIKey(cfg.Admin.APIKey)

	router.Route("/v1", func(r chi.Router) {
		r.Use(rateLimiter.Handler)

		checkoutHandler.RegisterRoutes(r)
		userHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r, apiKeyGuard)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := mail.Close(shutdownCtx); err != nil {
		logger.Error("mailer shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

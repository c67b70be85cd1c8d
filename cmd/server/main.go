package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"

	"github.com/dukerupert/wander/internal"
	"github.com/dukerupert/wander/internal/billing"
	"github.com/dukerupert/wander/internal/email"
	"github.com/dukerupert/wander/internal/events"
	"github.com/dukerupert/wander/internal/handler"
	"github.com/dukerupert/wander/internal/handler/api"
	"github.com/dukerupert/wander/internal/handler/storefront"
	"github.com/dukerupert/wander/internal/handler/webhook"
	"github.com/dukerupert/wander/internal/middleware"
	"github.com/dukerupert/wander/internal/postgres"
	"github.com/dukerupert/wander/internal/repository"
	"github.com/dukerupert/wander/internal/router"
	"github.com/dukerupert/wander/internal/routes"
	"github.com/dukerupert/wander/internal/service"
	"github.com/dukerupert/wander/internal/supplier"
	"github.com/dukerupert/wander/internal/telemetry"
	"github.com/dukerupert/wander/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	telemetry.InitFulfillmentMetrics("wander")
	httpMetrics := middleware.NewMetrics("wander")

	if cfg.AutoMigrate {
		if err := migrate(cfg.DatabaseUrl, logger); err != nil {
			return err
		}
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	repo := repository.New(pool)
	ledger := postgres.NewOrderLedger(repo)
	reminderStore := postgres.NewReminderStore(repo)

	// Initialize Stripe billing provider
	stripeConfig := billing.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		Currency:       cfg.Stripe.Currency,
		MaxRetries:     3,
		TimeoutSeconds: 30,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	provisioner, err := newProvisioner(cfg, logger)
	if err != nil {
		return err
	}

	// Events are optional: without NATS, completed orders are not announced
	// and no activation emails go out.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.Name, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = events.NewNATSPublisher(nc, logger)
		logger.Info("Publishing order events to NATS", "url", cfg.NATS.URL)

		if cfg.Worker.Enabled {
			if err := startWorker(ctx, nc, cfg, logger); err != nil {
				return err
			}
		}
	} else {
		logger.Warn("NATS_URL not set, order events and activation emails are disabled")
	}

	// Services
	checkoutService := service.NewCheckoutService(ledger, billingProvider, service.CheckoutConfig{
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Currency:   cfg.Stripe.Currency,
	}, logger)
	fulfillmentService := service.NewFulfillmentService(ledger, provisioner, publisher, fulfillmentConfig(cfg), logger)
	orderService := service.NewOrderQueryService(ledger, cfg.SupportEmail, logger)
	reminderService := service.NewReminderService(reminderStore, logger)

	renderer, err := handler.NewRenderer(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	// Router with global middleware
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		telemetry.SentryMiddleware(),
		middleware.WithRequestLogger(logger),
		middleware.AccessLog,
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Health:  healthHandler(pool),
		Metrics: httpMetrics.Handler(),
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(billingProvider, fulfillmentService, webhook.StripeWebhookConfig{
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}, logger).HandleWebhook,
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CheckoutHandler:  api.NewCheckoutHandler(checkoutService, logger),
		OrdersHandler:    api.NewOrdersHandler(orderService, logger),
		RemindersHandler: api.NewRemindersHandler(reminderService, logger),
		Auth:             middleware.NewBearerAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		WriteLimiter:     middleware.NewRateLimiter(middleware.StrictRateLimiterConfig()),
		ReadLimiter:      middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
	})
	routes.RegisterStorefrontRoutes(r, routes.StorefrontDeps{
		ConfirmationHandler: storefront.NewConfirmationHandler(renderer, storefront.PollConfig{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
		}, cfg.SupportEmail, logger),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(cfg.CORSOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// migrate runs goose migrations over a short-lived lib/pq connection; the
// application itself uses pgxpool.
func migrate(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")
	return nil
}

func fulfillmentConfig(cfg *internal.Config) service.FulfillmentConfig {
	return service.FulfillmentConfig{
		WriteAttempts: cfg.Fulfillment.WriteAttempts,
		WriteBackoff:  cfg.Fulfillment.WriteBackoff,
		StaleAfter:    cfg.Fulfillment.StaleAfter,
	}
}

// newProvisioner returns the supplier client, or in dev without supplier
// credentials a mock that issues fake artifacts.
func newProvisioner(cfg *internal.Config, logger *slog.Logger) (supplier.Provisioner, error) {
	client, err := supplier.NewClient(supplier.Config{
		BaseURL:           cfg.Supplier.BaseURL,
		ClientID:          cfg.Supplier.ClientID,
		ClientSecret:      cfg.Supplier.ClientSecret,
		Timeout:           cfg.Supplier.Timeout,
		TokenSafetyMargin: cfg.Supplier.TokenSafetyMargin,
	})
	if errors.Is(err, supplier.ErrMissingCredentials) && cfg.Env == "dev" {
		logger.Warn("Supplier credentials not set, using mock provisioner")
		return supplier.NewMockProvisioner(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize supplier client: %w", err)
	}
	return client, nil
}

func startWorker(ctx context.Context, nc *nats.Conn, cfg *internal.Config, logger *slog.Logger) error {
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	}, logger)
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return err
	}

	w := worker.NewWorker(nc, emailService, worker.Config{
		WorkerID:     cfg.Worker.ID,
		Queue:        cfg.Worker.Queue,
		SupportEmail: cfg.SupportEmail,
	}, logger)

	go func() {
		if err := w.Start(ctx); err != nil {
			logger.Error("worker stopped", "error", err)
		}
	}()
	return nil
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

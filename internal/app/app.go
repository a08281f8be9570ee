// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/web3radar/billing-api/internal/domain/auth"
	"github.com/web3radar/billing-api/internal/domain/checkout"
	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
	"github.com/web3radar/billing-api/internal/handler"
	"github.com/web3radar/billing-api/internal/repository"
	"github.com/web3radar/billing-api/internal/stripeprovider"
	"github.com/web3radar/billing-api/pkg/health"
	"github.com/web3radar/billing-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Discount rule table. Invalid entries are logged and skipped; an empty
	// table still serves, every code just comes back unknown.
	table, skipped := discount.LoadRules(cfg.RulesPath)
	if table == nil {
		return errors.Errorf("load discount rules from %s: %v", cfg.RulesPath, skipped)
	}
	for _, err := range skipped {
		lg.Warn("Skipping discount rule", zap.Error(err))
	}
	lg.Info("Discount rules loaded", zap.Int("count", table.Len()))

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	userRepo := repository.NewUserRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)

	// Provider client + domain services.
	provider := stripeprovider.NewClient(stripeprovider.Config{
		APIKey:             cfg.Stripe.APIKey,
		PriceID:            cfg.Stripe.PriceID,
		ProductName:        cfg.Billing.ProductName,
		ProductDescription: cfg.Billing.ProductDescription,
		MonthlyPriceCents:  cfg.Billing.MonthlyPriceCents,
		Currency:           cfg.Billing.Currency,
		SuccessURL:         cfg.Stripe.SuccessURL,
		CancelURL:          cfg.Stripe.CancelURL,
	})
	evaluator := discount.NewEvaluator(table, usageRepo)
	reconciler := subscription.NewReconciler(userRepo, provider)
	checkoutSvc := checkout.NewService(userRepo, provider, checkout.Pricing{
		MonthlyPriceCents: cfg.Billing.MonthlyPriceCents,
		Currency:          cfg.Billing.Currency,
		TrialDays:         cfg.Billing.TrialDays,
	})
	webhook := stripeprovider.NewWebhookHandler(cfg.Stripe.WebhookSecret, userRepo, usageRepo, paymentRepo)
	verifier := auth.NewJWTVerifier([]byte(cfg.JWTSecret))

	// HTTP handlers.
	h := handler.NewHandler(evaluator, checkoutSvc, reconciler, verifier, webhook)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "Stripe-Signature"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("billing-api", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Compress(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// Package app wires the application together: database, repositories,
// pricing engine, services, HTTP server, and background sweeps.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/QuynYang/glowaura/internal/audit"
	"github.com/QuynYang/glowaura/internal/checkout"
	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/handler"
	"github.com/QuynYang/glowaura/internal/postgres"
	"github.com/QuynYang/glowaura/internal/pricing"
	"github.com/QuynYang/glowaura/internal/service"
	"github.com/QuynYang/glowaura/pkg/health"
	"github.com/QuynYang/glowaura/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health checks.
	checker := health.NewChecker()
	checker.AddLiveness("goroutines", health.GoroutineCountCheck(10_000))
	checker.AddReadiness("postgres", health.PoolCheck(pool))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	couponGuard, err := coupon.NewBloomGuard(ctx, couponRepo)
	if err != nil {
		return errors.Wrap(err, "build coupon guard")
	}

	// Audit sink: broker-backed when configured, log-backed otherwise.
	var sink audit.Sink = audit.NewZapSink(lg.Named("audit"))
	if cfg.AMQPURL != "" {
		amqpSink, err := audit.NewAMQPSink(cfg.AMQPURL, lg.Named("audit"))
		if err != nil {
			return errors.Wrap(err, "connect audit sink")
		}
		defer func() {
			if err := amqpSink.Close(); err != nil {
				lg.Warn("close audit sink", zap.Error(err))
			}
		}()
		sink = amqpSink
		checker.AddReadiness("amqp", func(context.Context) error {
			return amqpSink.Healthy()
		})
	}

	// Domain services.
	builder := checkout.NewBuilder(productRepo, customerRepo, couponGuard, pricing.NewEngine(), lg.Named("checkout"))
	orders, err := service.NewOrders(orderRepo, productRepo, customerRepo, builder, sink, lg.Named("orders"),
		m.MeterProvider().Meter("glowaura"))
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// Background sweep for stale stock reservations.
	go func() {
		ticker := time.NewTicker(cfg.Sweep.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				released, err := orders.ReleaseStaleReservations(ctx)
				if err != nil {
					lg.Error("reservation sweep failed", zap.Error(err))
					continue
				}
				if released > 0 {
					lg.Info("reservation sweep", zap.Int("released", released))
				}
			}
		}
	}()

	// Mux: health endpoints + API routes on one server.
	h := handler.NewHandler(orders, productRepo, lg.Named("http"))
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", checker.LiveEndpoint)
	mux.HandleFunc("/readyz", checker.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	instrumented := otelhttp.NewHandler(mux, "glowaura-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		lg.Info("Draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

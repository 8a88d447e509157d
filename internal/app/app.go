// Package app wires configuration, storage, domain services and the HTTP
// server into a runnable storefront application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/lojinha-dev/lojinha/internal/domain/cart"
	"github.com/lojinha-dev/lojinha/internal/domain/order"
	"github.com/lojinha-dev/lojinha/internal/domain/report"
	"github.com/lojinha-dev/lojinha/internal/domain/shipping"
	"github.com/lojinha-dev/lojinha/internal/httpapi"
	"github.com/lojinha-dev/lojinha/internal/repository"
	"github.com/lojinha-dev/lojinha/pkg/health"
	"github.com/lojinha-dev/lojinha/pkg/httpmiddleware"
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

	if err := registerPoolMetrics(m.MeterProvider().Meter("lojinha"), pool); err != nil {
		return errors.Wrap(err, "register pool metrics")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	cartRepo := repository.NewCartRepository(pool, productRepo, customerRepo)
	orderRepo := repository.NewOrderRepository(pool, productRepo, customerRepo, couponRepo)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Domain services.
	rateTable, err := cfg.Shipping.RateTable()
	if err != nil {
		return errors.Wrap(err, "shipping rate table")
	}
	estimator := shipping.NewEstimator(rateTable)
	cartService := cart.NewService(cartRepo, productRepo, customerRepo)
	orderService := order.NewService(orderRepo, productRepo, couponRepo, cartRepo, estimator)
	reportService := report.NewService(orderRepo)

	// HTTP handlers.
	security := httpapi.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := httpapi.NewHandler(
		productRepo,
		customerRepo,
		cartService,
		orderService,
		reportService,
		estimator,
		security,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	handler := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(handler, "storefront",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
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

// registerPoolMetrics exports the connection pool state as gauges so pool
// exhaustion shows up in dashboards before it shows up as latency.
func registerPoolMetrics(meter metric.Meter, pool *pgxpool.Pool) error {
	conns, err := meter.Int64ObservableGauge("db.pool.connections",
		metric.WithDescription("Connections held by the pgx pool, by state"),
	)
	if err != nil {
		return err
	}
	waiting, err := meter.Int64ObservableGauge("db.pool.empty_acquire_count",
		metric.WithDescription("Acquires that had to wait for a free connection"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(conns, int64(stat.AcquiredConns()), metric.WithAttributes(attribute.String("state", "acquired")))
		o.ObserveInt64(conns, int64(stat.IdleConns()), metric.WithAttributes(attribute.String("state", "idle")))
		o.ObserveInt64(conns, int64(stat.ConstructingConns()), metric.WithAttributes(attribute.String("state", "constructing")))
		o.ObserveInt64(waiting, stat.EmptyAcquireCount())
		return nil
	}, conns, waiting)
	return err
}

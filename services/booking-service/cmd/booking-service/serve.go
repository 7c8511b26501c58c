package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/fitbook/libs/otel"
	"github.com/md-rashed-zaman/fitbook/libs/runtime"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage"
)

func newServeCommand() *cobra.Command {
	var autoMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox publisher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			return serve(cfg, autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(cfg Config, autoMigrate bool) error {
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.Service)
	if err != nil {
		return err
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	metrics := observe.NewMetrics()
	obs := observe.New(logger, metrics)

	b, err := openBackend(ctx, cfg, logger, obs)
	if err != nil {
		return err
	}
	defer b.Close()

	if autoMigrate && b.pool != nil {
		if err := storage.Migrate(ctx, b.pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied")
	}

	var checks []runtime.ReadyCheck
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	if b.pool != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(b.pool)})
	}

	limiter, closeLimiter, err := rateLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()
	if cfg.RedisURL != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisCheck(cfg.RedisURL)})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", metrics.Handler())
	handlers.New(handlers.Deps{
		Bookings: b.bookings,
		Detector: b.detector,
		Slots:    b.slots,
		Reader:   b.appts,
		Logger:   logger,
	}).Register(mux)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	}
	if limiter != nil {
		middleware = append(middleware, limiter)
	}
	middleware = append(middleware,
		httpx.WithCORS(cfg.CORS),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.WithTimeout(cfg.RequestTimeout),
	)
	httpHandler := otelhttp.NewHandler(httpx.Chain(mux, middleware...), "booking")

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if b.pool != nil {
		publisher := outbox.NewPublisher(b.pool, b.outbox, logger, outbox.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		g.Go(func() error { return publisher.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "err", err)
		}
		logger.Info("http server stopped")
		return nil
	})
	return g.Wait()
}

// rateLimiter picks the Redis limiter when REDIS_URL is set so limits hold across replicas.
// A zero RATE_LIMIT_REQUESTS disables limiting.
func rateLimiter(cfg Config, logger *slog.Logger) (httpx.Middleware, func(), error) {
	noop := func() {}
	if cfg.RateLimit <= 0 {
		return nil, noop, nil
	}
	if cfg.RedisURL == "" {
		return httpx.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow).Middleware(), noop, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "fitbook:rl:")
	return rl.Middleware(logger, cfg.RateLimitFailOpen), func() { _ = rdb.Close() }, nil
}

func redisCheck(url string) func(context.Context) error {
	return func(ctx context.Context) error {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		return rdb.Ping(ctx).Err()
	}
}

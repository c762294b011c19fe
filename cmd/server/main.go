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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kycgate/internal/blob"
	"kycgate/internal/health"
	jwttoken "kycgate/internal/jwt_token"
	"kycgate/internal/platform/config"
	"kycgate/internal/platform/httpserver"
	"kycgate/internal/platform/logger"
	"kycgate/internal/platform/metrics"
	"kycgate/internal/platform/postgres"
	"kycgate/internal/platform/redis"
	ratelimitmetrics "kycgate/internal/ratelimit/metrics"
	ratelimitmw "kycgate/internal/ratelimit/middleware"
	ratelimitmodels "kycgate/internal/ratelimit/models"
	"kycgate/internal/ratelimit/store/bucket"
	httptransport "kycgate/internal/transport/http"
	"kycgate/internal/upload"
	"kycgate/internal/upload/normalize"
	"kycgate/internal/verification/handler"
	verificationmetrics "kycgate/internal/verification/metrics"
	"kycgate/internal/verification/service"
	"kycgate/internal/verification/store"
	"kycgate/pkg/platform/middleware/metadata"
)

const shutdownTimeout = 15 * time.Second

// recordStore is what both the service and the health check need from the
// verification store.
type recordStore interface {
	service.Store
	Ping(ctx context.Context) error
}

// main wires dependencies once and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)

	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			if cfg.IsProduction() {
				log.Error("invalid configuration", "problem", p)
			} else {
				log.Warn("configuration problem, using development fallbacks", "problem", p)
			}
		}
		if cfg.IsProduction() {
			return errors.New("refusing to start with invalid configuration")
		}
	}
	if cfg.DebugErrors() {
		log.Warn("running with the default SECRET_KEY; internal error details are exposed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	records, closeRecords, err := newRecordStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRecords()

	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter, redisClient := newSubmitLimiter(ctx, cfg, log, reg)
	var healthOpts []health.Option
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		healthOpts = append(healthOpts, health.WithRateLimiter(redisClient))
	}

	pipeline := upload.New(blobs,
		normalize.New(cfg.Upload.MaxWidth, cfg.Upload.Quality, log),
		cfg.Upload, cfg.Storage, log)
	svc := service.New(records, pipeline, log,
		service.WithMetrics(verificationmetrics.New(reg)),
		service.WithPagination(cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.SecretKey, cfg.Server.JWTIssuer)
	verifications := handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService),
		handler.WithMaxFileSize(cfg.Upload.MaxFileSize),
		handler.WithDebugErrors(cfg.DebugErrors()),
		handler.WithSubmitMiddleware(limiter.RateLimit("submit")),
	)

	clientIP, err := metadata.NewResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:      log,
		CORSOrigins: cfg.Server.CORSOrigins,
		HSTS:        cfg.IsProduction(),
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		ClientIP:    clientIP,
	},
		health.New(records, blobs, cfg.Storage.DocumentsBucket, log, healthOpts...),
		verifications,
	)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadTimeout, cfg.Upload.Timeout)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting kycgate",
			"addr", cfg.Server.Addr,
			"environment", cfg.Server.Environment,
			"version", health.Version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newRecordStore(ctx context.Context, cfg config.Config, log *slog.Logger) (recordStore, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory verification store")
		return store.NewInMemory(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("connected to postgres", "max_conns", pool.Config().MaxConns)
	return pg, pool.Close, nil
}

func newBlobStore(ctx context.Context, cfg config.Config, log *slog.Logger) (blob.Store, error) {
	if cfg.Storage.Endpoint == "" {
		log.Warn("STORAGE_ENDPOINT not set, keeping uploads in memory")
		return blob.NewMemoryStore(), nil
	}
	s3Store, err := blob.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return s3Store, nil
}

// newSubmitLimiter prefers Redis so replicas share one budget per client, and
// keeps an in-memory store as the fallback. The Redis client is nil when the
// limiter runs per process.
func newSubmitLimiter(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*ratelimitmw.Middleware, *redis.Client) {
	limit := ratelimitmodels.Limit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
	opts := []ratelimitmw.Option{ratelimitmw.WithMetrics(ratelimitmetrics.New(reg))}
	local := bucket.New()

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, rate limiting per process", "error", err)
	}
	if client == nil {
		return ratelimitmw.New(local, limit, log, opts...), nil
	}

	opts = append(opts, ratelimitmw.WithFallback(local))
	return ratelimitmw.New(bucket.NewRedis(client.Client), limit, log, opts...), client
}

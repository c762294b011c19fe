package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kycgate/internal/ratelimit/metrics"
	"kycgate/internal/ratelimit/models"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/httputil"
	metadata "kycgate/pkg/platform/middleware/metadata"
	request "kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/requestcontext"
)

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// HeaderStatus is set to "degraded" while the fallback store is answering.
const HeaderStatus = "X-RateLimit-Status"

type Middleware struct {
	primary  Store
	fallback Store
	breaker  *CircuitBreaker
	limit    models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback sets a store that answers while the primary one is failing.
func WithFallback(store Store) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithBreakerThresholds overrides when the circuit opens and closes.
func WithBreakerThresholds(failures, successes int) Option {
	return func(m *Middleware) {
		m.breaker = newCircuitBreaker(failures, successes)
	}
}

func New(primary Store, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limit:   limit,
		logger:  logger,
		breaker: newCircuitBreaker(defaultFailureThreshold, defaultSuccessThreshold),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.disabled = !limit.Enabled()
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP within scope. Store errors fail
// open: the request is served and the error logged.
func (m *Middleware) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = metadata.ClientIPFromRequest(r)
			}

			result, degraded, err := m.check(ctx, models.NewIPKey(scope, ip))
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"scope", scope,
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}

			if !result.Allowed {
				m.metrics.IncRejected(scope)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"client_ip", ip,
					"retry_after", result.RetryAfter,
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, please try again later"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary store and falls back to the local one when the
// primary errors or the circuit is still recovering.
func (m *Middleware) check(ctx context.Context, key string) (*models.Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, m.limit.Requests, m.limit.Window)
	if err != nil {
		wasOpen := m.breaker.IsOpen()
		if m.breaker.RecordFailure() && !wasOpen {
			m.metrics.IncDegraded()
			m.logger.WarnContext(ctx, "rate limit store failing, switching to local fallback",
				"error", err,
				"request_id", request.GetRequestID(ctx),
			)
		}
		if m.fallback == nil {
			return nil, false, err
		}
		return m.fromFallback(ctx, key)
	}

	if m.breaker.RecordSuccess() || m.fallback == nil {
		return result, false, nil
	}
	return m.fromFallback(ctx, key)
}

func (m *Middleware) fromFallback(ctx context.Context, key string) (*models.Result, bool, error) {
	result, err := m.fallback.Allow(ctx, key, m.limit.Requests, m.limit.Window)
	if err != nil {
		return nil, true, err
	}
	return result, true, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

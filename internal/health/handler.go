// Package health serves the liveness and dependency report.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycgate/pkg/platform/httputil"
	request "kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/requestcontext"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	Connected    = "connected"
	Disconnected = "disconnected"
	// Local means the rate limiter keeps its counters in process.
	Local = "local"

	probeTimeout = 2 * time.Second
)

// DatabasePinger reports whether the record store is reachable.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// BucketPinger reports whether a storage bucket is reachable.
type BucketPinger interface {
	Ping(ctx context.Context, bucket string) error
}

// LimiterChecker reports whether the shared rate limiter backend answers.
type LimiterChecker interface {
	Health(ctx context.Context) error
}

type Response struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	Database    string    `json:"database"`
	Storage     string    `json:"storage"`
	RateLimiter string    `json:"rate_limiter"`
}

type Handler struct {
	db      DatabasePinger
	storage BucketPinger
	bucket  string
	limiter LimiterChecker
	logger  *slog.Logger
}

type Option func(*Handler)

// WithRateLimiter reports the shared limiter backend. Without it the limiter
// is reported as local.
func WithRateLimiter(c LimiterChecker) Option {
	return func(h *Handler) {
		h.limiter = c
	}
}

// New builds the health handler. storage is probed against bucket.
func New(db DatabasePinger, storage BucketPinger, bucket string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{db: db, storage: storage, bucket: bucket, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/health", h.handleHealth)
}

// handleHealth always answers 200; the body says what is down.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := Response{
		Status:      StatusHealthy,
		Timestamp:   requestcontext.Now(ctx).UTC(),
		Version:     Version,
		Database:    Connected,
		Storage:     Connected,
		RateLimiter: Local,
	}
	if err := h.probe(ctx, func(ctx context.Context) error { return h.db.Ping(ctx) }); err != nil {
		h.logger.WarnContext(ctx, "database health check failed",
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		resp.Status = StatusUnhealthy
		resp.Database = Disconnected
	}
	if err := h.probe(ctx, func(ctx context.Context) error { return h.storage.Ping(ctx, h.bucket) }); err != nil {
		h.logger.WarnContext(ctx, "storage health check failed",
			"bucket", h.bucket,
			"error", err,
			"request_id", request.GetRequestID(ctx),
		)
		resp.Storage = Disconnected
	}
	if h.limiter != nil {
		resp.RateLimiter = Connected
		if err := h.probe(ctx, h.limiter.Health); err != nil {
			h.logger.WarnContext(ctx, "rate limiter health check failed",
				"error", err,
				"request_id", request.GetRequestID(ctx),
			)
			resp.RateLimiter = Disconnected
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) probe(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return ping(ctx)
}

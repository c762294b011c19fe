package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycgate/internal/platform/metrics"
	"kycgate/pkg/platform/httputil"
	metadata "kycgate/pkg/platform/middleware/metadata"
	request "kycgate/pkg/platform/middleware/request"
	"kycgate/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

type RouterConfig struct {
	Logger      *slog.Logger
	CORSOrigins []string
	// HSTS adds Strict-Transport-Security; enable only behind TLS.
	HSTS     bool
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// ClientIP resolves caller addresses. Nil trusts no forwarding headers.
	ClientIP *metadata.Resolver
}

// NewRouter wires the shared middleware chain and mounts every handler.
// Handlers stay free of transport concerns such as CORS and access logs.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	if cfg.ClientIP != nil {
		r.Use(cfg.ClientIP.ClientMetadata)
	} else {
		r.Use(metadata.ClientMetadata)
	}
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.SecurityHeaders(cfg.HSTS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.Metrics != nil {
		r.Use(request.Latency(cfg.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
			Error:      "not_found",
			Message:    "route not found",
			StatusCode: http.StatusNotFound,
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error:      "method_not_allowed",
			Message:    "method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/observability"
	"github.com/boddenberg/netgen/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// RouterConfig carries the optional knobs of the HTTP surface.
type RouterConfig struct {
	// JWTSecret enables HS256 bearer authentication on /v1 when non-empty.
	JWTSecret []byte
	// Timeout bounds every /v1 request. Zero disables it.
	Timeout time.Duration
}

// NewRouter creates the HTTP router with all routes and middleware.
// gw may be nil, in which case only the operational endpoints answer.
func NewRouter(gw *service.Gateway, metrics *observability.Metrics, logger *zap.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(RequestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(gw))
	r.Get("/readyz", readyzHandler(gw))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if gw == nil {
		return r
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if len(cfg.JWTSecret) > 0 {
			r.Use(JWTAuthMiddleware(cfg.JWTSecret, logger))
		}
		if cfg.Timeout > 0 {
			r.Use(middleware.Timeout(cfg.Timeout))
		}

		r.Post("/generate", generateHandler(gw, logger))
		r.Post("/validate", validateHandler(gw, logger))
		r.Post("/configs", configHandler(gw, logger))

		r.Get("/backends", listBackendsHandler(gw))
		r.Get("/backends/{name}/endpoints", endpointsHandler(gw, logger))
		r.Post("/backends/{name}/probe", probeHandler(gw, logger))
		r.Post("/backends/{name}/default", setDefaultHandler(gw, logger))

		r.Get("/stats", statsHandler(gw))
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gw == nil {
			writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "healthy"})
			return
		}
		writeJSON(w, http.StatusOK, gw.Health())
	}
}

// readyzHandler reports ready once a default backend is resolvable. The
// pipeline answers even with every endpoint down, so endpoint health does
// not gate readiness.
func readyzHandler(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ready"}
		if gw != nil {
			resp["default_backend"] = gw.Default()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statsHandler(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, gw.Statistics())
	}
}

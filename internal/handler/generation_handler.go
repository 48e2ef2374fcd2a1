package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/service"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Generation: POST /v1/generate
// ============================================================

type generateRequest struct {
	Backend string `json:"backend"`
	Prompt  string `json:"prompt"`
}

type generateResponse struct {
	RequestID string                  `json:"request_id,omitempty"`
	Backend   string                  `json:"backend"`
	Text      string                  `json:"text"`
	Source    domain.GenerationSource `json:"source"`
	Endpoint  string                  `json:"endpoint,omitempty"`
	LatencyMs int64                   `json:"latency_ms"`
}

func generateHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/generate")
		defer span.End()

		var req generateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		backend, err := gw.Backend(req.Backend)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("backend", backend.Name()))

		start := time.Now()
		res, err := gw.Generate(ctx, backend.Name(), req.Prompt)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("source", string(res.Source)))

		writeJSON(w, http.StatusOK, generateResponse{
			RequestID: middleware.GetReqID(ctx),
			Backend:   backend.Name(),
			Text:      res.Text,
			Source:    res.Source,
			Endpoint:  res.Endpoint,
			LatencyMs: time.Since(start).Milliseconds(),
		})
	}
}

// ============================================================
// Validation: POST /v1/validate
// ============================================================

type validateRequest struct {
	Backend string `json:"backend"`
	Config  string `json:"config"`
}

func validateHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/validate")
		defer span.End()

		var req validateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Config) == "" {
			writeError(w, http.StatusBadRequest, "config is required")
			return
		}

		report, err := gw.Validate(ctx, req.Backend, req.Config)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ============================================================
// Network configs: POST /v1/configs
// ============================================================

type configRequest struct {
	Backend string `json:"backend"`
	domain.ConfigRequest
}

func configHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/configs")
		defer span.End()

		var req configRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.String("device", req.DeviceName))

		result, err := gw.GenerateNetworkConfig(ctx, req.Backend, req.ConfigRequest)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

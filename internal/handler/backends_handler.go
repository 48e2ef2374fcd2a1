package handler

import (
	"net/http"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type backendsResponse struct {
	Default  string                `json:"default"`
	Backends []domain.ProviderInfo `json:"backends"`
}

func listBackendsHandler(gw *service.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, backendsResponse{
			Default:  gw.Default(),
			Backends: gw.Backends(),
		})
	}
}

func endpointsHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := gw.Backend(chi.URLParam(r, "name"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, b.Status())
	}
}

// probeHandler re-checks every endpoint of a backend and returns the
// refreshed marks.
func probeHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/backends/{name}/probe")
		defer span.End()

		b, err := gw.Backend(chi.URLParam(r, "name"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		b.RefreshHealth(ctx)
		writeJSON(w, http.StatusOK, b.Status())
	}
}

func setDefaultHandler(gw *service.Gateway, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := gw.SetDefault(name); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, backendsResponse{
			Default:  gw.Default(),
			Backends: gw.Backends(),
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"metapick/internal/stats"
)

// RegisterRoutes adds the health, version and API routes to r. The metrics
// endpoint is registered separately since it can be disabled.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Health check endpoints (no auth required, before other routes)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/summary", h.GetSummary).Methods(http.MethodGet)
	api.HandleFunc("/top/{category}", h.GetTop).Methods(http.MethodGet)
	api.HandleFunc("/models", h.TopHandler(stats.CategoryModels)).Methods(http.MethodGet)
	api.HandleFunc("/dimensions", h.TopHandler(stats.CategoryDimensions)).Methods(http.MethodGet)
	api.HandleFunc("/samplers", h.TopHandler(stats.CategorySamplers)).Methods(http.MethodGet)
	api.HandleFunc("/tags/{category}", h.SearchTags).Methods(http.MethodGet)
	api.HandleFunc("/tags/{category}/similar", h.SimilarTags).Methods(http.MethodGet)
	api.HandleFunc("/suggestions/{category}", h.GetSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/models/mappings", h.GetModelMappings).Methods(http.MethodGet)
	api.HandleFunc("/records", h.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/lookup", h.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/sources", h.GetSources).Methods(http.MethodGet)
}

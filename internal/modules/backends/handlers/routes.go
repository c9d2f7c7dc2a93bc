package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backend status routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backends", func(r chi.Router) {
		r.Get("/", h.HandleListBackends)
		r.Get("/overview", h.HandleOverview)
		r.Get("/overview/report", h.HandleOverviewReport)
		r.Get("/{name}/status", h.HandleBackendStatus)
		r.Get("/{name}/calibration", h.HandleBackendCalibration)
		r.Get("/{name}/history", h.HandleBackendHistory)
		r.Get("/{name}/trend", h.HandleBackendTrend)
	})
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all demonstration routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/demos", func(r chi.Router) {
		r.Get("/", h.HandleAll)
		r.Get("/report", h.HandleReport)
		r.Get("/unitarity", h.HandleUnitarity)
		r.Get("/norm", h.HandleNorm)
		r.Get("/echo", h.HandleEcho)
		r.Get("/mixed-states", h.HandleMixedStates)
		r.Get("/thermal", h.HandleThermal)
	})
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all job routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleSubmit)
		r.Post("/echo", h.HandleSubmitEcho)
		r.Get("/{ref}", h.HandleGet)
		r.Post("/{ref}/refresh", h.HandleRefresh)
	})
}

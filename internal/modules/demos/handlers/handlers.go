// Package handlers provides HTTP handlers for the concept demonstrations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/qulab/qulab/internal/modules/demos"
	"github.com/rs/zerolog"
)

// Handler handles demonstration HTTP requests
type Handler struct {
	service *demos.Service
	log     zerolog.Logger
}

// NewHandler creates a new demos handler
func NewHandler(service *demos.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "demos").Logger(),
	}
}

// HandleAll handles GET /api/demos
func (h *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run demonstrations")
		http.Error(w, "Failed to run demonstrations", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleUnitarity handles GET /api/demos/unitarity
func (h *Handler) HandleUnitarity(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, envelope(h.service.Unitarity()))
}

// HandleNorm handles GET /api/demos/norm
func (h *Handler) HandleNorm(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.NormPreservation()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run norm demonstration")
		http.Error(w, "Failed to run norm demonstration", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleEcho handles GET /api/demos/echo
func (h *Handler) HandleEcho(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Echo()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run echo demonstration")
		http.Error(w, "Failed to run echo demonstration", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleMixedStates handles GET /api/demos/mixed-states
func (h *Handler) HandleMixedStates(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.MixedStates()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run mixed-state sweep")
		http.Error(w, "Failed to run mixed-state sweep", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"states": results,
		"count":  len(results),
	}))
}

// HandleThermal handles GET /api/demos/thermal
func (h *Handler) HandleThermal(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Thermal()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run thermal demonstration")
		http.Error(w, "Failed to run thermal demonstration", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

// HandleReport handles GET /api/demos/report.
// Returns the plain-text rendition of all demonstrations.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to run demonstrations")
		http.Error(w, "Failed to run demonstrations", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(demos.FormatReport(report))); err != nil {
		h.log.Error().Err(err).Msg("Failed to write report")
	}
}

// envelope wraps response data with a timestamp, matching the API shape
// used across modules.
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Package handlers provides HTTP handlers for the charts module.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/qulab/qulab/internal/modules/charts"
	"github.com/rs/zerolog"
)

// Handler handles chart-related HTTP requests
type Handler struct {
	service *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *charts.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandleThermalSeries returns the Boltzmann curves as plot-ready series.
func (h *Handler) HandleThermalSeries(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.ThermalSeries()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build thermal series")
		http.Error(w, "Failed to build thermal series", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, envelope(map[string]interface{}{
		"series": series,
		"count":  len(series),
	}))
}

// HandleThermalFigure renders the Boltzmann figure and streams it as SVG.
func (h *Handler) HandleThermalFigure(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Thermal()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute thermal curves")
		http.Error(w, "Failed to compute thermal curves", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	if err := charts.WriteThermalSVG(result, w); err != nil {
		// Headers are already out, so all we can do is log.
		h.log.Error().Err(err).Msg("Failed to render thermal figure")
	}
}

// envelope wraps response data with metadata
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

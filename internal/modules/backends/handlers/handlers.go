// Package handlers provides HTTP handlers for backend status operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/modules/backends"
	"github.com/rs/zerolog"
)

// Handler handles backend status HTTP requests
type Handler struct {
	service *backends.Service
	log     zerolog.Logger
}

// NewHandler creates a new backends handler
func NewHandler(service *backends.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "backends").Logger(),
	}
}

// HandleListBackends handles GET /api/backends
func (h *Handler) HandleListBackends(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.All(r.Context())
	if err != nil {
		h.serviceError(w, err, "Failed to list backends")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"backends": all,
		"count":    len(all),
	}))
}

// HandleOverview handles GET /api/backends/overview
func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.serviceError(w, err, "Failed to build overview")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"backends": overview,
		"count":    len(overview),
	}))
}

// HandleOverviewReport handles GET /api/backends/overview/report.
// Returns the fixed-width status table as plain text.
func (h *Handler) HandleOverviewReport(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		h.serviceError(w, err, "Failed to build overview")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(backends.FormatReport(overview))); err != nil {
		h.log.Error().Err(err).Msg("Failed to write report")
	}
}

// HandleBackendStatus handles GET /api/backends/{name}/status
func (h *Handler) HandleBackendStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status, err := h.service.Status(r.Context(), name)
	if err != nil {
		h.serviceError(w, err, "Failed to fetch backend status")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(status))
}

// HandleBackendCalibration handles GET /api/backends/{name}/calibration
func (h *Handler) HandleBackendCalibration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	cal, err := h.service.Calibration(r.Context(), name)
	if err != nil {
		h.serviceError(w, err, "Failed to fetch calibration")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(cal))
}

// HandleBackendHistory handles GET /api/backends/{name}/history
func (h *Handler) HandleBackendHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := queryInt(r, "limit", 100)

	history, err := h.service.History(r.Context(), name, limit)
	if err != nil {
		h.log.Error().Err(err).Str("backend", name).Msg("Failed to fetch history")
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"backend":   name,
		"snapshots": history,
		"count":     len(history),
	}))
}

// HandleBackendTrend handles GET /api/backends/{name}/trend
func (h *Handler) HandleBackendTrend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := queryInt(r, "limit", 100)

	trend, err := h.service.QueueTrend(name, limit)
	if err != nil {
		var insufficient backends.ErrInsufficientHistory
		if errors.As(err, &insufficient) {
			http.Error(w, insufficient.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("backend", name).Msg("Failed to compute trend")
		http.Error(w, "Failed to compute trend", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(trend))
}

// serviceError maps upstream API failures onto gateway status codes.
func (h *Handler) serviceError(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)

	var apiErr *qx.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		http.Error(w, "Backend not found", http.StatusNotFound)
		return
	}

	var authErr *qx.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, "Upstream authentication failed", http.StatusBadGateway)
		return
	}

	http.Error(w, msg, http.StatusBadGateway)
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

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

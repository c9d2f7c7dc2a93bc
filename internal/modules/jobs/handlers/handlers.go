// Package handlers provides HTTP handlers for the jobs module.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/modules/jobs"
	"github.com/rs/zerolog"
)

// Handler handles job-related HTTP requests
type Handler struct {
	service *jobs.Service
	log     zerolog.Logger
}

// NewHandler creates a new jobs handler
func NewHandler(service *jobs.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "jobs").Logger(),
	}
}

// submitRequest is the body of a job submission
type submitRequest struct {
	QASM    string `json:"qasm"`
	Backend string `json:"backend"`
	Shots   int    `json:"shots"`
}

// HandleSubmit submits a QASM program to a backend.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.QASM == "" || req.Backend == "" {
		http.Error(w, "qasm and backend are required", http.StatusBadRequest)
		return
	}

	rec, err := h.service.Submit(r.Context(), req.QASM, req.Backend, req.Shots)
	if err != nil {
		h.submitError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.encode(w, envelope(rec))
}

// HandleSubmitEcho submits the two-gate echo circuit to a backend.
func (h *Handler) HandleSubmitEcho(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Backend == "" {
		http.Error(w, "backend is required", http.StatusBadRequest)
		return
	}

	rec, err := h.service.SubmitEcho(r.Context(), req.Backend, req.Shots)
	if err != nil {
		h.submitError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.encode(w, envelope(rec))
}

// HandleList returns tracked job records, most recent first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	records, err := h.service.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, envelope(map[string]interface{}{
		"jobs":  records,
		"count": len(records),
	}))
}

// HandleGet returns one job record by its local reference.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	rec, err := h.service.Get(ref)
	if err != nil {
		h.log.Error().Err(err).Str("ref", ref).Msg("Failed to get job")
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, envelope(rec))
}

// HandleRefresh polls the remote service for a job's current state.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	rec, err := h.service.Refresh(r.Context(), ref)
	if err != nil {
		h.refreshError(w, ref, err)
		return
	}

	h.writeJSON(w, envelope(rec))
}

// submitError maps submission failures to HTTP statuses
func (h *Handler) submitError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Job submission failed")

	var authErr *qx.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, "Upstream authentication failed", http.StatusBadGateway)
		return
	}
	var apiErr *qx.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		http.Error(w, "Submission rejected by the service", http.StatusUnprocessableEntity)
		return
	}
	http.Error(w, "Job submission failed", http.StatusBadGateway)
}

// refreshError maps refresh failures to HTTP statuses
func (h *Handler) refreshError(w http.ResponseWriter, ref string, err error) {
	if errors.Is(err, jobs.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	h.log.Error().Err(err).Str("ref", ref).Msg("Failed to refresh job")
	http.Error(w, "Failed to refresh job", http.StatusBadGateway)
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

// queryInt reads an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	h.encode(w, data)
}

func (h *Handler) encode(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

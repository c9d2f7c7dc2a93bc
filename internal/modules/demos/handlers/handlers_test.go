package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qulab/qulab/internal/modules/demos"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(demos.NewService(log), log)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router
}

func get(t *testing.T, router *chi.Mux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestHandleUnitarity(t *testing.T) {
	router := setupRouter(t)

	rec := get(t, router, "/api/demos/unitarity")
	require.Equal(t, http.StatusOK, rec.Code)

	var result demos.UnitarityResult
	decodeData(t, rec, &result)
	assert.True(t, result.Identity)
	require.Len(t, result.MMH, 2)
	assert.InDelta(t, 1.0, result.MMH[0][0], 1e-9)
	assert.InDelta(t, 0.0, result.MMH[0][1], 1e-9)
}

func TestHandleEcho(t *testing.T) {
	router := setupRouter(t)

	rec := get(t, router, "/api/demos/echo")
	require.Equal(t, http.StatusOK, rec.Code)

	var result demos.EchoResult
	decodeData(t, rec, &result)
	assert.True(t, result.Recovered)
	assert.Contains(t, result.QASM, "OPENQASM")
	require.Len(t, result.Amplitudes, 2)
	assert.InDelta(t, 1.0, result.Amplitudes[0].Re, 1e-9)
}

func TestHandleMixedStates(t *testing.T) {
	router := setupRouter(t)

	rec := get(t, router, "/api/demos/mixed-states")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		States []demos.MixedStateResult `json:"states"`
		Count  int                      `json:"count"`
	}
	decodeData(t, rec, &result)
	assert.Equal(t, 4, result.Count)
	require.Len(t, result.States, 4)
	assert.Equal(t, 1.0, result.States[0].Visibility)
	for _, state := range result.States {
		assert.InDelta(t, 1.0, state.Trace, 1e-9)
	}
}

func TestHandleThermal(t *testing.T) {
	router := setupRouter(t)

	rec := get(t, router, "/api/demos/thermal")
	require.Equal(t, http.StatusOK, rec.Code)

	var result demos.ThermalResult
	decodeData(t, rec, &result)
	require.Len(t, result.Curves, 3)
	for _, curve := range result.Curves {
		assert.InDelta(t, 1.0, curve.Sum, 1e-9)
		assert.Len(t, curve.Weights, len(result.Energies))
	}
}

func TestHandleReportIsPlainText(t *testing.T) {
	router := setupRouter(t)

	rec := get(t, router, "/api/demos/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Unitarity")
}

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

	"github.com/qulab/qulab/internal/modules/charts"
	"github.com/qulab/qulab/internal/modules/demos"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	service := charts.NewService(demos.NewService(log), t.TempDir(), log)
	handler := NewHandler(service, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r
}

func TestHandleThermalSeries(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/charts/thermal", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Count  int `json:"count"`
			Series []struct {
				Label       string  `json:"label"`
				Temperature float64 `json:"temperature"`
				Points      []struct {
					X float64 `json:"x"`
					Y float64 `json:"y"`
				} `json:"points"`
			} `json:"series"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Data.Count)
	require.Len(t, resp.Data.Series, 3)
	assert.Equal(t, "T1", resp.Data.Series[0].Label)
	assert.Equal(t, 0.5, resp.Data.Series[0].Temperature)
	assert.Len(t, resp.Data.Series[0].Points, 21)
}

func TestHandleThermalFigure(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/charts/thermal/figure", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

// Package charts provides services for turning demonstration results into
// figure data and rendered figures.
package charts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qulab/qulab/internal/modules/demos"
	"github.com/rs/zerolog"
)

// ThermalFigureName is the file name of the rendered Boltzmann figure.
const ThermalFigureName = "thermal.svg"

// Point represents a single point on a chart
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is one labeled curve of a figure. The label keys the figure
// legend by temperature index (T1, T2, ...).
type Series struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
	Points      []Point `json:"points"`
}

// Service provides chart data operations
type Service struct {
	demos      *demos.Service
	figuresDir string
	log        zerolog.Logger
}

// NewService creates a new charts service. Rendered figures are written
// under figuresDir.
func NewService(demos *demos.Service, figuresDir string, log zerolog.Logger) *Service {
	return &Service{
		demos:      demos,
		figuresDir: figuresDir,
		log:        log.With().Str("service", "charts").Logger(),
	}
}

// ThermalSeries returns the Boltzmann curves as plot-ready series, one
// per temperature, in temperature-index order.
func (s *Service) ThermalSeries() ([]Series, error) {
	result, err := s.demos.Thermal()
	if err != nil {
		return nil, fmt.Errorf("failed to compute thermal curves: %w", err)
	}
	return seriesFromThermal(result), nil
}

// Thermal returns the raw thermal result that backs the figure.
func (s *Service) Thermal() (demos.ThermalResult, error) {
	return s.demos.Thermal()
}

// RenderThermalFigure renders the Boltzmann figure to the figures
// directory and returns the written path.
func (s *Service) RenderThermalFigure() (string, error) {
	result, err := s.demos.Thermal()
	if err != nil {
		return "", fmt.Errorf("failed to compute thermal curves: %w", err)
	}

	if err := os.MkdirAll(s.figuresDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create figures dir: %w", err)
	}

	path := filepath.Join(s.figuresDir, ThermalFigureName)
	if err := RenderThermal(result, path); err != nil {
		return "", err
	}

	s.log.Info().Str("path", path).Msg("Rendered thermal figure")
	return path, nil
}

// FigurePath returns the path the thermal figure is rendered to.
func (s *Service) FigurePath() string {
	return filepath.Join(s.figuresDir, ThermalFigureName)
}

// seriesFromThermal converts a thermal result into chart series
func seriesFromThermal(result demos.ThermalResult) []Series {
	series := make([]Series, 0, len(result.Curves))
	for _, curve := range result.Curves {
		points := make([]Point, len(curve.Weights))
		for i, w := range curve.Weights {
			points[i] = Point{X: result.Energies[i], Y: w}
		}
		series = append(series, Series{
			Label:       fmt.Sprintf("T%d", curve.Index),
			Temperature: curve.Temperature,
			Points:      points,
		})
	}
	return series
}

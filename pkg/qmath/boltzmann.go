// Package qmath provides closed-form quantum-state and thermal-statistics
// calculations used by the concept demonstrations.
package qmath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BoltzmannWeights computes the Gibbs distribution exp(-E/T) over the given
// energy grid, normalized to sum to 1.
// Formula: p_i = exp(-E_i/T) / Σ_j exp(-E_j/T)
func BoltzmannWeights(energies []float64, temperature float64) ([]float64, error) {
	if len(energies) == 0 {
		return nil, fmt.Errorf("energy grid is empty")
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("temperature must be positive, got %v", temperature)
	}

	weights := make([]float64, len(energies))
	for i, e := range energies {
		weights[i] = math.Exp(-e / temperature)
	}

	sum := floats.Sum(weights)
	if sum <= 0 || math.IsInf(sum, 1) {
		return nil, fmt.Errorf("weights are not normalizable at T=%v", temperature)
	}
	floats.Scale(1/sum, weights)

	return weights, nil
}

// EnergyGrid returns n evenly spaced energy levels over [min, max].
// Returns nil for fewer than two points.
func EnergyGrid(min, max float64, n int) []float64 {
	if n < 2 {
		return nil
	}
	return floats.Span(make([]float64, n), min, max)
}

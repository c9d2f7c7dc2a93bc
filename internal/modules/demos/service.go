// Package demos runs the quantum concept demonstrations: small
// closed-form computations whose outputs a reader can verify by eye.
// Every input is fixed; the demonstrations take no parameters.
package demos

import (
	"fmt"

	"github.com/qulab/qulab/internal/simulator"
	"github.com/qulab/qulab/pkg/qmath"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Parameters of the demonstrations. Fixed, not configurable.
var (
	// Visibilities swept by the mixed-state construction.
	Visibilities = []float64{1.0, 0.8, 0.6, 0.2}

	// Temperatures of the thermal distributions, keyed T1..T3 in figures.
	Temperatures = []float64{0.5, 1.0, 2.0}
)

// Energy grid of the thermal demonstration.
const (
	EnergyMin    = 0.0
	EnergyMax    = 2.0
	EnergyPoints = 21
)

// Service runs the demonstrations.
type Service struct {
	log zerolog.Logger
}

// NewService creates a demos service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "demos").Logger(),
	}
}

// Unitarity computes M*M^H and M^H*M for the bit-flip operator. Both
// equal the identity exactly; Identity records that check.
func (s *Service) Unitarity() UnitarityResult {
	m := qmath.BitFlip()
	mmh, mhm := qmath.UnitarityProducts(m)

	return UnitarityResult{
		MMH:      realParts(mmh),
		MHM:      realParts(mhm),
		Identity: qmath.IsIdentity(mmh, 0) && qmath.IsIdentity(mhm, 0),
	}
}

// NormPreservation measures the norm of |0> before and after applying
// the bit-flip operator. Both are exactly 1.
func (s *Service) NormPreservation() (NormResult, error) {
	basis, err := qmath.BasisState(2, 0)
	if err != nil {
		return NormResult{}, err
	}

	before := qmath.Norm(basis)

	flipped, err := qmath.Apply(qmath.BitFlip(), basis)
	if err != nil {
		return NormResult{}, err
	}
	after := qmath.Norm(flipped)

	return NormResult{
		Before:    before,
		After:     after,
		Preserved: before == after,
	}, nil
}

// Echo builds the two-gate circuit (X twice on one qubit), runs it on the
// local exact simulator and reports the final statevector. Two bit flips
// compose to the identity, so the state returns to |0> exactly.
func (s *Service) Echo() (EchoResult, error) {
	circuit := simulator.EchoCircuit()

	qasm, err := simulator.QASM(circuit)
	if err != nil {
		return EchoResult{}, fmt.Errorf("failed to export echo circuit: %w", err)
	}

	state, err := simulator.Run(circuit)
	if err != nil {
		return EchoResult{}, fmt.Errorf("failed to run echo circuit: %w", err)
	}

	amps := state.Amplitudes()
	result := EchoResult{
		QASM:       qasm,
		Amplitudes: make([]ComplexNumber, len(amps)),
		Recovered:  amps[0] == 1 && amps[1] == 0,
	}
	for i, a := range amps {
		result.Amplitudes[i] = ComplexNumber{Re: real(a), Im: imag(a)}
	}
	return result, nil
}

// MixedStates sweeps the visibility parameter over the Bell state,
// computing v*|psi><psi| + (1-v)*I/4 at each step.
func (s *Service) MixedStates() ([]MixedStateResult, error) {
	psi := qmath.BellPhiPlus()

	results := make([]MixedStateResult, 0, len(Visibilities))
	for _, v := range Visibilities {
		rho, err := qmath.MixedState(psi, v)
		if err != nil {
			return nil, fmt.Errorf("failed to build mixed state at v=%g: %w", v, err)
		}

		results = append(results, MixedStateResult{
			Visibility: v,
			Matrix:     realParts(rho),
			Trace:      real(qmath.Trace(rho)),
			Purity:     qmath.Purity(rho),
			Hermitian:  qmath.IsHermitian(rho, 0),
		})
	}
	return results, nil
}

// Thermal computes the normalized Boltzmann distribution over the fixed
// energy grid for each demo temperature.
func (s *Service) Thermal() (ThermalResult, error) {
	energies := qmath.EnergyGrid(EnergyMin, EnergyMax, EnergyPoints)

	result := ThermalResult{Energies: energies}
	for i, temp := range Temperatures {
		weights, err := qmath.BoltzmannWeights(energies, temp)
		if err != nil {
			return ThermalResult{}, fmt.Errorf("failed to compute weights at T=%g: %w", temp, err)
		}

		sum := 0.0
		for _, w := range weights {
			sum += w
		}

		result.Curves = append(result.Curves, ThermalCurve{
			Index:       i + 1,
			Temperature: temp,
			Weights:     weights,
			Sum:         sum,
		})
	}
	return result, nil
}

// All runs every demonstration and aggregates the results.
func (s *Service) All() (*Report, error) {
	report := &Report{Unitarity: s.Unitarity()}

	var err error
	if report.Norm, err = s.NormPreservation(); err != nil {
		return nil, err
	}
	if report.Echo, err = s.Echo(); err != nil {
		return nil, err
	}
	if report.MixedStates, err = s.MixedStates(); err != nil {
		return nil, err
	}
	if report.Thermal, err = s.Thermal(); err != nil {
		return nil, err
	}

	s.log.Debug().Msg("Ran all demonstrations")
	return report, nil
}

// realParts extracts the real part of every entry. Used for matrices
// whose imaginary parts are identically zero.
func realParts(m mat.CMatrix) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			out[i][j] = real(m.At(i, j))
		}
	}
	return out
}

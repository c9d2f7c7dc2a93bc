package simulator

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/qulab/qulab/pkg/qmath"
)

// State holds the amplitudes of an n-qubit register. Basis state i assigns
// qubit q the bit (i>>q)&1.
type State struct {
	amplitudes []complex128
	qubits     int
}

// NewState creates the |0...0> state over the given number of qubits.
func NewState(qubits int) (*State, error) {
	if qubits < 1 || qubits > MaxQubits {
		return nil, fmt.Errorf("qubit count must be between 1 and %d, got %d", MaxQubits, qubits)
	}
	amps := make([]complex128, 1<<qubits)
	amps[0] = 1
	return &State{amplitudes: amps, qubits: qubits}, nil
}

// Qubits returns the register width.
func (s *State) Qubits() int {
	return s.qubits
}

// Amplitudes returns a copy of the state vector.
func (s *State) Amplitudes() []complex128 {
	out := make([]complex128, len(s.amplitudes))
	copy(out, s.amplitudes)
	return out
}

// Probabilities returns |amplitude|^2 for every basis state.
func (s *State) Probabilities() []float64 {
	probs := make([]float64, len(s.amplitudes))
	for i, a := range s.amplitudes {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

// Norm returns the Euclidean norm of the state vector; unitary gates keep
// it at 1.
func (s *State) Norm() float64 {
	return qmath.Norm(s.amplitudes)
}

// ApplyGate applies a single gate to the state.
func (s *State) ApplyGate(g Gate) error {
	switch g.Name {
	case GateX:
		s.applyX(g.Target)
	case GateY:
		s.applyY(g.Target)
	case GateZ:
		s.applyPhase(g.Target, -1)
	case GateH:
		s.applyH(g.Target)
	case GateS:
		s.applyPhase(g.Target, 1i)
	case GateSdg:
		s.applyPhase(g.Target, -1i)
	case GateT:
		s.applyPhase(g.Target, cmplx.Exp(complex(0, math.Pi/4)))
	case GateTdg:
		s.applyPhase(g.Target, cmplx.Exp(complex(0, -math.Pi/4)))
	case GateCX:
		s.applyCX(g.Control, g.Target)
	default:
		return fmt.Errorf("unknown gate %q", g.Name)
	}
	return nil
}

// applyX swaps amplitude pairs that differ in the target bit.
func (s *State) applyX(q int) {
	bit := 1 << q
	for i := range s.amplitudes {
		if i&bit == 0 {
			j := i | bit
			s.amplitudes[i], s.amplitudes[j] = s.amplitudes[j], s.amplitudes[i]
		}
	}
}

func (s *State) applyY(q int) {
	bit := 1 << q
	for i := range s.amplitudes {
		if i&bit == 0 {
			j := i | bit
			s.amplitudes[i], s.amplitudes[j] = -1i*s.amplitudes[j], 1i*s.amplitudes[i]
		}
	}
}

// applyPhase multiplies amplitudes with the target bit set by factor.
// Z, S, Sdg, T and Tdg are all phase gates.
func (s *State) applyPhase(q int, factor complex128) {
	bit := 1 << q
	for i := range s.amplitudes {
		if i&bit != 0 {
			s.amplitudes[i] *= factor
		}
	}
}

func (s *State) applyH(q int) {
	factor := complex(1/math.Sqrt2, 0)
	bit := 1 << q
	next := make([]complex128, len(s.amplitudes))
	for i := range s.amplitudes {
		if i&bit == 0 {
			j := i | bit
			next[i] = factor * (s.amplitudes[i] + s.amplitudes[j])
			next[j] = factor * (s.amplitudes[i] - s.amplitudes[j])
		}
	}
	s.amplitudes = next
}

func (s *State) applyCX(control, target int) {
	cBit := 1 << control
	tBit := 1 << target
	for i := range s.amplitudes {
		if i&cBit != 0 && i&tBit == 0 {
			j := i | tBit
			s.amplitudes[i], s.amplitudes[j] = s.amplitudes[j], s.amplitudes[i]
		}
	}
}

// Run validates the circuit and executes it on a fresh |0...0> state.
func Run(c *Circuit) (*State, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit: %w", err)
	}

	state, err := NewState(c.Qubits())
	if err != nil {
		return nil, err
	}
	for _, g := range c.gates {
		if err := state.ApplyGate(g); err != nil {
			return nil, err
		}
	}
	return state, nil
}

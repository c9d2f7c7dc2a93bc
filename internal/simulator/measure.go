package simulator

import (
	"fmt"
	"math/rand"
)

// Measure samples the state in the computational basis for the given number
// of shots and returns counts keyed by bitstring (qubit n-1 leftmost).
// The state is not collapsed; each shot draws from the same distribution.
func Measure(s *State, shots int, rng *rand.Rand) (map[string]int, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	probs := s.Probabilities()
	counts := make(map[string]int)

	for shot := 0; shot < shots; shot++ {
		r := rng.Float64()
		cumulative := 0.0
		outcome := len(probs) - 1
		for i, p := range probs {
			cumulative += p
			if r < cumulative {
				outcome = i
				break
			}
		}
		counts[Bitstring(outcome, s.Qubits())]++
	}

	return counts, nil
}

// Bitstring formats a basis-state index as a bitstring of the given width.
func Bitstring(index, qubits int) string {
	return fmt.Sprintf("%0*b", qubits, index)
}

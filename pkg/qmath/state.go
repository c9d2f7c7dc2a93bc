package qmath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Norm computes the Euclidean norm of a complex state vector.
func Norm(vec []complex128) float64 {
	var sum float64
	for _, a := range vec {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}
	return math.Sqrt(sum)
}

// Apply multiplies a state vector by the given matrix.
func Apply(m *mat.CDense, vec []complex128) ([]complex128, error) {
	r, c := m.Dims()
	if c != len(vec) {
		return nil, fmt.Errorf("dimension mismatch: matrix is %dx%d, vector has %d entries", r, c, len(vec))
	}

	out := make([]complex128, r)
	for i := 0; i < r; i++ {
		var sum complex128
		for j := 0; j < c; j++ {
			sum += m.At(i, j) * vec[j]
		}
		out[i] = sum
	}
	return out, nil
}

// BasisState returns the n-dimensional computational basis vector |k>.
func BasisState(n, k int) ([]complex128, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", n)
	}
	if k < 0 || k >= n {
		return nil, fmt.Errorf("basis index %d out of range [0,%d)", k, n)
	}
	vec := make([]complex128, n)
	vec[k] = 1
	return vec, nil
}

// BellPhiPlus returns the two-qubit entangled state (|00> + |11>)/sqrt(2).
func BellPhiPlus() []complex128 {
	a := complex(1/math.Sqrt2, 0)
	return []complex128{a, 0, 0, a}
}

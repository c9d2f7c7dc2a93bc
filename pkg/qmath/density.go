package qmath

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// OuterProduct computes the density matrix |psi><psi| of a pure state.
func OuterProduct(psi []complex128) *mat.CDense {
	n := len(psi)
	rho := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rho.Set(i, j, psi[i]*cmplx.Conj(psi[j]))
		}
	}
	return rho
}

// MixedState interpolates between a pure state and the maximally mixed state:
//
//	rho = v * |psi><psi| + (1-v) * I/n
//
// where v is the visibility in [0,1]. At v=1 the result is the pure density
// matrix with no mixing term added; at v=0 it is exactly I/n.
func MixedState(psi []complex128, visibility float64) (*mat.CDense, error) {
	if len(psi) == 0 {
		return nil, fmt.Errorf("state vector is empty")
	}
	if visibility < 0 || visibility > 1 {
		return nil, fmt.Errorf("visibility must be in [0,1], got %v", visibility)
	}

	n := len(psi)
	v := complex(visibility, 0)
	mixed := complex((1-visibility)/float64(n), 0)

	pure := OuterProduct(psi)
	rho := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			val := v * pure.At(i, j)
			if i == j {
				val += mixed
			}
			rho.Set(i, j, val)
		}
	}
	return rho, nil
}

// Trace returns the trace of a square matrix.
func Trace(m mat.CMatrix) complex128 {
	r, c := m.Dims()
	if r != c {
		return 0
	}
	var sum complex128
	for i := 0; i < r; i++ {
		sum += m.At(i, i)
	}
	return sum
}

// Purity returns Tr(rho^2), 1 for pure states and 1/n for the maximally
// mixed state.
func Purity(rho *mat.CDense) float64 {
	var sq mat.CDense
	sq.Mul(rho, rho)
	return real(Trace(&sq))
}

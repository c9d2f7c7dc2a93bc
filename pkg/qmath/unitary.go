package qmath

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// BitFlip returns the 2x2 bit-flip operator (the Pauli X gate).
// Entries are exact integers, so unitarity products carry no rounding error.
func BitFlip() *mat.CDense {
	return mat.NewCDense(2, 2, []complex128{
		0, 1,
		1, 0,
	})
}

// UnitarityProducts computes M*M^H and M^H*M for the given matrix.
// For a unitary M both products equal the identity.
func UnitarityProducts(m *mat.CDense) (*mat.CDense, *mat.CDense) {
	var mmh, mhm mat.CDense
	mmh.Mul(m, m.H())
	mhm.Mul(m.H(), m)
	return &mmh, &mhm
}

// IsIdentity reports whether m equals the identity matrix within tol.
// tol of zero demands exact entries.
func IsIdentity(m mat.CMatrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			want := complex(0, 0)
			if i == j {
				want = complex(1, 0)
			}
			if cmplx.Abs(m.At(i, j)-want) > tol {
				return false
			}
		}
	}
	return true
}

// IsHermitian reports whether m equals its own conjugate transpose within tol.
func IsHermitian(m mat.CMatrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			if cmplx.Abs(m.At(i, j)-cmplx.Conj(m.At(j, i))) > tol {
				return false
			}
		}
	}
	return true
}

// IsUnitary reports whether both unitarity products of m equal the identity
// within tol.
func IsUnitary(m *mat.CDense, tol float64) bool {
	mmh, mhm := UnitarityProducts(m)
	return IsIdentity(mmh, tol) && IsIdentity(mhm, tol)
}

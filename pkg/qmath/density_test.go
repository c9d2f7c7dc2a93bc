package qmath

import (
	"math"
	"testing"
)

func TestMixedStatePureLimit(t *testing.T) {
	psi := BellPhiPlus()

	rho, err := MixedState(psi, 1.0)
	if err != nil {
		t.Fatalf("MixedState() error = %v", err)
	}

	// v=1 adds no mixing term, so the result is the outer product exactly
	pure := OuterProduct(psi)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if rho.At(i, j) != pure.At(i, j) {
				t.Errorf("MixedState(psi, 1.0)[%d,%d] = %v, want %v", i, j, rho.At(i, j), pure.At(i, j))
			}
		}
	}
}

func TestMixedStateMaximallyMixedLimit(t *testing.T) {
	psi := BellPhiPlus()

	rho, err := MixedState(psi, 0.0)
	if err != nil {
		t.Fatalf("MixedState() error = %v", err)
	}

	// v=0 discards the pure state entirely, leaving exactly I/4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := complex128(0)
			if i == j {
				want = 0.25
			}
			if rho.At(i, j) != want {
				t.Errorf("MixedState(psi, 0.0)[%d,%d] = %v, want %v", i, j, rho.At(i, j), want)
			}
		}
	}
}

func TestMixedStateTraceAndHermiticity(t *testing.T) {
	psi := BellPhiPlus()

	tests := []struct {
		name       string
		visibility float64
	}{
		{"Full visibility", 1.0},
		{"High visibility", 0.8},
		{"Medium visibility", 0.6},
		{"Low visibility", 0.2},
		{"Zero visibility", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, err := MixedState(psi, tt.visibility)
			if err != nil {
				t.Fatalf("MixedState() error = %v", err)
			}

			tr := Trace(rho)
			if math.Abs(real(tr)-1.0) > 1e-12 || math.Abs(imag(tr)) > 1e-12 {
				t.Errorf("Trace() = %v, want 1.0", tr)
			}
			if !IsHermitian(rho, 1e-12) {
				t.Error("MixedState() result is not Hermitian")
			}
		})
	}
}

func TestMixedStateValidation(t *testing.T) {
	psi := BellPhiPlus()

	tests := []struct {
		name       string
		psi        []complex128
		visibility float64
	}{
		{"Negative visibility", psi, -0.1},
		{"Visibility above one", psi, 1.1},
		{"Empty state", nil, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MixedState(tt.psi, tt.visibility); err == nil {
				t.Error("MixedState() expected error, got nil")
			}
		})
	}
}

func TestPurity(t *testing.T) {
	psi := BellPhiPlus()

	// Purity of the v-mixed state: Tr(rho^2) = v^2 + (1-v^2)/4
	tests := []struct {
		name       string
		visibility float64
		want       float64
	}{
		{"Pure state", 1.0, 1.0},
		{"Maximally mixed", 0.0, 0.25},
		{"Partial mixing", 0.6, 0.6*0.6 + (1-0.6*0.6)/4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rho, err := MixedState(psi, tt.visibility)
			if err != nil {
				t.Fatalf("MixedState() error = %v", err)
			}
			if got := Purity(rho); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Purity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOuterProduct(t *testing.T) {
	zero := []complex128{1, 0}
	rho := OuterProduct(zero)

	want := [2][2]complex128{{1, 0}, {0, 0}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if rho.At(i, j) != want[i][j] {
				t.Errorf("OuterProduct()[%d,%d] = %v, want %v", i, j, rho.At(i, j), want[i][j])
			}
		}
	}
}

package demos

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// FormatReport renders a demonstration report as plain text, one section
// per demonstration.
func FormatReport(r *Report) string {
	var b strings.Builder

	b.WriteString("== Unitarity of the bit-flip operator ==\n\n")
	b.WriteString("M * M^H =\n")
	b.WriteString(formatMatrix(r.Unitarity.MMH))
	b.WriteString("\n\nM^H * M =\n")
	b.WriteString(formatMatrix(r.Unitarity.MHM))
	fmt.Fprintf(&b, "\n\nboth equal the identity: %v\n", r.Unitarity.Identity)

	b.WriteString("\n== Norm preservation ==\n\n")
	fmt.Fprintf(&b, "norm of |0> before M: %g\n", r.Norm.Before)
	fmt.Fprintf(&b, "norm of M|0>:         %g\n", r.Norm.After)
	fmt.Fprintf(&b, "preserved: %v\n", r.Norm.Preserved)

	b.WriteString("\n== Two-gate echo circuit on the local simulator ==\n\n")
	b.WriteString(r.Echo.QASM)
	b.WriteString("\nfinal statevector: [")
	for i, a := range r.Echo.Amplitudes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatComplex(a))
	}
	b.WriteString("]\n")
	fmt.Fprintf(&b, "recovered |0>: %v\n", r.Echo.Recovered)

	b.WriteString("\n== Mixed states of the Bell state ==\n")
	for _, ms := range r.MixedStates {
		fmt.Fprintf(&b, "\nvisibility v = %.1f  (trace %.4f, purity %.4f)\n", ms.Visibility, ms.Trace, ms.Purity)
		b.WriteString(formatMatrix(ms.Matrix))
		b.WriteString("\n")
	}

	b.WriteString("\n== Thermal distributions ==\n\n")
	for _, curve := range r.Thermal.Curves {
		peak := 0.0
		for _, w := range curve.Weights {
			if w > peak {
				peak = w
			}
		}
		fmt.Fprintf(&b, "T%d (T = %.2f): %d points, sum = %.6f, peak weight = %.4f\n",
			curve.Index, curve.Temperature, len(curve.Weights), curve.Sum, peak)
	}

	return b.String()
}

// formatMatrix pretty-prints a real matrix with gonum's formatter.
func formatMatrix(rows [][]float64) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "[]"
	}

	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for _, row := range rows {
		data = append(data, row...)
	}

	d := mat.NewDense(r, c, data)
	return fmt.Sprintf("%v", mat.Formatted(d, mat.Prefix(""), mat.Squeeze()))
}

func formatComplex(a ComplexNumber) string {
	if a.Im == 0 {
		return fmt.Sprintf("%g", a.Re)
	}
	return fmt.Sprintf("%g%+gi", a.Re, a.Im)
}

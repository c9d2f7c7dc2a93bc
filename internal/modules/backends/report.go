package backends

import (
	"fmt"
	"strings"
)

// Column widths of the status table. A name longer than its column widens
// that row instead of being truncated.
const (
	nameWidth    = 24
	qubitsWidth  = 6
	pendingWidth = 12
)

// FormatReport renders overviews as a fixed-width table with a two-row
// header, one line per backend, in the order given:
//
//	BACKEND                   QUBITS  PENDING JOBS
//	------------------------  ------  ------------
//	ibmqx5                        16            27
//	simulator                     32             0
func FormatReport(overviews []Overview) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-*s  %*s  %*s\n", nameWidth, "BACKEND", qubitsWidth, "QUBITS", pendingWidth, "PENDING JOBS")
	fmt.Fprintf(&b, "%s  %s  %s\n",
		strings.Repeat("-", nameWidth),
		strings.Repeat("-", qubitsWidth),
		strings.Repeat("-", pendingWidth))

	for _, o := range overviews {
		fmt.Fprintf(&b, "%-*s  %*d  %*d\n", nameWidth, o.Name, qubitsWidth, o.Qubits, pendingWidth, o.PendingJobs)
	}

	return b.String()
}

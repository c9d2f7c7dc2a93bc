package simulator

import (
	"fmt"
	"strings"
)

// QASM exports a circuit as OpenQASM 2.0 source with a full measurement of
// every qubit, suitable for submission to a remote backend.
func QASM(c *Circuit) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("invalid circuit: %w", err)
	}

	var b strings.Builder
	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", c.Qubits())
	fmt.Fprintf(&b, "creg c[%d];\n\n", c.Qubits())

	for _, g := range c.gates {
		if g.Name == GateCX {
			fmt.Fprintf(&b, "cx q[%d],q[%d];\n", g.Control, g.Target)
			continue
		}
		fmt.Fprintf(&b, "%s q[%d];\n", g.Name, g.Target)
	}

	b.WriteString("\n")
	for q := 0; q < c.Qubits(); q++ {
		fmt.Fprintf(&b, "measure q[%d] -> c[%d];\n", q, q)
	}

	return b.String(), nil
}

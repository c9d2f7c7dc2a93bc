// Package simulator provides an exact state-vector simulator for small
// quantum circuits, executed entirely in-process.
package simulator

import (
	"fmt"
)

// MaxQubits caps circuit width; 2^16 amplitudes is plenty for demonstrations.
const MaxQubits = 16

// Gate names understood by the simulator and the QASM exporter.
const (
	GateX   = "x"
	GateY   = "y"
	GateZ   = "z"
	GateH   = "h"
	GateS   = "s"
	GateSdg = "sdg"
	GateT   = "t"
	GateTdg = "tdg"
	GateCX  = "cx"
)

// Gate is a single operation in a circuit. Control is -1 for single-qubit
// gates.
type Gate struct {
	Name    string `json:"name"`
	Target  int    `json:"target"`
	Control int    `json:"control"`
}

// Circuit is an ordered list of gates over a fixed number of qubits.
type Circuit struct {
	qubits int
	gates  []Gate
}

// NewCircuit creates an empty circuit over the given number of qubits.
func NewCircuit(qubits int) (*Circuit, error) {
	if qubits < 1 || qubits > MaxQubits {
		return nil, fmt.Errorf("qubit count must be between 1 and %d, got %d", MaxQubits, qubits)
	}
	return &Circuit{qubits: qubits}, nil
}

// Qubits returns the circuit width.
func (c *Circuit) Qubits() int {
	return c.qubits
}

// Gates returns the gate sequence in application order.
func (c *Circuit) Gates() []Gate {
	out := make([]Gate, len(c.gates))
	copy(out, c.gates)
	return out
}

// X appends a bit-flip gate on the target qubit.
func (c *Circuit) X(target int) *Circuit { return c.append1(GateX, target) }

// Y appends a Pauli Y gate on the target qubit.
func (c *Circuit) Y(target int) *Circuit { return c.append1(GateY, target) }

// Z appends a phase-flip gate on the target qubit.
func (c *Circuit) Z(target int) *Circuit { return c.append1(GateZ, target) }

// H appends a Hadamard gate on the target qubit.
func (c *Circuit) H(target int) *Circuit { return c.append1(GateH, target) }

// S appends the S phase gate on the target qubit.
func (c *Circuit) S(target int) *Circuit { return c.append1(GateS, target) }

// Sdg appends the inverse S gate on the target qubit.
func (c *Circuit) Sdg(target int) *Circuit { return c.append1(GateSdg, target) }

// T appends the T phase gate on the target qubit.
func (c *Circuit) T(target int) *Circuit { return c.append1(GateT, target) }

// Tdg appends the inverse T gate on the target qubit.
func (c *Circuit) Tdg(target int) *Circuit { return c.append1(GateTdg, target) }

// CX appends a controlled-NOT gate.
func (c *Circuit) CX(control, target int) *Circuit {
	c.gates = append(c.gates, Gate{Name: GateCX, Target: target, Control: control})
	return c
}

func (c *Circuit) append1(name string, target int) *Circuit {
	c.gates = append(c.gates, Gate{Name: name, Target: target, Control: -1})
	return c
}

// Validate checks every gate for a known name and in-range qubit indices.
func (c *Circuit) Validate() error {
	for i, g := range c.gates {
		switch g.Name {
		case GateX, GateY, GateZ, GateH, GateS, GateSdg, GateT, GateTdg:
			if g.Target < 0 || g.Target >= c.qubits {
				return fmt.Errorf("gate %d (%s): target %d out of range [0,%d)", i, g.Name, g.Target, c.qubits)
			}
		case GateCX:
			if g.Target < 0 || g.Target >= c.qubits {
				return fmt.Errorf("gate %d (cx): target %d out of range [0,%d)", i, g.Target, c.qubits)
			}
			if g.Control < 0 || g.Control >= c.qubits {
				return fmt.Errorf("gate %d (cx): control %d out of range [0,%d)", i, g.Control, c.qubits)
			}
			if g.Control == g.Target {
				return fmt.Errorf("gate %d (cx): control and target are both %d", i, g.Target)
			}
		default:
			return fmt.Errorf("gate %d: unknown gate %q", i, g.Name)
		}
	}
	return nil
}

// EchoCircuit builds the one-qubit demonstration circuit that applies the
// bit flip twice, composing to the identity.
func EchoCircuit() *Circuit {
	c, _ := NewCircuit(1)
	return c.X(0).X(0)
}

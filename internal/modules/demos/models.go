package demos

// ComplexNumber is a JSON-friendly complex value.
type ComplexNumber struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// UnitarityResult holds both unitarity products of the bit-flip operator.
// The products are real-valued for this operator, so only real parts are
// carried.
type UnitarityResult struct {
	MMH      [][]float64 `json:"m_mh"`
	MHM      [][]float64 `json:"mh_m"`
	Identity bool        `json:"identity"`
}

// NormResult holds the vector norm before and after applying the bit-flip
// operator to a basis state.
type NormResult struct {
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Preserved bool    `json:"preserved"`
}

// EchoResult holds the outcome of running the two-gate echo circuit on
// the local simulator.
type EchoResult struct {
	QASM       string          `json:"qasm"`
	Amplitudes []ComplexNumber `json:"amplitudes"`
	Recovered  bool            `json:"recovered"`
}

// MixedStateResult holds one visibility step of the mixed-state sweep.
// The density matrix of the swept state is real-valued, so only real
// parts are carried.
type MixedStateResult struct {
	Visibility float64     `json:"visibility"`
	Matrix     [][]float64 `json:"matrix"`
	Trace      float64     `json:"trace"`
	Purity     float64     `json:"purity"`
	Hermitian  bool        `json:"hermitian"`
}

// ThermalCurve is one normalized Boltzmann distribution over the energy
// grid. Index is 1-based and keys the figure legend.
type ThermalCurve struct {
	Index       int       `json:"index"`
	Temperature float64   `json:"temperature"`
	Weights     []float64 `json:"weights"`
	Sum         float64   `json:"sum"`
}

// ThermalResult holds the energy grid and one curve per temperature.
type ThermalResult struct {
	Energies []float64      `json:"energies"`
	Curves   []ThermalCurve `json:"curves"`
}

// Report aggregates every demonstration in one payload.
type Report struct {
	Unitarity   UnitarityResult    `json:"unitarity"`
	Norm        NormResult         `json:"norm_preservation"`
	Echo        EchoResult         `json:"echo"`
	MixedStates []MixedStateResult `json:"mixed_states"`
	Thermal     ThermalResult      `json:"thermal"`
}

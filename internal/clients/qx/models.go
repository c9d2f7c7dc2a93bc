package qx

// StatusOperational is the wire value the API reports for a backend that
// is online and accepting jobs.
const StatusOperational = "on"

// Backend describes a quantum device or simulator known to the service.
type Backend struct {
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Description  string  `json:"description,omitempty"`
	Simulator    bool    `json:"simulator"`
	Qubits       int64   `json:"nQubits"`
	CouplingMap  [][]int `json:"couplingMap,omitempty"`
	Version      string  `json:"version,omitempty"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	OnlineDate   string  `json:"onlineDate,omitempty"`
	ChipName     string  `json:"chipName,omitempty"`
	BasisGates   string  `json:"basisGates,omitempty"`
	URL          string  `json:"url,omitempty"`
}

// Operational reports whether the backend is online and accepting jobs.
func (b Backend) Operational() bool {
	return b.Status == StatusOperational
}

// QueueStatus is the live queue state of one backend.
type QueueStatus struct {
	Backend     string `json:"backend,omitempty"`
	State       bool   `json:"state"`
	Busy        bool   `json:"busy"`
	PendingJobs int64  `json:"lengthQueue"`
}

// GateError is a dated error rate for one gate.
type GateError struct {
	Date  string  `json:"date,omitempty"`
	Value float64 `json:"value"`
}

// QubitCalibration carries the per-qubit error rates of a calibration run.
type QubitCalibration struct {
	Name         string    `json:"name,omitempty"`
	ReadoutError GateError `json:"readoutError,omitempty"`
	GateError    GateError `json:"gateError,omitempty"`
}

// MultiQubitGate carries the calibration of one multi-qubit gate.
type MultiQubitGate struct {
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type,omitempty"`
	Qubits    []int     `json:"qubits,omitempty"`
	GateError GateError `json:"gateError,omitempty"`
}

// Calibration is the most recent calibration data of a backend.
type Calibration struct {
	LastUpdateDate  string             `json:"lastUpdateDate,omitempty"`
	Qubits          []QubitCalibration `json:"qubits,omitempty"`
	MultiQubitGates []MultiQubitGate   `json:"multiQubitGates,omitempty"`
}

// Job status wire values. Error states carry an ERROR_ prefix with a
// reason suffix, so they are matched by prefix rather than listed here.
const (
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusCancelled = "CANCELLED"
)

// JobQASM is one experiment inside a job, with its result once executed.
type JobQASM struct {
	QASM        string      `json:"qasm"`
	Status      string      `json:"status,omitempty"`
	ExecutionID string      `json:"executionId,omitempty"`
	Result      *QASMResult `json:"result,omitempty"`
}

// QASMResult is the measurement outcome of one executed experiment.
type QASMResult struct {
	Date string     `json:"date,omitempty"`
	Data ResultData `json:"data"`
}

// ResultData carries the measurement histogram of an experiment. Keys are
// bitstrings, values are how many shots produced them.
type ResultData struct {
	Counts map[string]int64 `json:"counts,omitempty"`
	Time   float64          `json:"time,omitempty"`
}

// jobRequest is the body of a job submission.
type jobRequest struct {
	QASMs     []JobQASM      `json:"qasms"`
	Shots     int            `json:"shots"`
	Backend   jobBackendName `json:"backend"`
	MaxCredit int            `json:"maxCredits,omitempty"`
}

type jobBackendName struct {
	Name string `json:"name"`
}

// Job is the server-side state of a submitted job.
type Job struct {
	ID      string    `json:"id"`
	Backend Backend   `json:"backend,omitempty"`
	Shots   int       `json:"shots,omitempty"`
	QASMs   []JobQASM `json:"qasms,omitempty"`
	Status  string    `json:"status,omitempty"`
	Created string    `json:"creationDate,omitempty"`
}

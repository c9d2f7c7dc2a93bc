package backends

import "time"

// Overview is the per-backend line of the status report: the backend
// itself plus the live depth of its job queue.
type Overview struct {
	Name        string `json:"name"`
	Qubits      int64  `json:"qubits"`
	PendingJobs int64  `json:"pending_jobs"`
	Simulator   bool   `json:"simulator"`
	Description string `json:"description,omitempty"`
}

// Snapshot is one persisted observation of a backend's queue.
type Snapshot struct {
	Backend     string    `json:"backend"`
	Operational bool      `json:"operational"`
	Qubits      int64     `json:"qubits"`
	PendingJobs int64     `json:"pending_jobs"`
	TakenAt     time.Time `json:"taken_at"`
}

// QueueTrend summarizes recent queue depth movement for one backend.
type QueueTrend struct {
	Backend   string  `json:"backend"`
	Samples   int     `json:"samples"`
	Latest    float64 `json:"latest"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	SMA       float64 `json:"sma"`
	EMA       float64 `json:"ema"`
	Direction string  `json:"direction"`
}

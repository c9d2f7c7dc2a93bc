package jobs

import (
	"errors"
	"strings"
	"time"

	"github.com/qulab/qulab/internal/clients/qx"
)

// ErrNotFound is returned when a reference resolves to no record.
var ErrNotFound = errors.New("job record not found")

// StatusCreating marks a record created locally but not yet acknowledged
// by the remote service.
const StatusCreating = "CREATING"

// StatusSubmitFailed marks a record whose submission never produced a
// remote job.
const StatusSubmitFailed = "ERROR_CREATING_JOB"

// Record is a locally tracked experiment submission. Ref is the stable
// local reference; RemoteID stays empty until the service acknowledges
// the job.
type Record struct {
	Ref       string           `json:"ref"`
	RemoteID  string           `json:"remote_id,omitempty"`
	Backend   string           `json:"backend"`
	QASM      string           `json:"qasm"`
	Shots     int              `json:"shots"`
	Status    string           `json:"status"`
	Counts    map[string]int64 `json:"counts,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Terminal reports whether the record has reached a final status.
func (r Record) Terminal() bool {
	return IsTerminal(r.Status)
}

// IsTerminal reports whether a status string is final. Error statuses
// arrive with an ERROR_ prefix and a varying suffix, so they are matched
// by prefix.
func IsTerminal(status string) bool {
	return status == qx.JobStatusCompleted ||
		status == qx.JobStatusCancelled ||
		strings.HasPrefix(status, "ERROR")
}

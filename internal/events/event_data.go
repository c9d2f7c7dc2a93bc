package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BackendStatusChangedData contains data for BackendStatusChanged events
type BackendStatusChangedData struct {
	Backend         string `json:"backend"`
	Operational     bool   `json:"operational"`
	PendingJobs     int64  `json:"pending_jobs"`
	PreviousPending int64  `json:"previous_pending"`
}

// EventType returns the event type for BackendStatusChangedData
func (d *BackendStatusChangedData) EventType() EventType {
	return BackendStatusChanged
}

// SnapshotStoredData contains data for SnapshotStored events
type SnapshotStoredData struct {
	Backends    int   `json:"backends"`
	Operational int   `json:"operational"`
	ElapsedMs   int64 `json:"elapsed_ms"`
}

// EventType returns the event type for SnapshotStoredData
func (d *SnapshotStoredData) EventType() EventType {
	return SnapshotStored
}

// JobStatusChangedData contains data for JobStatusChanged events
type JobStatusChangedData struct {
	Ref      string `json:"ref"`
	RemoteID string `json:"remote_id"`
	Backend  string `json:"backend"`
	Status   string `json:"status"`
}

// EventType returns the event type for JobStatusChangedData
func (d *JobStatusChangedData) EventType() EventType {
	return JobStatusChanged
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

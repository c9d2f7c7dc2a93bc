package backends

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// HistoryStore persists backend queue snapshots so trends can be computed
// over time. It owns its own SQLite database, separate from the job and
// cache databases.
type HistoryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

const historySchema = `
CREATE TABLE IF NOT EXISTS backend_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    backend TEXT NOT NULL,
    operational INTEGER NOT NULL DEFAULT 1,
    qubits INTEGER NOT NULL,
    pending_jobs INTEGER NOT NULL,
    taken_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_backend_time
    ON backend_snapshots(backend, taken_at DESC);
`

// NewHistoryStore opens (creating if needed) the snapshot database at path.
func NewHistoryStore(path string, log zerolog.Logger) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}, nil
}

// Close closes the underlying database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// RecordOverview stores one snapshot row per overview, all sharing a
// single timestamp, in a single transaction.
func (h *HistoryStore) RecordOverview(overviews []Overview) error {
	if len(overviews) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be no-op if Commit succeeds

	stmt, err := tx.Prepare(`
		INSERT INTO backend_snapshots (backend, operational, qubits, pending_jobs, taken_at)
		VALUES (?, 1, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	takenAt := time.Now().Unix()
	for _, o := range overviews {
		if _, err := stmt.Exec(o.Name, o.Qubits, o.PendingJobs, takenAt); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().Int("backends", len(overviews)).Msg("Recorded snapshots")
	return nil
}

// History returns stored snapshots for a backend, newest first.
func (h *HistoryStore) History(backend string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.Query(`
		SELECT backend, operational, qubits, pending_jobs, taken_at
		FROM backend_snapshots
		WHERE backend = ?
		ORDER BY taken_at DESC, id DESC
		LIMIT ?
	`, backend, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var s Snapshot
		var operational int
		var takenAt int64

		if err := rows.Scan(&s.Backend, &operational, &s.Qubits, &s.PendingJobs, &takenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.Operational = operational != 0
		s.TakenAt = time.Unix(takenAt, 0).UTC()

		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Latest returns the most recent snapshot for a backend, or nil when none
// has been recorded (not an error).
func (h *HistoryStore) Latest(backend string) (*Snapshot, error) {
	var s Snapshot
	var operational int
	var takenAt int64

	err := h.db.QueryRow(`
		SELECT backend, operational, qubits, pending_jobs, taken_at
		FROM backend_snapshots
		WHERE backend = ?
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`, backend).Scan(&s.Backend, &operational, &s.Qubits, &s.PendingJobs, &takenAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	s.Operational = operational != 0
	s.TakenAt = time.Unix(takenAt, 0).UTC()
	return &s, nil
}

// PendingSeries returns the pending-jobs counts for a backend ordered
// oldest to newest, at most limit values, for trend analysis.
func (h *HistoryStore) PendingSeries(backend string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.Query(`
		SELECT pending_jobs FROM (
			SELECT id, pending_jobs
			FROM backend_snapshots
			WHERE backend = ?
			ORDER BY taken_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY id ASC
	`, backend, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending series: %w", err)
	}
	defer rows.Close()

	var series []float64
	for rows.Next() {
		var pending float64
		if err := rows.Scan(&pending); err != nil {
			return nil, fmt.Errorf("failed to scan pending count: %w", err)
		}
		series = append(series, pending)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending series: %w", err)
	}
	return series, nil
}

// PruneBefore removes snapshots taken before the cutoff. Used by the
// maintenance job to keep the history database bounded.
func (h *HistoryStore) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := h.db.Exec("DELETE FROM backend_snapshots WHERE taken_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		h.log.Info().
			Int64("rows_deleted", rowsAffected).
			Time("older_than", cutoff).
			Msg("Pruned old snapshots")
	}
	return rowsAffected, nil
}

// BackupTo writes a consistent copy of the snapshot database to path
// using VACUUM INTO, safe to run while the store stays live.
func (h *HistoryStore) BackupTo(path string) error {
	if _, err := h.db.Exec("VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("failed to back up history database: %w", err)
	}
	return nil
}

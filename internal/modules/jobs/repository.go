package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qulab/qulab/internal/database"
	"github.com/rs/zerolog"
)

// Repository handles job record database operations
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new job repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "jobs").Logger(),
	}
}

// Create inserts a new job record
func (r *Repository) Create(rec Record) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO jobs (ref, remote_id, backend, qasm, shots, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Ref, rec.RemoteID, rec.Backend, rec.QASM, rec.Shots, rec.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	r.log.Info().
		Str("ref", rec.Ref).
		Str("backend", rec.Backend).
		Int("shots", rec.Shots).
		Msg("Job record created")

	return nil
}

// Get retrieves a job record by its local reference. Returns nil without
// error when no record exists.
func (r *Repository) Get(ref string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT ref, remote_id, backend, qasm, shots, status, counts_json, created_at, updated_at
		FROM jobs WHERE ref = ?
	`, ref)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return &rec, nil
}

// GetByRemoteID retrieves a job record by the provider's job ID. Returns
// nil without error when no record matches.
func (r *Repository) GetByRemoteID(remoteID string) (*Record, error) {
	if remoteID == "" {
		return nil, nil
	}

	row := r.db.QueryRow(`
		SELECT ref, remote_id, backend, qasm, shots, status, counts_json, created_at, updated_at
		FROM jobs WHERE remote_id = ?
	`, remoteID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job record by remote ID: %w", err)
	}
	return &rec, nil
}

// List retrieves job records, most recent first
func (r *Repository) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT ref, remote_id, backend, qasm, shots, status, counts_json, created_at, updated_at
		FROM jobs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job records: %w", err)
	}
	return records, nil
}

// ListNeedingRefresh returns records that still want a remote poll:
// submitted jobs that have not reached a final status, plus completed
// jobs whose measurement counts have not landed yet.
func (r *Repository) ListNeedingRefresh(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT ref, remote_id, backend, qasm, shots, status, counts_json, created_at, updated_at
		FROM jobs
		WHERE remote_id != ''
		  AND (
			(status NOT IN ('COMPLETED', 'CANCELLED') AND status NOT LIKE 'ERROR%')
			OR (status = 'COMPLETED' AND counts_json IS NULL)
		  )
		ORDER BY created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs needing refresh: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job records: %w", err)
	}
	return records, nil
}

// SetSubmitted records the provider's job ID and initial status once a
// submission is acknowledged.
func (r *Repository) SetSubmitted(ref, remoteID, status string) error {
	result, err := r.db.Exec(`
		UPDATE jobs SET remote_id = ?, status = ?, updated_at = ? WHERE ref = ?
	`, remoteID, status, time.Now().Unix(), ref)
	if err != nil {
		return fmt.Errorf("failed to mark job submitted: %w", err)
	}
	return requireUpdated(result, ref)
}

// UpdateStatus sets the remote status of a record
func (r *Repository) UpdateStatus(ref, status string) error {
	result, err := r.db.Exec(`
		UPDATE jobs SET status = ?, updated_at = ? WHERE ref = ?
	`, status, time.Now().Unix(), ref)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return requireUpdated(result, ref)
}

// UpdateResult sets the final status and measurement counts of a record
func (r *Repository) UpdateResult(ref, status string, counts map[string]int64) error {
	var countsJSON sql.NullString
	if counts != nil {
		data, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("failed to encode counts: %w", err)
		}
		countsJSON = sql.NullString{String: string(data), Valid: true}
	}

	result, err := r.db.Exec(`
		UPDATE jobs SET status = ?, counts_json = ?, updated_at = ? WHERE ref = ?
	`, status, countsJSON, time.Now().Unix(), ref)
	if err != nil {
		return fmt.Errorf("failed to update job result: %w", err)
	}
	return requireUpdated(result, ref)
}

// Count returns the number of stored job records
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM jobs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count job records: %w", err)
	}
	return count, nil
}

// Cap deletes the oldest records beyond keep, returning how many were
// removed. Used by the maintenance job to bound the jobs database.
func (r *Repository) Cap(keep int) (int64, error) {
	if keep <= 0 {
		return 0, fmt.Errorf("keep must be positive")
	}

	result, err := r.db.Exec(`
		DELETE FROM jobs WHERE ref NOT IN (
			SELECT ref FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cap job records: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		r.log.Info().
			Int64("rows_deleted", rowsAffected).
			Int("kept", keep).
			Msg("Capped job records")
	}
	return rowsAffected, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var countsJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.Ref,
		&rec.RemoteID,
		&rec.Backend,
		&rec.QASM,
		&rec.Shots,
		&rec.Status,
		&countsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return rec, err
	}

	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &rec.Counts); err != nil {
			return rec, fmt.Errorf("failed to decode counts: %w", err)
		}
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return rec, nil
}

func requireUpdated(result sql.Result, ref string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return nil
}

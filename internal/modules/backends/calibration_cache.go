package backends

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/database"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CalibrationTTL is how long a cached calibration counts as fresh.
// Backends recalibrate a few times per day, so half an hour is plenty.
const CalibrationTTL = 30 * time.Minute

// CalibrationCache stores calibration payloads as msgpack blobs in the
// cache database, keyed by backend name.
type CalibrationCache struct {
	db  *database.DB
	log zerolog.Logger
}

// NewCalibrationCache creates a calibration cache on the cache database.
func NewCalibrationCache(db *database.DB, log zerolog.Logger) *CalibrationCache {
	return &CalibrationCache{
		db:  db,
		log: log.With().Str("component", "calibration_cache").Logger(),
	}
}

// Put stores a calibration for a backend, replacing any previous entry.
func (c *CalibrationCache) Put(backend string, cal *qx.Calibration) error {
	payload, err := msgpack.Marshal(cal)
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO calibration_cache (backend, payload, fetched_at)
		VALUES (?, ?, ?)
	`, backend, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store calibration: %w", err)
	}

	c.log.Debug().Str("backend", backend).Int("bytes", len(payload)).Msg("Cached calibration")
	return nil
}

// GetFresh returns the cached calibration for a backend if it is younger
// than CalibrationTTL.
func (c *CalibrationCache) GetFresh(backend string) (*qx.Calibration, bool) {
	cal, fetchedAt, ok := c.load(backend)
	if !ok {
		return nil, false
	}
	if time.Since(fetchedAt) > CalibrationTTL {
		return nil, false
	}
	return cal, true
}

// Get returns the cached calibration regardless of age. Used as a
// fallback when the API is unreachable.
func (c *CalibrationCache) Get(backend string) (*qx.Calibration, bool) {
	cal, _, ok := c.load(backend)
	return cal, ok
}

func (c *CalibrationCache) load(backend string) (*qx.Calibration, time.Time, bool) {
	var payload []byte
	var fetchedAt int64

	err := c.db.QueryRow(`
		SELECT payload, fetched_at FROM calibration_cache WHERE backend = ?
	`, backend).Scan(&payload, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, time.Time{}, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("backend", backend).Msg("Failed to read calibration cache")
		return nil, time.Time{}, false
	}

	var cal qx.Calibration
	if err := msgpack.Unmarshal(payload, &cal); err != nil {
		c.log.Warn().Err(err).Str("backend", backend).Msg("Failed to decode cached calibration")
		return nil, time.Time{}, false
	}

	return &cal, time.Unix(fetchedAt, 0), true
}

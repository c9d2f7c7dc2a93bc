package database

// schemas maps database names to their full schema. Statements are idempotent
// so Migrate can run on every startup.
var schemas = map[string]string{
	"jobs":  jobsSchema,
	"cache": cacheSchema,
}

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    ref         TEXT PRIMARY KEY,
    remote_id   TEXT NOT NULL DEFAULT '',
    backend     TEXT NOT NULL,
    qasm        TEXT NOT NULL,
    shots       INTEGER NOT NULL,
    status      TEXT NOT NULL DEFAULT 'CREATING',
    counts_json TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_remote_id ON jobs(remote_id);
`

const cacheSchema = `
CREATE TABLE IF NOT EXISTS calibration_cache (
    backend    TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    fetched_at INTEGER NOT NULL
);
`

package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every QULAB_ variable so ambient shell state cannot
// leak into a test. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QULAB_QX_TOKEN", "QULAB_QX_URL", "QULAB_HTTP_TIMEOUT_SECONDS",
		"QULAB_STREAM_ENABLED", "QULAB_DATA_DIR", "QULAB_PORT",
		"QULAB_LOG_LEVEL", "QULAB_DEV_MODE", "QULAB_POLL_SCHEDULE",
		"QULAB_RETENTION_DAYS", "QULAB_S3_ENDPOINT", "QULAB_S3_REGION",
		"QULAB_S3_BUCKET", "QULAB_S3_ACCESS_KEY", "QULAB_S3_SECRET_KEY",
		"QULAB_BACKUP_RETENTION",
	} {
		t.Setenv(key, "")
	}
}

// TestLoadDefaults tests that an empty environment yields the documented
// defaults.
func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.QXToken)
	assert.Equal(t, "https://quantumexperience.ng.bluemix.net/api", cfg.QXURL)
	assert.Equal(t, 30, cfg.HTTPTimeoutSecs)
	assert.True(t, cfg.StreamEnabled)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "0 */5 * * * *", cfg.PollSchedule)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, "auto", cfg.S3Region)
	assert.Equal(t, 14, cfg.BackupRetention)
	assert.False(t, cfg.BackupEnabled())
}

// TestLoadOverrides tests that set variables win over defaults.
func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QULAB_QX_TOKEN", "secret")
	t.Setenv("QULAB_PORT", "9090")
	t.Setenv("QULAB_DEV_MODE", "true")
	t.Setenv("QULAB_STREAM_ENABLED", "false")
	t.Setenv("QULAB_RETENTION_DAYS", "7")
	t.Setenv("QULAB_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.QXToken)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.False(t, cfg.StreamEnabled)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, "debug", cfg.LogLevel)
}

// TestLoadResolvesDataDir tests that a relative data dir becomes absolute.
func TestLoadResolvesDataDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("QULAB_DATA_DIR", "qulab-data")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "qulab-data", filepath.Base(cfg.DataDir))
}

// TestLoadMalformedNumbersFallBack tests that unparseable numeric and
// boolean values keep their defaults instead of failing the load.
func TestLoadMalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("QULAB_PORT", "not-a-port")
	t.Setenv("QULAB_DEV_MODE", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.DevMode)
}

// TestValidateRanges tests the numeric range checks.
func TestValidateRanges(t *testing.T) {
	base := func() *Config {
		return &Config{
			DataDir:         "/tmp/qulab",
			Port:            8080,
			HTTPTimeoutSecs: 30,
			RetentionDays:   90,
			BackupRetention: 14,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantVar string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "QULAB_PORT"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "QULAB_PORT"},
		{"timeout zero", func(c *Config) { c.HTTPTimeoutSecs = 0 }, "QULAB_HTTP_TIMEOUT_SECONDS"},
		{"retention zero", func(c *Config) { c.RetentionDays = 0 }, "QULAB_RETENTION_DAYS"},
		{"backup retention negative", func(c *Config) { c.BackupRetention = -1 }, "QULAB_BACKUP_RETENTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantVar),
				"error %q should mention %s", err, tt.wantVar)
		})
	}

	require.NoError(t, base().Validate())
}

// TestS3AllOrNone tests that a partial S3 block is rejected.
func TestS3AllOrNone(t *testing.T) {
	cfg := &Config{
		DataDir:         "/tmp/qulab",
		Port:            8080,
		HTTPTimeoutSecs: 30,
		RetentionDays:   90,
		BackupRetention: 14,
		S3Endpoint:      "https://s3.example.com",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "together")

	cfg.S3Bucket = "qulab-backups"
	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.BackupEnabled())
}

// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Quantum Experience API
	QXToken         string
	QXURL           string
	HTTPTimeoutSecs int
	StreamEnabled   bool

	// Service
	DataDir       string // Base directory for databases and rendered figures (always absolute)
	Port          int
	LogLevel      string
	DevMode       bool
	PollSchedule  string // Cron spec (with seconds) for the backend status poll
	RetentionDays int    // Snapshot retention window

	// S3-compatible backup (optional, all-or-none)
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	BackupRetention int // Number of remote backups to keep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		QXToken:         getEnv("QULAB_QX_TOKEN", ""),
		QXURL:           getEnv("QULAB_QX_URL", "https://quantumexperience.ng.bluemix.net/api"),
		HTTPTimeoutSecs: getEnvAsInt("QULAB_HTTP_TIMEOUT_SECONDS", 30),
		StreamEnabled:   getEnvAsBool("QULAB_STREAM_ENABLED", true),
		DataDir:         getEnv("QULAB_DATA_DIR", "./data"),
		Port:            getEnvAsInt("QULAB_PORT", 8080),
		LogLevel:        getEnv("QULAB_LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("QULAB_DEV_MODE", false),
		PollSchedule:    getEnv("QULAB_POLL_SCHEDULE", "0 */5 * * * *"),
		RetentionDays:   getEnvAsInt("QULAB_RETENTION_DAYS", 90),
		S3Endpoint:      getEnv("QULAB_S3_ENDPOINT", ""),
		S3Region:        getEnv("QULAB_S3_REGION", "auto"),
		S3Bucket:        getEnv("QULAB_S3_BUCKET", ""),
		S3AccessKey:     getEnv("QULAB_S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("QULAB_S3_SECRET_KEY", ""),
		BackupRetention: getEnvAsInt("QULAB_BACKUP_RETENTION", 14),
	}

	// DataDir must be absolute so scheduler jobs and backups agree on paths
	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.DataDir = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("QULAB_DATA_DIR is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("QULAB_PORT must be between 1 and 65535")
	}
	if c.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("QULAB_HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("QULAB_RETENTION_DAYS must be positive")
	}
	if c.BackupRetention <= 0 {
		return fmt.Errorf("QULAB_BACKUP_RETENTION must be positive")
	}

	// Note: QX token optional; local demos work without one.

	return c.validateS3()
}

// BackupEnabled reports whether the S3 backup block is configured
func (c *Config) BackupEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// validateS3 enforces the all-or-none rule for the S3 settings
func (c *Config) validateS3() error {
	set := 0
	for _, v := range []string{c.S3Endpoint, c.S3Bucket, c.S3AccessKey, c.S3SecretKey} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 4 {
		return fmt.Errorf("S3 backup requires QULAB_S3_ENDPOINT, QULAB_S3_BUCKET, QULAB_S3_ACCESS_KEY and QULAB_S3_SECRET_KEY together")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

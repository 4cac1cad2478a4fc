// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server identity.
	ServerName string

	// Workspace settings.
	WorkspaceRoot   string // Base directory for relative IDF paths and file_utils.
	SampleFilesPath string // Optional directory of example models, listed by file_utils.
	HistoryPath     string // SQLite batch-history database path; empty disables.

	// Tool-surface configuration document (config.yaml). Resolved once
	// at startup; env flags are the fallback.
	SurfaceConfigPath string

	// Execution settings.
	PersistTimeout time.Duration // Bound on the final document write of an apply batch.

	// Optional HTTP transport; empty means stdio only.
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	workspace := envStr("EPMOD_WORKSPACE_ROOT", ".")

	cfg := Config{
		ServerName:        envStr("EPMOD_SERVER_NAME", "epmod"),
		WorkspaceRoot:     workspace,
		SampleFilesPath:   envStr("EPMOD_SAMPLE_FILES_PATH", ""),
		HistoryPath:       envStr("EPMOD_HISTORY_PATH", filepath.Join(workspace, "epmod-history.db")),
		SurfaceConfigPath: envStr("EPMOD_CONFIG_PATH", filepath.Join(workspace, "config.yaml")),
		PersistTimeout:    envDuration("EPMOD_PERSIST_TIMEOUT", 30*time.Second),
		HTTPAddr:          envStr("EPMOD_HTTP_ADDR", ""),
		ReadTimeout:       envDuration("EPMOD_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDuration("EPMOD_WRITE_TIMEOUT", 30*time.Second),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", "epmod"),
		LogLevel:          envStr("EPMOD_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("config: EPMOD_WORKSPACE_ROOT must not be empty")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("config: EPMOD_PERSIST_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

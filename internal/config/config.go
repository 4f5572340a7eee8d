// Package config loads the client configuration from a TOML file with
// sensible defaults and a few environment overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backend names the remote gateway implementation.
type Backend string

const (
	BackendBigQuery Backend = "bigquery"
	BackendPostgres Backend = "postgres"
	// BackendNone disables remote sync; the client runs on the local
	// snapshot alone.
	BackendNone Backend = "none"
)

// Config is the full client configuration.
type Config struct {
	Backend      Backend          `toml:"backend"`
	SnapshotPath string           `toml:"snapshot_path"`
	BigQuery     BigQueryConfig   `toml:"bigquery"`
	Postgres     PostgresConfig   `toml:"postgres"`
	Backup       BackupConfig     `toml:"backup"`
	Classifier   ClassifierConfig `toml:"classifier"`
}

// BigQueryConfig selects the project and dataset holding the account tables.
type BigQueryConfig struct {
	Project string `toml:"project"`
	Dataset string `toml:"dataset"`
}

// PostgresConfig carries the connection string.
type PostgresConfig struct {
	URL string `toml:"url"`
}

// BackupConfig names the GCS bucket for JSON exports.
type BackupConfig struct {
	Bucket string `toml:"bucket"`
}

// ClassifierConfig selects the Gemini model for category suggestions.
type ClassifierConfig struct {
	Model string `toml:"model"`
}

// DefaultConfig returns the local-only defaults used when no file exists.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Backend:      BackendNone,
		SnapshotPath: filepath.Join(home, ".grana", "snapshot.db"),
		BigQuery: BigQueryConfig{
			Dataset: "grana",
		},
	}
}

// Load reads the TOML file at path, falling back to defaults when the file is
// absent. Environment variables override file values: DATABASE_URL for the
// Postgres URL, GRANA_SNAPSHOT_PATH for the snapshot location and
// GRANA_BACKEND for the backend selection.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config.Load: parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config.Load: %w", err)
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("GRANA_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("GRANA_BACKEND"); v != "" {
		cfg.Backend = Backend(v)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendNone:
	case BackendBigQuery:
		if c.BigQuery.Project == "" {
			return fmt.Errorf("backend %q requires bigquery.project", c.Backend)
		}
		if c.BigQuery.Dataset == "" {
			return fmt.Errorf("backend %q requires bigquery.dataset", c.Backend)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("backend %q requires postgres.url or DATABASE_URL", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path must not be empty")
	}
	return nil
}

// Package config provides configuration loading and validation for the progress service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by StoreConfig.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Defaults for ProgressConfig.
const (
	DefaultMinQuestions = 10
	DefaultMinAccuracy  = 0.75
	DefaultTxTimeout    = 5 * time.Second
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 25 * time.Millisecond
	DefaultSQLitePath   = "progress.db"
)

// ProgressConfig holds the escalation thresholds and transaction limits.
type ProgressConfig struct {
	MinQuestions int           // Answers per domain required before escalation
	MinAccuracy  float64       // Per-domain accuracy required for escalation (0.0-1.0)
	TxTimeout    time.Duration // Bound on one update including retries
	MaxAttempts  int           // Transaction attempts before reporting contention
	RetryBackoff time.Duration // Base delay between attempts
}

// NewProgressConfig creates a progress configuration from environment variables.
// It reads PROGRESS_MIN_QUESTIONS, PROGRESS_MIN_ACCURACY, PROGRESS_TX_TIMEOUT,
// PROGRESS_MAX_ATTEMPTS and PROGRESS_RETRY_BACKOFF, all optional.
func NewProgressConfig() (*ProgressConfig, error) {
	minQuestions, err := envInt("PROGRESS_MIN_QUESTIONS", DefaultMinQuestions)
	if err != nil {
		return nil, err
	}
	minAccuracy, err := envFloat("PROGRESS_MIN_ACCURACY", DefaultMinAccuracy)
	if err != nil {
		return nil, err
	}
	txTimeout, err := envDuration("PROGRESS_TX_TIMEOUT", DefaultTxTimeout)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := envInt("PROGRESS_MAX_ATTEMPTS", DefaultMaxAttempts)
	if err != nil {
		return nil, err
	}
	backoff, err := envDuration("PROGRESS_RETRY_BACKOFF", DefaultRetryBackoff)
	if err != nil {
		return nil, err
	}

	config := &ProgressConfig{
		MinQuestions: minQuestions,
		MinAccuracy:  minAccuracy,
		TxTimeout:    txTimeout,
		MaxAttempts:  maxAttempts,
		RetryBackoff: backoff,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// normalize validates the configuration.
func (c *ProgressConfig) normalize() error {
	if c.MinQuestions < 1 {
		return fmt.Errorf("config error: min questions must be at least 1, got: %d", c.MinQuestions)
	}
	if c.MinAccuracy <= 0 || c.MinAccuracy > 1 {
		return fmt.Errorf("config error: min accuracy must be in (0, 1], got: %v", c.MinAccuracy)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("config error: transaction timeout must be positive, got: %s", c.TxTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("config error: max attempts must be at least 1, got: %d", c.MaxAttempts)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("config error: retry backoff must be non-negative, got: %s", c.RetryBackoff)
	}
	return nil
}

// StoreConfig selects and addresses the progress store backend.
type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// NewStoreConfig creates a store configuration from STORE_DRIVER (default:
// postgres when DATABASE_URL is set, sqlite otherwise), DATABASE_URL and SQLITE_PATH.
func NewStoreConfig() (*StoreConfig, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = DriverSQLite
		if databaseURL != "" {
			driver = DriverPostgres
		}
	}

	config := &StoreConfig{
		Driver:      strings.ToLower(driver),
		DatabaseURL: databaseURL,
		SQLitePath:  getEnvString("SQLITE_PATH", DefaultSQLitePath),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// normalize validates the configuration.
func (c *StoreConfig) normalize() error {
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config error: SQLITE_PATH cannot be empty for the sqlite store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config error: unknown store driver %q (want postgres, sqlite or memory)", c.Driver)
	}
	return nil
}

// FileConfig is an optional JSON file that overrides environment settings.
// All fields are optional; zero values leave the environment value in place.
type FileConfig struct {
	MinQuestions int     `json:"min_questions,omitempty"`
	MinAccuracy  float64 `json:"min_accuracy,omitempty"`
	TxTimeout    string  `json:"tx_timeout,omitempty"`    // Go duration, e.g. "3s"
	MaxAttempts  int     `json:"max_attempts,omitempty"`  // Transaction attempts
	RetryBackoff string  `json:"retry_backoff,omitempty"` // Go duration
	StoreDriver  string  `json:"store_driver,omitempty"`  // postgres, sqlite or memory
	DatabaseURL  string  `json:"database_url,omitempty"`  // PostgreSQL connection URL
	SQLitePath   string  `json:"sqlite_path,omitempty"`   // SQLite database file
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*FileConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Apply overlays the file's non-zero values onto progress and store and
// re-validates both.
func (f *FileConfig) Apply(progress *ProgressConfig, store *StoreConfig) error {
	if f.MinQuestions != 0 {
		progress.MinQuestions = f.MinQuestions
	}
	if f.MinAccuracy != 0 {
		progress.MinAccuracy = f.MinAccuracy
	}
	if f.TxTimeout != "" {
		d, err := time.ParseDuration(f.TxTimeout)
		if err != nil {
			return fmt.Errorf("config error: invalid tx_timeout: %w", err)
		}
		progress.TxTimeout = d
	}
	if f.MaxAttempts != 0 {
		progress.MaxAttempts = f.MaxAttempts
	}
	if f.RetryBackoff != "" {
		d, err := time.ParseDuration(f.RetryBackoff)
		if err != nil {
			return fmt.Errorf("config error: invalid retry_backoff: %w", err)
		}
		progress.RetryBackoff = d
	}
	if f.StoreDriver != "" {
		store.Driver = strings.ToLower(f.StoreDriver)
	}
	if f.DatabaseURL != "" {
		store.DatabaseURL = f.DatabaseURL
	}
	if f.SQLitePath != "" {
		store.SQLitePath = f.SQLitePath
	}

	if err := progress.normalize(); err != nil {
		return err
	}
	return store.normalize()
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return f, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}

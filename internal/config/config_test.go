package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProgressEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROGRESS_MIN_QUESTIONS", "PROGRESS_MIN_ACCURACY", "PROGRESS_TX_TIMEOUT",
		"PROGRESS_MAX_ATTEMPTS", "PROGRESS_RETRY_BACKOFF",
		"STORE_DRIVER", "DATABASE_URL", "SQLITE_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestNewProgressConfig_Defaults(t *testing.T) {
	clearProgressEnv(t)

	cfg, err := NewProgressConfig()
	require.NoError(t, err)
	assert.Equal(t, &ProgressConfig{
		MinQuestions: 10,
		MinAccuracy:  0.75,
		TxTimeout:    5 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 25 * time.Millisecond,
	}, cfg)
}

func TestNewProgressConfig_FromEnv(t *testing.T) {
	clearProgressEnv(t)
	t.Setenv("PROGRESS_MIN_QUESTIONS", "20")
	t.Setenv("PROGRESS_MIN_ACCURACY", "0.8")
	t.Setenv("PROGRESS_TX_TIMEOUT", "2s")
	t.Setenv("PROGRESS_MAX_ATTEMPTS", "5")
	t.Setenv("PROGRESS_RETRY_BACKOFF", "0s")

	cfg, err := NewProgressConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MinQuestions)
	assert.Equal(t, 0.8, cfg.MinAccuracy)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.RetryBackoff)
}

func TestNewProgressConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric questions", "PROGRESS_MIN_QUESTIONS", "ten"},
		{"zero questions", "PROGRESS_MIN_QUESTIONS", "0"},
		{"accuracy above one", "PROGRESS_MIN_ACCURACY", "1.5"},
		{"zero accuracy", "PROGRESS_MIN_ACCURACY", "0"},
		{"bad timeout", "PROGRESS_TX_TIMEOUT", "five"},
		{"negative timeout", "PROGRESS_TX_TIMEOUT", "-1s"},
		{"zero attempts", "PROGRESS_MAX_ATTEMPTS", "0"},
		{"negative backoff", "PROGRESS_RETRY_BACKOFF", "-5ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProgressEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := NewProgressConfig()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewStoreConfig(t *testing.T) {
	t.Run("defaults to sqlite", func(t *testing.T) {
		clearProgressEnv(t)
		cfg, err := NewStoreConfig()
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Driver)
		assert.Equal(t, DefaultSQLitePath, cfg.SQLitePath)
	})

	t.Run("database url selects postgres", func(t *testing.T) {
		clearProgressEnv(t)
		t.Setenv("DATABASE_URL", "postgres://localhost/progress")
		cfg, err := NewStoreConfig()
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.Driver)
	})

	t.Run("explicit memory driver", func(t *testing.T) {
		clearProgressEnv(t)
		t.Setenv("STORE_DRIVER", "MEMORY")
		cfg, err := NewStoreConfig()
		require.NoError(t, err)
		assert.Equal(t, DriverMemory, cfg.Driver)
	})

	t.Run("postgres without url", func(t *testing.T) {
		clearProgressEnv(t)
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := NewStoreConfig()
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		clearProgressEnv(t)
		t.Setenv("STORE_DRIVER", "firestore")
		_, err := NewStoreConfig()
		assert.ErrorContains(t, err, "unknown store driver")
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"min_questions": 5,
		"min_accuracy": 0.9,
		"tx_timeout": "1s",
		"store_driver": "memory"
	}`), 0o644))

	fileCfg, err := LoadConfig(path)
	require.NoError(t, err)

	progress := &ProgressConfig{MinQuestions: 10, MinAccuracy: 0.75, TxTimeout: 5 * time.Second, MaxAttempts: 3}
	store := &StoreConfig{Driver: DriverSQLite, SQLitePath: "x.db"}
	require.NoError(t, fileCfg.Apply(progress, store))

	assert.Equal(t, 5, progress.MinQuestions)
	assert.Equal(t, 0.9, progress.MinAccuracy)
	assert.Equal(t, time.Second, progress.TxTimeout)
	assert.Equal(t, 3, progress.MaxAttempts, "unset fields keep their value")
	assert.Equal(t, DriverMemory, store.Driver)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{not json`), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "failed to parse config JSON")
}

func TestFileConfig_ApplyRejectsInvalid(t *testing.T) {
	progress := &ProgressConfig{MinQuestions: 10, MinAccuracy: 0.75, TxTimeout: time.Second, MaxAttempts: 3}
	store := &StoreConfig{Driver: DriverMemory}

	assert.Error(t, (&FileConfig{TxTimeout: "later"}).Apply(progress, store))
	assert.Error(t, (&FileConfig{MinAccuracy: 2}).Apply(progress, store))
	assert.Error(t, (&FileConfig{StoreDriver: "postgres"}).Apply(progress, store))
}

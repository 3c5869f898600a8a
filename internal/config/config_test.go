package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, int64(10<<20), cfg.HTTP.MaxUploadSize)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 5, cfg.Queue.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.StaleAfter)

	tol, err := cfg.MatchTolerance()
	require.NoError(t, err)
	assert.Equal(t, "0.01", tol.String())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconciler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: memory
queue:
  workers: 2
extraction:
  timeout: 30s
`), 0o644))

	t.Setenv("PORT", "9090")
	t.Setenv("QUEUE_BUFFER", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, 7, cfg.Queue.Buffer)
	assert.Equal(t, 30*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, "9090", cfg.HTTP.Port)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EXTRACTION_TIMEOUT", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory store", func(c *Config) { c.Store.Driver = "memory" }, false},
		{"postgres with url", func(c *Config) { c.Store.DatabaseURL = "postgres://localhost/db" }, false},
		{"postgres without url", func(c *Config) {}, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"zero timeout", func(c *Config) { c.Store.Driver = "memory"; c.Extraction.Timeout = 0 }, true},
		{"no workers", func(c *Config) { c.Store.Driver = "memory"; c.Queue.Workers = 0 }, true},
		{"zero stale_after", func(c *Config) { c.Store.Driver = "memory"; c.Schedule.StaleAfter = 0 }, true},
		{"bad tolerance", func(c *Config) { c.Store.Driver = "memory"; c.Reconcile.Tolerance = "abc" }, true},
		{"negative tolerance", func(c *Config) { c.Store.Driver = "memory"; c.Reconcile.Tolerance = "-0.5" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "memory"
	cfg.GCS.Bucket = "uploads"

	path := filepath.Join(t.TempDir(), "reconciler.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "uploads", got.GCS.Bucket)
	assert.Equal(t, cfg.Extraction.Timeout, got.Extraction.Timeout)
}

func TestLoadOverridesWinOverEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PORT", "9090")

	cfg, err := Load("", func(c *Config) {
		c.Store.Driver = "memory"
		c.HTTP.Port = "7070"
	})
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "7070", cfg.HTTP.Port)
}

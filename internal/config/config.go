package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/finance-reconciler/internal/logger"
)

// Config is the service configuration. Values come from defaults, an optional
// YAML file, a .env file and the process environment, in that order.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Queue      QueueConfig      `yaml:"queue"`
	GCS        GCSConfig        `yaml:"gcs"`
	BigQuery   BigQueryConfig   `yaml:"bigquery"`
	Google     GoogleConfig     `yaml:"google"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Log        logger.Config    `yaml:"log"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Port          string `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // "postgres" or "memory"
	DatabaseURL string `yaml:"database_url"`
}

// GeminiConfig configures the extraction model.
type GeminiConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`
}

// ExtractionConfig bounds oracle calls.
type ExtractionConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// QueueConfig sizes the in-process ingestion queue.
type QueueConfig struct {
	Workers int `yaml:"workers"`
	Buffer  int `yaml:"buffer"`
}

// GCSConfig enables archiving of uploaded files. Empty bucket disables it.
type GCSConfig struct {
	Bucket string `yaml:"bucket"`
}

// BigQueryConfig enables archiving of raw model output. Empty project disables it.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
}

// GoogleConfig holds credentials shared by the Google clients.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

// ScheduleConfig holds the cron specs of the maintenance jobs.
type ScheduleConfig struct {
	Overdue    string        `yaml:"overdue"`
	Stale      string        `yaml:"stale"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// ReconcileConfig tunes match suggestions.
type ReconcileConfig struct {
	Tolerance string `yaml:"tolerance"`
}

// Default returns a Config with local development defaults.
func Default() *Config {
	return &Config{
		HTTP:       HTTPConfig{Port: "8080", MaxUploadSize: 10 << 20},
		Store:      StoreConfig{Driver: "postgres"},
		Gemini:     GeminiConfig{Model: "gemini-2.5-flash"},
		Extraction: ExtractionConfig{Timeout: 2 * time.Minute},
		Queue:      QueueConfig{Workers: 5, Buffer: 100},
		BigQuery:   BigQueryConfig{Dataset: "finance"},
		Schedule: ScheduleConfig{
			Overdue:    "@hourly",
			Stale:      "*/5 * * * *",
			StaleAfter: 10 * time.Minute,
		},
		Reconcile: ReconcileConfig{Tolerance: "0.01"},
		Log:       logger.Config{Level: "info", Format: "console"},
	}
}

// Load builds a Config. path may be empty; a missing .env file is ignored.
// overrides run after the environment is applied, so flags win over both.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Port, "PORT")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.DatabaseURL, "DATABASE_URL")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.GCS.Bucket, "GCS_BUCKET")
	setString(&c.BigQuery.Project, "BIGQUERY_PROJECT")
	setString(&c.BigQuery.Dataset, "BIGQUERY_DATASET")
	setString(&c.Google.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.Schedule.Overdue, "SCHEDULE_OVERDUE")
	setString(&c.Schedule.Stale, "SCHEDULE_STALE")
	setString(&c.Reconcile.Tolerance, "RECONCILE_TOLERANCE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if err := setDuration(&c.Extraction.Timeout, "EXTRACTION_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Schedule.StaleAfter, "STALE_AFTER"); err != nil {
		return err
	}
	if err := setInt(&c.Queue.Workers, "QUEUE_WORKERS"); err != nil {
		return err
	}
	return setInt(&c.Queue.Buffer, "QUEUE_BUFFER")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("config: database_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Extraction.Timeout <= 0 {
		return fmt.Errorf("config: extraction timeout must be positive")
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("config: queue workers must be at least 1")
	}
	if c.Queue.Buffer < 0 {
		return fmt.Errorf("config: queue buffer must not be negative")
	}
	if c.Schedule.StaleAfter <= 0 {
		return fmt.Errorf("config: stale_after must be positive")
	}
	if _, err := c.MatchTolerance(); err != nil {
		return err
	}
	return nil
}

// MatchTolerance parses the reconciliation tolerance as a fraction.
func (c *Config) MatchTolerance() (decimal.Decimal, error) {
	tol, err := decimal.NewFromString(c.Reconcile.Tolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid reconcile tolerance %q: %w", c.Reconcile.Tolerance, err)
	}
	if !tol.IsPositive() {
		return decimal.Zero, fmt.Errorf("config: reconcile tolerance must be positive")
	}
	return tol, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

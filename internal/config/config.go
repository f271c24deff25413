package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobpulse pipeline.
type Config struct {
	PipelineName       string
	DatabasePath       string
	SnapshotDir        string
	SkillsPath         string
	Source             SourceConfig
	Queries            QueryConfig
	Retry              RetryConfig
	StalenessThreshold time.Duration
	SnapshotRetention  time.Duration
	Health             HealthConfig
}

// SourceConfig describes the upstream posting API.
type SourceConfig struct {
	Name                string // source label written to the warehouse
	Country             string // Adzuna country segment, e.g. "us"
	AppID               string // expanded from env var by Load
	AppKey              string // expanded from env var by Load
	BaseURL             string // override for tests; defaults to the public API
	ResultsPerPage      int    // deep-scan page size
	SweepResultsPerPage int    // fresh-sweep page size
	SortBy              string
	Timeout             time.Duration // per-request timeout
}

// QueryConfig holds the keyword × state fetch grid.
type QueryConfig struct {
	Keywords []string
	States   []string
}

// RetryConfig is the single retry policy applied to every pipeline stage.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// HealthConfig tunes the monitoring checks.
type HealthConfig struct {
	MaxRunAge       time.Duration // freshness alert when the last success is older
	VolumeDropRatio float64       // alert when today's rows < ratio * trailing average
	NullStateRatio  float64       // alert when this share of clean rows has no state
}

const defaultAdzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	PipelineName       string          `yaml:"pipeline_name"`
	DatabasePath       string          `yaml:"database_path"`
	SnapshotDir        string          `yaml:"snapshot_dir"`
	SkillsPath         string          `yaml:"skills_path"`
	Source             rawSourceConfig `yaml:"source"`
	Queries            QueryRaw        `yaml:"queries"`
	Retry              rawRetryConfig  `yaml:"retry"`
	StalenessThreshold string          `yaml:"staleness_threshold"`
	SnapshotRetention  string          `yaml:"snapshot_retention"`
	Health             rawHealthConfig `yaml:"health"`
}

type rawSourceConfig struct {
	Name                string `yaml:"name"`
	Country             string `yaml:"country"`
	AppID               string `yaml:"app_id"`
	AppKey              string `yaml:"app_key"`
	BaseURL             string `yaml:"base_url"`
	ResultsPerPage      int    `yaml:"results_per_page"`
	SweepResultsPerPage int    `yaml:"sweep_results_per_page"`
	SortBy              string `yaml:"sort_by"`
	Timeout             string `yaml:"timeout"`
}

// QueryRaw mirrors QueryConfig for YAML.
type QueryRaw struct {
	Keywords []string `yaml:"keywords"`
	States   []string `yaml:"states"`
}

type rawRetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

type rawHealthConfig struct {
	MaxRunAge       string  `yaml:"max_run_age"`
	VolumeDropRatio float64 `yaml:"volume_drop_ratio"`
	NullStateRatio  float64 `yaml:"null_state_ratio"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. A .env file next to the working directory is loaded first
// so that ${ADZUNA_APP_ID}-style references in the YAML expand.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	timeout := 30 * time.Second
	if raw.Source.Timeout != "" {
		timeout, err = time.ParseDuration(raw.Source.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse source.timeout %q: %w", raw.Source.Timeout, err)
		}
	}

	baseDelay := 5 * time.Second
	if raw.Retry.BaseDelay != "" {
		baseDelay, err = time.ParseDuration(raw.Retry.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("parse retry.base_delay %q: %w", raw.Retry.BaseDelay, err)
		}
	}

	staleness := 2 * time.Hour
	if raw.StalenessThreshold != "" {
		staleness, err = time.ParseDuration(raw.StalenessThreshold)
		if err != nil {
			return nil, fmt.Errorf("parse staleness_threshold %q: %w", raw.StalenessThreshold, err)
		}
	}

	retention := 240 * time.Hour // default: 10 days
	if raw.SnapshotRetention != "" {
		retention, err = time.ParseDuration(raw.SnapshotRetention)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot_retention %q: %w", raw.SnapshotRetention, err)
		}
	}

	maxRunAge := 26 * time.Hour
	if raw.Health.MaxRunAge != "" {
		maxRunAge, err = time.ParseDuration(raw.Health.MaxRunAge)
		if err != nil {
			return nil, fmt.Errorf("parse health.max_run_age %q: %w", raw.Health.MaxRunAge, err)
		}
	}

	cfg := &Config{
		PipelineName: valueOr(raw.PipelineName, "job_market_daily"),
		DatabasePath: valueOr(raw.DatabasePath, "jobpulse.db"),
		SnapshotDir:  valueOr(raw.SnapshotDir, "data/raw"),
		SkillsPath:   valueOr(raw.SkillsPath, "config/skills.yml"),
		Source: SourceConfig{
			Name:                valueOr(raw.Source.Name, "adzuna"),
			Country:             valueOr(raw.Source.Country, "us"),
			AppID:               raw.Source.AppID,
			AppKey:              raw.Source.AppKey,
			BaseURL:             valueOr(raw.Source.BaseURL, defaultAdzunaBaseURL),
			ResultsPerPage:      intOr(raw.Source.ResultsPerPage, 50),
			SweepResultsPerPage: intOr(raw.Source.SweepResultsPerPage, 10),
			SortBy:              valueOr(raw.Source.SortBy, "date"),
			Timeout:             timeout,
		},
		Queries: QueryConfig{
			Keywords: raw.Queries.Keywords,
			States:   raw.Queries.States,
		},
		Retry: RetryConfig{
			MaxAttempts: intOr(raw.Retry.MaxAttempts, 3),
			BaseDelay:   baseDelay,
		},
		StalenessThreshold: staleness,
		SnapshotRetention:  retention,
		Health: HealthConfig{
			MaxRunAge:       maxRunAge,
			VolumeDropRatio: floatOr(raw.Health.VolumeDropRatio, 0.5),
			NullStateRatio:  floatOr(raw.Health.NullStateRatio, 0.3),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func floatOr(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func validate(cfg *Config) error {
	if cfg.Source.AppID == "" || cfg.Source.AppKey == "" {
		return fmt.Errorf("source.app_id and source.app_key are required (set ADZUNA_APP_ID / ADZUNA_APP_KEY)")
	}
	if len(cfg.Queries.Keywords) == 0 {
		return fmt.Errorf("queries.keywords must not be empty")
	}
	if len(cfg.Queries.States) == 0 {
		return fmt.Errorf("queries.states must not be empty")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.StalenessThreshold <= 0 {
		return fmt.Errorf("staleness_threshold must be positive, got %v", cfg.StalenessThreshold)
	}
	return nil
}

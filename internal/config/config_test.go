package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
pipeline_name: job_market_daily
database_path: warehouse.db
source:
  app_id: test-id
  app_key: test-key
  timeout: 10s
queries:
  keywords:
    - Data Analyst
  states:
    - Texas
retry:
  max_attempts: 4
  base_delay: 2s
staleness_threshold: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PipelineName != "job_market_daily" {
		t.Errorf("PipelineName = %q", cfg.PipelineName)
	}
	if cfg.DatabasePath != "warehouse.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Errorf("Source.Timeout = %v, want 10s", cfg.Source.Timeout)
	}
	if cfg.Retry.MaxAttempts != 4 || cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.StalenessThreshold != time.Hour {
		t.Errorf("StalenessThreshold = %v, want 1h", cfg.StalenessThreshold)
	}
	if len(cfg.Queries.Keywords) != 1 || cfg.Queries.Keywords[0] != "Data Analyst" {
		t.Errorf("Keywords = %v", cfg.Queries.Keywords)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
source:
  app_id: test-id
  app_key: test-key
queries:
  keywords: [Analytics]
  states: [Texas]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Name != "adzuna" || cfg.Source.Country != "us" {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.ResultsPerPage != 50 || cfg.Source.SweepResultsPerPage != 10 {
		t.Errorf("page sizes = %d/%d", cfg.Source.ResultsPerPage, cfg.Source.SweepResultsPerPage)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 5*time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.StalenessThreshold != 2*time.Hour {
		t.Errorf("StalenessThreshold = %v, want 2h", cfg.StalenessThreshold)
	}
	if cfg.SnapshotRetention != 240*time.Hour {
		t.Errorf("SnapshotRetention = %v, want 240h", cfg.SnapshotRetention)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_ADZUNA_ID", "id-from-env")
	t.Setenv("TEST_ADZUNA_KEY", "key-from-env")
	path := writeConfig(t, `
source:
  app_id: ${TEST_ADZUNA_ID}
  app_key: ${TEST_ADZUNA_KEY}
queries:
  keywords: [Analytics]
  states: [Texas]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.AppID != "id-from-env" || cfg.Source.AppKey != "key-from-env" {
		t.Errorf("credentials not expanded: %q / %q", cfg.Source.AppID, cfg.Source.AppKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "queries: [broken")
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	path := writeConfig(t, `
queries:
  keywords: [Analytics]
  states: [Texas]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected validation error for missing credentials")
	}
}

func TestLoad_EmptyQueryGrid(t *testing.T) {
	path := writeConfig(t, `
source:
  app_id: id
  app_key: key
queries:
  keywords: []
  states: [Texas]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load: expected validation error for empty keywords")
	}
}

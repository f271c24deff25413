package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jobpulse/internal/adapter"
	"jobpulse/internal/config"
	"jobpulse/internal/model"
	"jobpulse/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "jobpulse",
	Short:         "Job market ETL — fetch, clean and aggregate job postings",
	Long:          "JobPulse pulls job postings from the Adzuna API into a SQLite warehouse,\nnormalizes them, extracts features and maintains daily market metrics.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBPULSE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBPULSE_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBPULSE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// breakerCooldown is how long the circuit stays open after tripping.
const breakerCooldown = 60 * time.Second

// buildFetcher assembles the fetch chain: API adapter, circuit breaker, then
// per-query retries. Sweep mode fetches a smaller page per query.
func buildFetcher(cfg *config.Config, sweep bool, logger *slog.Logger) model.PostingFetcher {
	perPage := cfg.Source.ResultsPerPage
	if sweep {
		perPage = cfg.Source.SweepResultsPerPage
	}

	var fetcher model.PostingFetcher = adapter.NewAdzunaAdapter(cfg.Source.AppID, cfg.Source.AppKey, adapter.Options{
		BaseURL:        cfg.Source.BaseURL,
		Country:        cfg.Source.Country,
		SourceName:     cfg.Source.Name,
		ResultsPerPage: perPage,
		SortBy:         cfg.Source.SortBy,
		Timeout:        cfg.Source.Timeout,
	})
	fetcher = adapter.NewBreakerFetcher(fetcher, cfg.Source.Name, breakerCooldown)
	fetcher = retry.NewFetcher(fetcher, retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger))
	return fetcher
}

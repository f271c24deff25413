package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobpulse/internal/features"
	"jobpulse/internal/model"
	"jobpulse/internal/pipeline"
	"jobpulse/internal/snapshot"
	"jobpulse/internal/warehouse"
)

var (
	sinceFlag        string
	pipelineNameFlag string
	reextractFlag    bool
)

var runPipelineCmd = &cobra.Command{
	Use:   "run-pipeline",
	Short: "Run the full ETL pipeline once",
	Long:  "Fetches the configured keyword × state grid, cleans the new postings,\nextracts features and recomputes daily metrics. Exits non-zero on failure.",
	RunE:  runPipeline,
}

func init() {
	runPipelineCmd.Flags().StringVar(&sinceFlag, "since", "", "only clean raw rows fetched after this time (RFC3339 or YYYY-MM-DD)")
	runPipelineCmd.Flags().StringVar(&pipelineNameFlag, "pipeline-name", "", "run name recorded in pipeline_runs (default: config pipeline_name)")
	runPipelineCmd.Flags().BoolVar(&reextractFlag, "reextract", false, "re-derive features for every clean posting")
	rootCmd.AddCommand(runPipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	return executePipeline(false)
}

// parseSince accepts a full timestamp or a bare date.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// executePipeline wires the warehouse, vocabulary, snapshots and fetch chain
// together and runs one tracked pipeline invocation.
func executePipeline(sweep bool) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	since, err := parseSince(sinceFlag)
	if err != nil {
		logger.Error("bad flag", "error", err)
		os.Exit(1)
	}

	name := pipelineNameFlag
	if name == "" {
		name = cfg.PipelineName
	}

	wh, err := warehouse.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open warehouse", "error", err)
		os.Exit(1)
	}
	defer wh.Close()

	vocab, err := features.LoadVocabulary(cfg.SkillsPath)
	if err != nil {
		logger.Error("failed to load skills vocabulary", "error", err)
		os.Exit(1)
	}

	snaps, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		logger.Error("failed to prepare snapshot dir", "error", err)
		os.Exit(1)
	}

	fetcher := buildFetcher(cfg, sweep, logger)
	p := pipeline.New(cfg, wh, fetcher, vocab, snaps, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, pipeline.Options{
		PipelineName: name,
		Since:        since,
		Reextract:    reextractFlag,
		Sweep:        sweep,
	})
	if err != nil {
		var concErr *model.ConcurrentRunError
		if errors.As(err, &concErr) {
			fmt.Fprintf(os.Stderr, "another %q run (id %d) is already in flight since %s\n",
				concErr.PipelineName, concErr.RunID, concErr.StartedAt.Format(time.RFC3339))
		} else {
			fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("run %d complete: %d fetched, %d written, %d skipped, %d cleaned, %d extracted, %d metric rows\n",
		res.RunID, res.Fetched, res.Written, res.Skipped, res.Cleaned, res.Extracted, res.MetricRows)
	return nil
}

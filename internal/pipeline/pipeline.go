// Package pipeline orchestrates one end-to-end run: fetch raw postings,
// clean them, extract features, and recompute daily metrics. Every stage
// writes through the warehouse so a re-run over the same data is a no-op.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"jobpulse/internal/cleaner"
	"jobpulse/internal/config"
	"jobpulse/internal/features"
	"jobpulse/internal/metrics"
	"jobpulse/internal/model"
	"jobpulse/internal/retry"
	"jobpulse/internal/runtracker"
	"jobpulse/internal/snapshot"
	"jobpulse/internal/warehouse"
)

// Pipeline wires the stages together around one warehouse. The fetcher is
// expected to carry its own retry and circuit-breaker decoration.
type Pipeline struct {
	cfg        *config.Config
	wh         *warehouse.Warehouse
	fetcher    model.PostingFetcher
	tracker    *runtracker.Tracker
	cleaner    *cleaner.Cleaner
	extractor  *features.Extractor
	aggregator *metrics.Aggregator
	snapshots  *snapshot.Store // nil disables snapshot write-through
	policy     retry.Policy
	logger     *slog.Logger
}

// Options controls a single invocation of Run.
type Options struct {
	PipelineName string
	Since        time.Time // zero value means no lower bound on the clean stage
	Reextract    bool      // re-derive features for every clean row
	Sweep        bool      // fetch one rotated keyword instead of the full grid
}

// Result summarizes what one run did.
type Result struct {
	RunID      int64
	Fetched    int // postings returned by the source across all queries
	Written    int // raw rows upserted
	Skipped    int // postings dropped for missing source or job id
	Cleaned    int
	Extracted  int
	MetricRows int
}

// New assembles a Pipeline from its components.
func New(
	cfg *config.Config,
	wh *warehouse.Warehouse,
	fetcher model.PostingFetcher,
	vocab *features.Vocabulary,
	snapshots *snapshot.Store,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		wh:         wh,
		fetcher:    fetcher,
		tracker:    runtracker.New(wh, cfg.StalenessThreshold, logger),
		cleaner:    cleaner.New(wh, logger),
		extractor:  features.New(vocab, wh, logger),
		aggregator: metrics.New(wh, logger),
		snapshots:  snapshots,
		policy:     retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, logger),
		logger:     logger,
	}
}

// Run executes ingest, clean, extract and aggregate in order under a tracked
// run. The first stage to fail (after retries) marks the run failed with the
// stage name in the error and stops the stages behind it. A run already in
// flight for the same pipeline name fails fast with ConcurrentRunError.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	runID, err := p.tracker.Start(ctx, opts.PipelineName)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID}
	started := time.Now()

	if stageErr := p.runStages(ctx, opts, res); stageErr != nil {
		if err := p.tracker.Finish(ctx, runID, model.RunStatusFailed, res.Written, stageErr); err != nil {
			p.logger.Error("failed to record run failure", "run_id", runID, "error", err)
		}
		return res, stageErr
	}

	if err := p.tracker.Finish(ctx, runID, model.RunStatusSuccess, res.Written, nil); err != nil {
		return res, err
	}

	p.logger.Info("pipeline complete",
		"run_id", runID,
		"fetched", res.Fetched,
		"written", res.Written,
		"skipped", res.Skipped,
		"cleaned", res.Cleaned,
		"extracted", res.Extracted,
		"metric_rows", res.MetricRows,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return res, nil
}

func (p *Pipeline) runStages(ctx context.Context, opts Options, res *Result) error {
	if err := p.ingest(ctx, opts, res); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	err := p.policy.Do(ctx, "clean", func(ctx context.Context) error {
		n, err := p.cleaner.CleanBatch(ctx, opts.Since)
		res.Cleaned = n
		return err
	})
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}

	var (
		touched   []string
		priorKeys []model.MetricKey
	)
	err = p.policy.Do(ctx, "extract", func(ctx context.Context) error {
		n, jobIDs, keys, err := p.extractor.ExtractBatch(ctx, opts.Reextract)
		res.Extracted = n
		touched = jobIDs
		priorKeys = keys
		return err
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	err = p.policy.Do(ctx, "aggregate", func(ctx context.Context) error {
		n, err := p.aggregator.Recompute(ctx, touched, priorKeys)
		res.MetricRows = n
		return err
	})
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	return nil
}

// ingest fetches every query in the grid and upserts the results. The fetcher
// handles per-query retries; an error that survives them aborts the stage.
func (p *Pipeline) ingest(ctx context.Context, opts Options, res *Result) error {
	queries, err := p.queries(ctx, opts)
	if err != nil {
		return err
	}

	for _, q := range queries {
		postings, err := p.fetcher.Fetch(ctx, q)
		if err != nil {
			return fmt.Errorf("query %q in %q: %w", q.Keyword, q.Location, err)
		}
		res.Fetched += len(postings)

		for _, r := range postings {
			if verr := r.Validate(); verr != nil {
				p.logger.Debug("posting skipped",
					"source", r.Source,
					"job_id", r.JobID,
					"error", verr,
				)
			}
		}

		if err := p.writeSnapshot(q, postings); err != nil {
			return err
		}

		written, skipped, err := p.wh.IngestRaw(ctx, postings)
		if err != nil {
			return err
		}
		res.Written += written
		res.Skipped += skipped

		p.logger.Debug("query ingested",
			"keyword", q.Keyword,
			"state", q.Location,
			"fetched", len(postings),
			"written", written,
			"skipped", skipped,
		)
	}
	return nil
}

// queries builds the fetch grid: every keyword crossed with every state, or a
// single rotated keyword across all states in sweep mode.
func (p *Pipeline) queries(ctx context.Context, opts Options) ([]model.Query, error) {
	keywords := p.cfg.Queries.Keywords
	if opts.Sweep {
		kw, err := p.wh.NextSweepKeyword(ctx, keywords)
		if err != nil {
			return nil, fmt.Errorf("sweep rotation: %w", err)
		}
		p.logger.Info("sweep keyword selected", "keyword", kw)
		keywords = []string{kw}
	}

	var queries []model.Query
	for _, kw := range keywords {
		for _, state := range p.cfg.Queries.States {
			queries = append(queries, model.Query{Keyword: kw, Location: state})
		}
	}
	return queries, nil
}

// writeSnapshot persists the query's raw payloads as one JSON array on disk.
func (p *Pipeline) writeSnapshot(q model.Query, postings []model.RawPosting) error {
	if p.snapshots == nil || len(postings) == 0 {
		return nil
	}

	payloads := make([]json.RawMessage, 0, len(postings))
	for _, r := range postings {
		if len(r.RawPayload) > 0 {
			payloads = append(payloads, json.RawMessage(r.RawPayload))
		}
	}
	data, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %q/%q: %w", q.Keyword, q.Location, err)
	}
	if err := p.snapshots.Write(p.cfg.Source.Name, q.Location, q.Keyword, data); err != nil {
		return err
	}
	return nil
}

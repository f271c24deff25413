package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobpulse/internal/history"
	"jobpulse/internal/model"
	"jobpulse/internal/warehouse"
)

var (
	runsLimit int
	runsPlain bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse pipeline run history (TUI)",
	Long:  "Shows recent pipeline runs. Interactive by default; --plain prints a table.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "maximum number of runs to show")
	runsCmd.Flags().BoolVar(&runsPlain, "plain", false, "print a table instead of the interactive browser")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	wh, err := warehouse.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open warehouse", "error", err)
		os.Exit(1)
	}
	defer wh.Close()

	if runsPlain {
		runs, err := wh.ListRuns(context.Background(), runsLimit)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			os.Exit(1)
		}
		printRunsTable(runs)
		return nil
	}

	runs, err := history.RunLoader(func(ctx context.Context) ([]model.RunRecord, error) {
		return wh.ListRuns(ctx, runsLimit)
	})
	if err != nil {
		logger.Error("failed to load runs", "error", err)
		os.Exit(1)
	}
	return history.RunHistoryTUI(runs)
}

func printRunsTable(runs []model.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPIPELINE\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.EndedAt != nil {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.PipelineName, r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			duration, r.RowsProcessed, errMsg)
	}
	w.Flush()
}

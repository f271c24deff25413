package main

import (
	"github.com/spf13/cobra"
)

var freshSweepCmd = &cobra.Command{
	Use:   "fresh-sweep",
	Short: "Run a light sweep over one rotated keyword",
	Long:  "Fetches a single keyword (rotating through the configured list across\ninvocations) with a smaller page size. Meant for frequent cron slots between\nfull pipeline runs.",
	RunE:  runFreshSweep,
}

func init() {
	freshSweepCmd.Flags().StringVar(&pipelineNameFlag, "pipeline-name", "", "run name recorded in pipeline_runs (default: config pipeline_name)")
	rootCmd.AddCommand(freshSweepCmd)
}

func runFreshSweep(cmd *cobra.Command, args []string) error {
	return executePipeline(true)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobpulse/internal/monitor"
	"jobpulse/internal/warehouse"
)

var checkHealthCmd = &cobra.Command{
	Use:   "check-health",
	Short: "Run warehouse health checks",
	Long:  "Checks pipeline freshness, intake volume and state-parse quality.\nFindings are logged and persisted as alerts; exits non-zero only when the\ncheck itself cannot run.",
	RunE:  runCheckHealth,
}

func init() {
	checkHealthCmd.Flags().StringVar(&pipelineNameFlag, "pipeline-name", "", "pipeline to check freshness for (default: config pipeline_name)")
	rootCmd.AddCommand(checkHealthCmd)
}

func runCheckHealth(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
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

	checker := monitor.New(wh, cfg.Health, logger)
	alerts, err := checker.Check(context.Background(), name)
	if err != nil {
		logger.Error("health check failed", "error", err)
		os.Exit(1)
	}

	if len(alerts) > 0 {
		fmt.Printf("%d health alert(s) raised\n", len(alerts))
		return nil
	}

	fmt.Println("warehouse healthy")
	return nil
}

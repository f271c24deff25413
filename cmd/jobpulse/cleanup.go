package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobpulse/internal/snapshot"
)

var cleanupSnapshotsCmd = &cobra.Command{
	Use:   "cleanup-snapshots",
	Short: "Delete raw snapshot files past the retention window",
	RunE:  runCleanupSnapshots,
}

func init() {
	rootCmd.AddCommand(cleanupSnapshotsCmd)
}

func runCleanupSnapshots(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	snaps, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		logger.Error("failed to open snapshot dir", "error", err)
		os.Exit(1)
	}

	deleted, kept, err := snaps.Cleanup(cfg.SnapshotRetention)
	if err != nil {
		logger.Error("cleanup failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("deleted %d snapshot(s), kept %d\n", deleted, kept)
	return nil
}

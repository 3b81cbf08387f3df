package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khalidmab/jobpress/internal/history"
	"github.com/khalidmab/jobpress/internal/orchestrator"
	"github.com/khalidmab/jobpress/internal/store"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one full cycle, then exit",
	Long:  "Runs ingestion, enrichment, and publishing once and exits. Useful from cron or for catching up manually.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	lock, err := acquireDataLock(cfg.DataDir)
	if err != nil {
		logger.Error("failed to lock data dir", "error", err)
		os.Exit(1)
	}
	defer lock.Unlock()

	st, err := store.Open(cfg.SnapshotFile, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	hist, err := history.Open(cfg.HistoryFile)
	if err != nil {
		logger.Error("failed to open history log", "error", err)
		os.Exit(1)
	}
	defer hist.Close()

	pipe := buildPipeline(cfg, st, hist, logger)
	orch := orchestrator.New(pipe, st, cfg.Interval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counts, err := orch.RunCycle(ctx)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	logger.Info("cycle complete",
		"new", counts.New,
		"retried", counts.Retried,
		"duplicate", counts.Duplicate,
		"enriched", counts.Enriched,
		"validated", counts.Validated,
		"published", counts.Published,
		"failed", counts.IngestFailed+counts.EnrichFailed+counts.ValidationFailed+counts.PublishFailed,
	)
	return nil
}

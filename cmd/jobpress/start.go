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

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the pipeline daemon",
	Long:  "Runs one cycle immediately, then one per configured interval; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Interval.String(),
		"source", cfg.Scraper.BaseURL,
		"publisher", cfg.Publisher.Type,
		"fan_out", cfg.FanOut,
	)

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

	if err := orch.Run(ctx); err != nil {
		logger.Error("orchestrator error", "error", err)
		os.Exit(1)
	}

	// Final checkpoint so an interrupted cycle's progress survives.
	if err := st.Persist(); err != nil {
		logger.Error("final persist failed", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

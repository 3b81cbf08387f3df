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

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run ingestion only, then exit",
	Long:  "Fetches candidate postings and stores them as scraped records without calling the AI or the publisher. Good for checking selectors against the live site.",
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
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

	counts, err := orch.RunIngestOnly(ctx)
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ingestion complete",
		"new", counts.New,
		"retried", counts.Retried,
		"duplicate", counts.Duplicate,
		"failed", counts.IngestFailed,
	)
	return nil
}

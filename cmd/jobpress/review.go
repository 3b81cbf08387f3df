package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/khalidmab/jobpress/internal/history"
	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/review"
	"github.com/khalidmab/jobpress/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse records interactively (TUI)",
	Long:  "Opens a split-pane browser over the record store with a stage filter and per-record history. Read-only.",
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// A TUI runs on the alt screen; any log output before it starts
	// corrupts the display.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(cfg.SnapshotFile, silent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	var records []model.JobRecord
	for rec := range st.Find(func(model.JobRecord) bool { return true }) {
		records = append(records, rec)
	}
	if len(records) == 0 {
		fmt.Println("No records yet. Run `jobpress scrape` or `jobpress once` first.")
		return nil
	}

	var histories review.HistoryReader
	if hist, err := history.Open(cfg.HistoryFile); err == nil {
		defer hist.Close()
		histories = hist
	}

	return review.Run(records, histories)
}

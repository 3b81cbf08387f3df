package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/khalidmab/jobpress/internal/history"
	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record counts per stage, then exit",
	Long:  "Reads the snapshot and the history log without modifying either; safe to run next to a live daemon.",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Plain output, no log lines mixed in.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(cfg.SnapshotFile, silent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	byStage := st.CountByStage()
	fmt.Printf("records: %d\n", st.Len())
	for _, stage := range []model.Stage{
		model.StageScraped,
		model.StageEnriched,
		model.StageValidated,
		model.StagePublished,
		model.StageFailed,
	} {
		fmt.Printf("  %-10s %d\n", stage, byStage[stage])
	}

	if byKind := st.FailedByKind(); len(byKind) > 0 {
		fmt.Println("failed by kind:")
		for _, kind := range []model.FailureKind{
			model.FailureIngestion,
			model.FailureExtraction,
			model.FailureValidation,
			model.FailurePublication,
		} {
			if n := byKind[kind]; n > 0 {
				fmt.Printf("  %-12s %d\n", kind, n)
			}
		}
	}

	hist, err := history.Open(cfg.HistoryFile)
	if err != nil {
		// Stats still make sense without the audit log.
		fmt.Fprintf(os.Stderr, "history unavailable: %v\n", err)
		return nil
	}
	defer hist.Close()

	if n, err := hist.CountSince(time.Now().Add(-24 * time.Hour)); err == nil {
		fmt.Printf("activity (24h): %d transitions\n", n)
	}

	recent, err := hist.Recent(10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history unavailable: %v\n", err)
		return nil
	}
	if len(recent) > 0 {
		fmt.Println("recent transitions:")
		for _, t := range recent {
			line := fmt.Sprintf("  %s  %s  %s → %s", t.At.Format("2006-01-02 15:04"), t.Identity, t.From, t.To)
			if t.Kind != "" {
				line += fmt.Sprintf(" (%s)", t.Kind)
			}
			fmt.Println(line)
		}
	}
	return nil
}

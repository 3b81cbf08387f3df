package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/khalidmab/jobpress/internal/ai"
	"github.com/khalidmab/jobpress/internal/config"
	"github.com/khalidmab/jobpress/internal/geo"
	"github.com/khalidmab/jobpress/internal/model"
	"github.com/khalidmab/jobpress/internal/pipeline"
	"github.com/khalidmab/jobpress/internal/publisher"
	"github.com/khalidmab/jobpress/internal/retry"
	"github.com/khalidmab/jobpress/internal/scraper"
	"github.com/khalidmab/jobpress/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobpress",
	Short: "Job-posting pipeline: scrape, extract, publish",
	Long:  "JobPress watches a job-listings site, extracts structured postings with an AI model, and publishes them to a blog on a schedule.",
	// Default to `start` so that `jobpress` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBPRESS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBPRESS_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBPRESS_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.TimeOnly,
	}))
}

func setupPublisher(cfg *config.Config, logger *slog.Logger) model.Publisher {
	switch cfg.Publisher.Type {
	case "blogger":
		logger.Info("using blogger publisher", "blog_id", cfg.Publisher.BlogID)
		httpClient := &http.Client{Timeout: cfg.Publisher.Timeout}
		return publisher.NewBloggerPublisher(cfg.Publisher.BaseURL, cfg.Publisher.BlogID, cfg.Publisher.APIKey, httpClient)
	default:
		return publisher.NewLogPublisher(logger)
	}
}

// acquireDataLock takes an exclusive file lock on the data directory so two
// processes never share one snapshot.
func acquireDataLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	lock := flock.New(filepath.Join(dataDir, "jobpress.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking data dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data dir %s is locked by another jobpress process", dataDir)
	}
	return lock, nil
}

func buildPipeline(cfg *config.Config, st *store.Store, hist model.TransitionLog, logger *slog.Logger) *pipeline.Pipeline {
	scr := scraper.New(cfg.Scraper, &http.Client{Timeout: cfg.Scraper.RequestTimeout}, logger)
	provider := ai.NewGeminiProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, &http.Client{Timeout: cfg.AI.Timeout})
	extractor := ai.NewLLMExtractor(provider, logger)
	geocoder := geo.NewNominatimGeocoder(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, &http.Client{Timeout: cfg.Geocoder.Timeout})
	pub := setupPublisher(cfg, logger)

	opts := pipeline.Options{
		FanOut: cfg.FanOut,
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			MaxElapsed:  cfg.Retry.MaxElapsed,
		},
		RecordRetryBudget: cfg.RecordRetryBudget,
		PublishBatchLimit: cfg.PublishBatchLimit,
		AITimeout:         cfg.AI.Timeout,
		GeoTimeout:        cfg.Geocoder.Timeout,
		PublishTimeout:    cfg.Publisher.Timeout,
	}
	return pipeline.New(st, scr, extractor, geocoder, pub, hist, opts, logger)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobpress pipeline.
type Config struct {
	Interval          time.Duration // cycle interval in continuous mode
	DataDir           string
	SnapshotFile      string // full record-store snapshot
	HistoryFile       string // sqlite transition log
	FanOut            int64  // max outstanding external calls per stage
	RecordRetryBudget int    // failed-record retries before terminal failure
	PublishBatchLimit int    // max records published per cycle

	Retry     RetryConfig
	Scraper   ScraperConfig
	AI        AIConfig
	Geocoder  GeocoderConfig
	Publisher PublisherConfig
}

// RetryConfig bounds the per-call retry loop around external services.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxElapsed  time.Duration
}

// ScraperConfig targets the source news site.
type ScraperConfig struct {
	BaseURL        string
	MaxPages       int
	UserAgent      string
	RequestTimeout time.Duration
	RatePerSecond  float64 // request rate toward the source site
	Selectors      SelectorConfig
}

// SelectorConfig holds the CSS selectors for the source site's markup.
type SelectorConfig struct {
	Pages       string `yaml:"pages"`
	URLs        string `yaml:"urls"`
	Description string `yaml:"description"`
	Details     string `yaml:"details"`
}

// AIConfig targets the extraction service.
type AIConfig struct {
	BaseURL string
	APIKey  string // expanded from env var by Load
	Model   string
	Timeout time.Duration
}

// GeocoderConfig targets the geocoding service.
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// PublisherConfig selects and targets the publishing backend.
type PublisherConfig struct {
	Type    string // "log" or "blogger"
	BaseURL string
	BlogID  string
	APIKey  string
	Timeout time.Duration
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Interval          string `yaml:"interval"`
	DataDir           string `yaml:"data_dir"`
	FanOut            int64  `yaml:"fan_out"`
	RecordRetryBudget int    `yaml:"record_retry_budget"`
	PublishBatchLimit int    `yaml:"publish_batch_limit"`

	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
		MaxDelay    string `yaml:"max_delay"`
		MaxElapsed  string `yaml:"max_elapsed"`
	} `yaml:"retry"`

	Scraper struct {
		BaseURL        string         `yaml:"base_url"`
		MaxPages       int            `yaml:"max_pages"`
		UserAgent      string         `yaml:"user_agent"`
		RequestTimeout string         `yaml:"request_timeout"`
		RatePerSecond  float64        `yaml:"rate_per_second"`
		Selectors      SelectorConfig `yaml:"selectors"`
	} `yaml:"scraper"`

	AI struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"ai"`

	Geocoder struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"geocoder"`

	Publisher struct {
		Type    string `yaml:"type"`
		BaseURL string `yaml:"base_url"`
		BlogID  string `yaml:"blog_id"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"publisher"`
}

// Load reads and parses the YAML config file at path, expands environment
// variables (a .env file next to the process is honored if present),
// applies defaults, validates, and returns Config.
func Load(path string) (*Config, error) {
	// Best-effort: secrets may live in a .env file instead of the shell env.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 30 * time.Minute
	if raw.Interval != "" {
		interval, err = time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", raw.Interval, err)
		}
	}

	dataDir := raw.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	fanOut := raw.FanOut
	if fanOut == 0 {
		fanOut = 4
	}

	retryBudget := raw.RecordRetryBudget
	if retryBudget == 0 {
		retryBudget = 3
	}

	publishLimit := raw.PublishBatchLimit
	if publishLimit == 0 {
		publishLimit = 10
	}

	retryCfg := RetryConfig{MaxAttempts: raw.Retry.MaxAttempts}
	if retryCfg.MaxAttempts == 0 {
		retryCfg.MaxAttempts = 3
	}
	if retryCfg.BaseDelay, err = parseDuration(raw.Retry.BaseDelay, 2*time.Second, "retry.base_delay"); err != nil {
		return nil, err
	}
	if retryCfg.MaxDelay, err = parseDuration(raw.Retry.MaxDelay, 30*time.Second, "retry.max_delay"); err != nil {
		return nil, err
	}
	if retryCfg.MaxElapsed, err = parseDuration(raw.Retry.MaxElapsed, 2*time.Minute, "retry.max_elapsed"); err != nil {
		return nil, err
	}

	scraperTimeout, err := parseDuration(raw.Scraper.RequestTimeout, 30*time.Second, "scraper.request_timeout")
	if err != nil {
		return nil, err
	}
	aiTimeout, err := parseDuration(raw.AI.Timeout, 60*time.Second, "ai.timeout")
	if err != nil {
		return nil, err
	}
	geoTimeout, err := parseDuration(raw.Geocoder.Timeout, 15*time.Second, "geocoder.timeout")
	if err != nil {
		return nil, err
	}
	pubTimeout, err := parseDuration(raw.Publisher.Timeout, 45*time.Second, "publisher.timeout")
	if err != nil {
		return nil, err
	}

	maxPages := raw.Scraper.MaxPages
	if maxPages == 0 {
		maxPages = 5
	}
	ratePerSecond := raw.Scraper.RatePerSecond
	if ratePerSecond == 0 {
		ratePerSecond = 2
	}

	cfg := &Config{
		Interval:          interval,
		DataDir:           dataDir,
		SnapshotFile:      filepath.Join(dataDir, "jobs.json"),
		HistoryFile:       filepath.Join(dataDir, "history.db"),
		FanOut:            fanOut,
		RecordRetryBudget: retryBudget,
		PublishBatchLimit: publishLimit,
		Retry:             retryCfg,
		Scraper: ScraperConfig{
			BaseURL:        raw.Scraper.BaseURL,
			MaxPages:       maxPages,
			UserAgent:      raw.Scraper.UserAgent,
			RequestTimeout: scraperTimeout,
			RatePerSecond:  ratePerSecond,
			Selectors:      raw.Scraper.Selectors,
		},
		AI: AIConfig{
			BaseURL: raw.AI.BaseURL,
			APIKey:  raw.AI.APIKey,
			Model:   raw.AI.Model,
			Timeout: aiTimeout,
		},
		Geocoder: GeocoderConfig{
			BaseURL:   raw.Geocoder.BaseURL,
			UserAgent: raw.Geocoder.UserAgent,
			Timeout:   geoTimeout,
		},
		Publisher: PublisherConfig{
			Type:    raw.Publisher.Type,
			BaseURL: raw.Publisher.BaseURL,
			BlogID:  raw.Publisher.BlogID,
			APIKey:  raw.Publisher.APIKey,
			Timeout: pubTimeout,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.FanOut < 1 {
		return fmt.Errorf("fan_out must be at least 1, got %d", cfg.FanOut)
	}
	if cfg.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url is required")
	}
	if cfg.AI.BaseURL == "" {
		return fmt.Errorf("ai.base_url is required")
	}
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if cfg.Geocoder.BaseURL == "" {
		return fmt.Errorf("geocoder.base_url is required")
	}

	switch cfg.Publisher.Type {
	case "blogger":
		if cfg.Publisher.BaseURL == "" {
			return fmt.Errorf("publisher.base_url is required when type is \"blogger\"")
		}
		if cfg.Publisher.BlogID == "" {
			return fmt.Errorf("publisher.blog_id is required when type is \"blogger\"")
		}
		if cfg.Publisher.APIKey == "" {
			return fmt.Errorf("publisher.api_key is required when type is \"blogger\"")
		}
	case "log", "":
	default:
		return fmt.Errorf("publisher.type must be \"blogger\" or \"log\", got %q", cfg.Publisher.Type)
	}

	return nil
}

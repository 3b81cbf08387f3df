package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
scraper:
  base_url: "https://jobs.example.com/"
ai:
  base_url: "https://ai.example.com/v1"
  api_key: "test-key"
  model: "test-model"
geocoder:
  base_url: "https://geo.example.com"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", cfg.Interval)
	}
	if cfg.FanOut != 4 {
		t.Errorf("fan_out = %d, want 4", cfg.FanOut)
	}
	if cfg.RecordRetryBudget != 3 {
		t.Errorf("record_retry_budget = %d, want 3", cfg.RecordRetryBudget)
	}
	if cfg.PublishBatchLimit != 10 {
		t.Errorf("publish_batch_limit = %d, want 10", cfg.PublishBatchLimit)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Scraper.MaxPages != 5 {
		t.Errorf("scraper.max_pages = %d, want 5", cfg.Scraper.MaxPages)
	}
	if cfg.Publisher.Type != "" {
		t.Errorf("publisher.type = %q, want empty (log backend)", cfg.Publisher.Type)
	}
	if cfg.SnapshotFile != filepath.Join("data", "jobs.json") {
		t.Errorf("snapshot file = %s", cfg.SnapshotFile)
	}
	if cfg.HistoryFile != filepath.Join("data", "history.db") {
		t.Errorf("history file = %s", cfg.HistoryFile)
	}
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
interval: "1h"
data_dir: "/var/lib/jobpress"
fan_out: 8
publish_batch_limit: 3
retry:
  max_attempts: 5
  base_delay: "500ms"
  max_delay: "10s"
  max_elapsed: "1m"
scraper:
  base_url: "https://jobs.example.com/"
  max_pages: 2
  request_timeout: "10s"
  rate_per_second: 0.5
ai:
  base_url: "https://ai.example.com/v1"
  api_key: "k"
  model: "m"
  timeout: "90s"
geocoder:
  base_url: "https://geo.example.com"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Interval != time.Hour {
		t.Errorf("interval = %v", cfg.Interval)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond || cfg.Retry.MaxElapsed != time.Minute {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Scraper.RatePerSecond != 0.5 {
		t.Errorf("rate_per_second = %v", cfg.Scraper.RatePerSecond)
	}
	if cfg.AI.Timeout != 90*time.Second {
		t.Errorf("ai.timeout = %v", cfg.AI.Timeout)
	}
	if cfg.SnapshotFile != filepath.Join("/var/lib/jobpress", "jobs.json") {
		t.Errorf("snapshot file = %s", cfg.SnapshotFile)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AI_KEY", "secret-from-env")

	cfg, err := Load(writeConfig(t, `
scraper:
  base_url: "https://jobs.example.com/"
ai:
  base_url: "https://ai.example.com/v1"
  api_key: "${TEST_AI_KEY}"
  model: "m"
geocoder:
  base_url: "https://geo.example.com"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "secret-from-env" {
		t.Errorf("api_key = %q, want value from env", cfg.AI.APIKey)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no scraper base url",
			yaml: strings.Replace(minimalConfig, `base_url: "https://jobs.example.com/"`, `base_url: ""`, 1),
			want: "scraper.base_url",
		},
		{
			name: "no ai api key",
			yaml: strings.Replace(minimalConfig, `api_key: "test-key"`, `api_key: ""`, 1),
			want: "ai.api_key",
		},
		{
			name: "blogger without blog id",
			yaml: minimalConfig + `
publisher:
  type: "blogger"
  base_url: "https://blog.example.com/v3"
  api_key: "k"
`,
			want: "publisher.blog_id",
		},
		{
			name: "unknown publisher type",
			yaml: minimalConfig + `
publisher:
  type: "carrier-pigeon"
`,
			want: "publisher.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"interval: \"soon\"\n"))
	if err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

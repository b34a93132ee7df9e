package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Crawler.MaxConcurrentRequests != 10 || cfg.Crawler.MaxPages != 3 {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if cfg.Crawler.CrawlDelay != time.Second || cfg.Crawler.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected crawler timings: %+v", cfg.Crawler)
	}
	if !cfg.Crawler.RespectRobotsTxt {
		t.Fatal("expected robots.txt to be respected by default")
	}
	if cfg.Crawler.RobotsAgent != "JobAnalyzer" {
		t.Fatalf("expected robots agent JobAnalyzer, got %q", cfg.Crawler.RobotsAgent)
	}
	if cfg.Enrichment.Timeout != 30*time.Second {
		t.Fatalf("expected enrichment timeout 30s, got %v", cfg.Enrichment.Timeout)
	}
	if cfg.Retention.Days != 90 {
		t.Fatalf("expected retention 90 days, got %d", cfg.Retention.Days)
	}
	if cfg.PubSub.Enabled() {
		t.Fatal("expected pubsub to be disabled by default")
	}
	if cfg.Tracing.ServiceName != "company-analyzer" || cfg.Tracing.SampleRatio != 1 || cfg.Tracing.LogSpans {
		t.Fatalf("unexpected tracing defaults: %+v", cfg.Tracing)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  cors_origins: ["https://app.example.com"]
logging:
  development: true
database:
  dsn: postgres://analyzer@localhost/analyzer
crawler:
  max_concurrent_requests: 4
  crawl_delay: 250ms
  respect_robots_txt: false
enrichment:
  timeout: 5s
  crunchbase:
    enabled: true
    api_key: cb-key
  linkedin:
    enabled: true
    api_key: li-key
retention:
  days: 30
reports:
  archive_dir: /tmp/reports
  gcs_bucket: analyzer-reports
pubsub:
  project_id: acme-prod
  topic_name: analyses
tracing:
  sample_ratio: 0.25
  log_spans: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("expected port 9090, got %d (%s)", cfg.Server.Port, cfg.Addr())
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Fatalf("expected cors override, got %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging")
	}
	if cfg.Crawler.MaxConcurrentRequests != 4 || cfg.Crawler.RespectRobotsTxt {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Crawler.CrawlDelay != 250*time.Millisecond {
		t.Fatalf("expected crawl delay 250ms, got %v", cfg.Crawler.CrawlDelay)
	}
	if !cfg.Enrichment.Crunchbase.Enabled || cfg.Enrichment.Crunchbase.APIKey != "cb-key" {
		t.Fatalf("expected crunchbase enabled: %+v", cfg.Enrichment.Crunchbase)
	}
	if cfg.Enrichment.Crunchbase.BaseURL != "https://api.crunchbase.com/api/v4" {
		t.Fatalf("expected default crunchbase base url, got %q", cfg.Enrichment.Crunchbase.BaseURL)
	}
	if cfg.Reports.ArchiveDir != "/tmp/reports" {
		t.Fatalf("expected archive dir, got %q", cfg.Reports.ArchiveDir)
	}
	if cfg.Reports.GCSBucket != "analyzer-reports" || cfg.Reports.GCSPrefix != "reports" {
		t.Fatalf("expected gcs bucket with default prefix, got %+v", cfg.Reports)
	}
	if !cfg.PubSub.Enabled() || cfg.PubSub.TopicName != "analyses" {
		t.Fatalf("expected pubsub enabled: %+v", cfg.PubSub)
	}
	if cfg.Tracing.SampleRatio != 0.25 || !cfg.Tracing.LogSpans || cfg.Tracing.ServiceName != "company-analyzer" {
		t.Fatalf("expected tracing overrides to apply: %+v", cfg.Tracing)
	}
}

func TestRetentionCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	cfg := Config{Retention: RetentionConfig{Days: 30}}
	cutoff, ok := cfg.RetentionCutoff(now)
	if !ok {
		t.Fatal("expected retention to be enabled")
	}
	if want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC); !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cutoff)
	}

	cfg.Retention.Days = 0
	if _, ok := cfg.RetentionCutoff(now); ok {
		t.Fatal("expected zero days to disable retention")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8000},
		Crawler: CrawlerConfig{
			MaxConcurrentRequests: 1,
			RequestTimeout:        time.Second,
			MaxPages:              3,
		},
		Enrichment: EnrichmentConfig{Timeout: time.Second},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Crawler.MaxConcurrentRequests = 0
				return c
			}(),
			want: "crawler.max_concurrent_requests",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Crawler.RequestTimeout = 0
				return c
			}(),
			want: "crawler.request_timeout",
		},
		{
			name: "negative delay",
			cfg: func() Config {
				c := base
				c.Crawler.CrawlDelay = -time.Second
				return c
			}(),
			want: "crawler.crawl_delay",
		},
		{
			name: "zero pages",
			cfg: func() Config {
				c := base
				c.Crawler.MaxPages = 0
				return c
			}(),
			want: "crawler.max_pages",
		},
		{
			name: "missing enrichment timeout",
			cfg: func() Config {
				c := base
				c.Enrichment.Timeout = 0
				return c
			}(),
			want: "enrichment.timeout",
		},
		{
			name: "pubsub topic without project",
			cfg: func() Config {
				c := base
				c.PubSub.TopicName = "analyses"
				return c
			}(),
			want: "pubsub.project_id",
		},
		{
			name: "crunchbase missing api key",
			cfg: func() Config {
				c := base
				c.Enrichment.Crunchbase.Enabled = true
				return c
			}(),
			want: "enrichment.crunchbase.api_key",
		},
		{
			name: "linkedin missing api key",
			cfg: func() Config {
				c := base
				c.Enrichment.LinkedIn.Enabled = true
				return c
			}(),
			want: "enrichment.linkedin.api_key",
		},
		{
			name: "negative retention",
			cfg: func() Config {
				c := base
				c.Retention.Days = -1
				return c
			}(),
			want: "retention.days",
		},
		{
			name: "sample ratio above one",
			cfg: func() Config {
				c := base
				c.Tracing.SampleRatio = 1.5
				return c
			}(),
			want: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

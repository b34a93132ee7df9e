// Package config loads and validates analyzer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DatabaseConfig controls access to the relational database. An empty DSN
// selects the in-process store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// CrawlerConfig governs fetch politeness and crawl scope.
type CrawlerConfig struct {
	UserAgent             string        `mapstructure:"user_agent"`
	RobotsAgent           string        `mapstructure:"robots_agent"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	CrawlDelay            time.Duration `mapstructure:"crawl_delay"`
	RespectRobotsTxt      bool          `mapstructure:"respect_robots_txt"`
	MaxRedirects          int           `mapstructure:"max_redirects"`
	MaxPages              int           `mapstructure:"max_pages"`
	MaxBodyBytes          int           `mapstructure:"max_body_bytes"`
}

// EnrichmentConfig holds the shared deadline and per-provider settings.
type EnrichmentConfig struct {
	Timeout    time.Duration    `mapstructure:"timeout"`
	Crunchbase CrunchbaseConfig `mapstructure:"crunchbase"`
	LinkedIn   LinkedInConfig   `mapstructure:"linkedin"`
}

// CrunchbaseConfig configures the company database provider.
type CrunchbaseConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LinkedInConfig configures the professional network provider.
type LinkedInConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	Latency time.Duration `mapstructure:"latency"`
}

// RetentionConfig bounds how long profiles are kept. Zero days disables pruning.
type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

// ReportsConfig selects the optional report archive: a GCS bucket when
// GCSBucket is set, else a local directory when ArchiveDir is set.
type ReportsConfig struct {
	ArchiveDir string `mapstructure:"archive_dir"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
}

// PubSubConfig enables analysis-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether both project and topic are configured.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.TopicName != ""
}

// TracingConfig controls the OpenTelemetry tracer provider.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	// LogSpans writes finished spans to the debug log.
	LogSpans bool `mapstructure:"log_spans"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", 120*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", true)
	v.SetDefault("crawler.user_agent", "JobAnalyzer/1.0 (+https://yourcompany.com/bot)")
	v.SetDefault("crawler.robots_agent", "JobAnalyzer")
	v.SetDefault("crawler.max_concurrent_requests", 10)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.crawl_delay", time.Second)
	v.SetDefault("crawler.respect_robots_txt", true)
	v.SetDefault("crawler.max_redirects", 5)
	v.SetDefault("crawler.max_pages", 3)
	v.SetDefault("crawler.max_body_bytes", 5*1024*1024)
	v.SetDefault("enrichment.timeout", 30*time.Second)
	v.SetDefault("enrichment.crunchbase.enabled", false)
	v.SetDefault("enrichment.crunchbase.api_key", "")
	v.SetDefault("enrichment.crunchbase.base_url", "https://api.crunchbase.com/api/v4")
	v.SetDefault("enrichment.crunchbase.timeout", 30*time.Second)
	v.SetDefault("enrichment.linkedin.enabled", false)
	v.SetDefault("enrichment.linkedin.api_key", "")
	v.SetDefault("enrichment.linkedin.latency", 500*time.Millisecond)
	v.SetDefault("retention.days", 90)
	v.SetDefault("reports.archive_dir", "")
	v.SetDefault("reports.gcs_bucket", "")
	v.SetDefault("reports.gcs_prefix", "reports")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("tracing.service_name", "company-analyzer")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.log_spans", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("crawler.max_concurrent_requests must be > 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.CrawlDelay < 0 {
		return fmt.Errorf("crawler.crawl_delay must be >= 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MaxRedirects < 0 {
		return fmt.Errorf("crawler.max_redirects must be >= 0")
	}
	if c.Enrichment.Timeout <= 0 {
		return fmt.Errorf("enrichment.timeout must be > 0")
	}
	if c.Enrichment.Crunchbase.Enabled && c.Enrichment.Crunchbase.APIKey == "" {
		return fmt.Errorf("enrichment.crunchbase.api_key must be set when crunchbase is enabled")
	}
	if c.Enrichment.LinkedIn.Enabled && c.Enrichment.LinkedIn.APIKey == "" {
		return fmt.Errorf("enrichment.linkedin.api_key must be set when linkedin is enabled")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be >= 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RetentionCutoff returns the instant before which profiles are eligible for
// pruning, and false when retention is disabled.
func (c Config) RetentionCutoff(now time.Time) (time.Time, bool) {
	if c.Retention.Days == 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -c.Retention.Days), true
}

package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CrawlLogEntry is the audit record written for every fetch attempt.
type CrawlLogEntry struct {
	ProfileID        uuid.UUID
	URL              string
	StatusCode       *int
	Success          bool
	ErrorMessage     *string
	ResponseTimeMs   int64
	ContentLength    int64
	RobotsTxtAllowed bool
	CreatedAt        time.Time
}

// CrawlLogRecorder persists crawl log entries.
type CrawlLogRecorder interface {
	RecordCrawl(ctx context.Context, entry CrawlLogEntry) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Options configures a crawl session.
type Options struct {
	UserAgent             string
	RobotsAgent           string
	MaxConcurrentRequests int
	RequestTimeout        time.Duration
	CrawlDelay            time.Duration
	RespectRobotsTxt      bool
	MaxRedirects          int
	MaxBodyBytes          int
}

// Request headers sent with every page fetch.
const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
)

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "JobAnalyzer/1.0 (+https://yourcompany.com/bot)"
	}
	if o.RobotsAgent == "" {
		o.RobotsAgent = "JobAnalyzer"
	}
	if o.MaxConcurrentRequests <= 0 {
		o.MaxConcurrentRequests = 10
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxRedirects < 0 {
		o.MaxRedirects = 0
	}
	return o
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type discardRecorder struct{}

func (discardRecorder) RecordCrawl(context.Context, CrawlLogEntry) error { return nil }

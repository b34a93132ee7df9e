package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/metrics"
	"github.com/JakeFAU/company-analyzer/internal/telemetry"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const robotsDeniedMessage = "Blocked by robots.txt"

// Fetcher retrieves single pages through a colly collector. Every call writes
// exactly one crawl log entry and never returns an error: a failed fetch is
// reported as an empty result.
type Fetcher struct {
	base       *colly.Collector
	politeness *Politeness
	sem        *semaphore.Weighted
	recorder   CrawlLogRecorder
	clock      Clock
	logger     *zap.Logger
}

// NewFetcher builds a Fetcher. sem bounds in-flight requests and is normally
// shared by every session of a Factory; a nil sem gets a private ceiling of
// opts.MaxConcurrentRequests.
func NewFetcher(
	opts Options,
	transport http.RoundTripper,
	politeness *Politeness,
	sem *semaphore.Weighted,
	recorder CrawlLogRecorder,
	clock Clock,
	logger *zap.Logger,
) *Fetcher {
	opts = opts.withDefaults()
	if transport == nil {
		transport = NewHTTPTransport()
	}
	if politeness == nil {
		politeness = NewPoliteness(nil, nil, logger)
	}
	if sem == nil {
		sem = semaphore.NewWeighted(int64(opts.MaxConcurrentRequests))
	}
	if recorder == nil {
		recorder = discardRecorder{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		base:       newBaseCollector(opts, transport),
		politeness: politeness,
		sem:        sem,
		recorder:   recorder,
		clock:      clock,
		logger:     logger,
	}
}

func newBaseCollector(opts Options, transport http.RoundTripper) *colly.Collector {
	c := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.DetectCharset(),
	)
	c.MaxBodySize = opts.MaxBodyBytes
	c.WithTransport(transport)
	c.SetRequestTimeout(opts.RequestTimeout)
	maxRedirects := opts.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})
	return c
}

// NewHTTPTransport returns the pooled transport shared by every session.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

type fetchOutcome struct {
	status int
	body   []byte
	err    error
}

// Fetch returns the decoded body of rawURL and true on a 2xx response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, analysisID uuid.UUID) (string, bool) {
	ctx, span := telemetry.Tracer().Start(ctx, "fetch_page", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	entry := CrawlLogEntry{
		ProfileID:        analysisID,
		URL:              rawURL,
		RobotsTxtAllowed: true,
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		f.finish(ctx, entry, fmt.Errorf("acquire fetch slot: %w", err))
		return "", false
	}
	defer f.sem.Release(1)

	if !f.politeness.IsAllowed(ctx, rawURL) {
		entry.RobotsTxtAllowed = false
		f.finish(ctx, entry, errors.New(robotsDeniedMessage))
		return "", false
	}

	if err := f.politeness.WaitForSlot(ctx, DomainOf(rawURL)); err != nil {
		f.finish(ctx, entry, err)
		return "", false
	}

	start := time.Now()
	outcome := f.visit(ctx, rawURL)
	elapsed := time.Since(start)
	entry.ResponseTimeMs = elapsed.Milliseconds()
	metrics.ObserveCrawl(outcome.status, elapsed)

	if outcome.status > 0 {
		code := outcome.status
		entry.StatusCode = &code
		entry.ContentLength = int64(len(outcome.body))
	}

	switch {
	case outcome.err != nil:
		f.logger.Warn("fetch failed",
			zap.String("url", rawURL),
			zap.Int64("response_time_ms", entry.ResponseTimeMs),
			zap.Error(outcome.err),
		)
		f.finish(ctx, entry, outcome.err)
		return "", false
	case outcome.status < 200 || outcome.status > 299:
		f.logger.Warn("fetch returned non-success status",
			zap.String("url", rawURL),
			zap.Int("status_code", outcome.status),
		)
		f.finish(ctx, entry, fmt.Errorf("HTTP %d", outcome.status))
		return "", false
	}

	entry.Success = true
	f.finish(ctx, entry, nil)
	f.logger.Info("fetched page",
		zap.String("url", rawURL),
		zap.Int("status_code", outcome.status),
		zap.Int64("content_length", entry.ContentLength),
		zap.Int64("response_time_ms", entry.ResponseTimeMs),
	)
	return string(outcome.body), true
}

func (f *Fetcher) visit(ctx context.Context, rawURL string) fetchOutcome {
	collector := f.base.Clone()
	collector.Context = ctx

	var outcome fetchOutcome
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguageHeader)
	})
	collector.OnResponse(func(r *colly.Response) {
		outcome.status = r.StatusCode
		outcome.body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			outcome.status = r.StatusCode
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		outcome.err = err
	})

	if err := f.runCollector(ctx, collector, rawURL); err != nil && outcome.err == nil {
		outcome.err = err
	}
	return outcome
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		// The collector shares ctx, so the in-flight request unwinds promptly;
		// wait for it so callbacks never outlive this call.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// finish writes the crawl log entry and copies it onto the fetch span.
// Recording failures are logged only.
func (f *Fetcher) finish(ctx context.Context, entry CrawlLogEntry, cause error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Bool("success", entry.Success),
		attribute.Bool("robots_txt_allowed", entry.RobotsTxtAllowed),
		attribute.Int64("content_length", entry.ContentLength),
	)
	if entry.StatusCode != nil {
		span.SetAttributes(attribute.Int("status_code", *entry.StatusCode))
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
		span.SetStatus(codes.Error, msg)
	}
	entry.CreatedAt = f.clock.Now()
	if err := f.recorder.RecordCrawl(context.WithoutCancel(ctx), entry); err != nil {
		f.logger.Error("failed to record crawl log",
			zap.String("url", entry.URL),
			zap.Error(err),
		)
	}
}

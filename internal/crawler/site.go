package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/company-analyzer/internal/policy/ratelimit"
	"github.com/JakeFAU/company-analyzer/internal/telemetry"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// maxCandidateLinks bounds how many discovered links a crawl will follow.
const maxCandidateLinks = 3

var deniedPathFragments = []string{
	"/api/", "/ajax/", "/static/", "/assets/",
	"/css/", "/js/", "/images/", "/img/",
	"/admin/", "/dashboard/", "/login/",
	".json", ".xml", ".pdf", ".doc",
}

var contentLinkKeywords = []string{
	"about", "company", "team", "culture", "careers",
	"jobs", "mission", "values", "story",
}

// PageFetcher fetches one page on behalf of an analysis.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, analysisID uuid.UUID) (string, bool)
}

// SiteCrawler fetches a start page and a few same-domain company pages it
// links to. Pages are fetched one at a time in document order.
type SiteCrawler struct {
	fetcher PageFetcher
	logger  *zap.Logger
}

// NewSiteCrawler builds a SiteCrawler on top of fetcher.
func NewSiteCrawler(fetcher PageFetcher, logger *zap.Logger) *SiteCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteCrawler{fetcher: fetcher, logger: logger}
}

// CrawlSite returns the bodies of up to maxPages successfully fetched pages,
// start page first. An empty result means the start page failed.
func (s *SiteCrawler) CrawlSite(ctx context.Context, startURL string, analysisID uuid.UUID, maxPages int) []string {
	if maxPages <= 0 {
		return nil
	}
	ctx, span := telemetry.Tracer().Start(ctx, "crawl_site", trace.WithAttributes(
		attribute.String("start_url", startURL),
		attribute.Int("max_pages", maxPages),
	))
	defer span.End()

	visited := visitedSet{}
	visited.markIfNew(startURL)

	main, ok := s.fetcher.Fetch(ctx, startURL, analysisID)
	if !ok || main == "" {
		s.logger.Info("start page not crawlable", zap.String("url", startURL))
		return nil
	}
	pages := []string{main}

	if len(pages) < maxPages {
		for _, link := range DiscoverLinks(main, startURL) {
			if len(pages) >= maxPages || ctx.Err() != nil {
				break
			}
			if !visited.markIfNew(link) {
				continue
			}
			if body, ok := s.fetcher.Fetch(ctx, link, analysisID); ok && body != "" {
				pages = append(pages, body)
			}
		}
	}

	span.SetAttributes(attribute.Int("pages_crawled", len(pages)))
	s.logger.Info("site crawl completed",
		zap.String("start_url", startURL),
		zap.Int("pages_crawled", len(pages)),
	)
	return pages
}

// visitedSet holds the normalized URLs one crawl has already requested.
type visitedSet map[string]struct{}

// markIfNew records rawURL and reports whether it was not seen before.
func (v visitedSet) markIfNew(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	key, err := NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}
	if _, seen := v[key]; seen {
		return false
	}
	v[key] = struct{}{}
	return true
}

// DiscoverLinks scans body for same-domain links that look like company
// pages and returns at most three of them in document order.
func DiscoverLinks(body, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		target := base.ResolveReference(ref)
		if !shouldFollow(target, base) {
			return true
		}
		text := strings.ToLower(sel.Text())
		lowerHref := strings.ToLower(href)
		for _, keyword := range contentLinkKeywords {
			if strings.Contains(text, keyword) || strings.Contains(lowerHref, keyword) {
				links = append(links, target.String())
				break
			}
		}
		return len(links) < maxCandidateLinks
	})
	return links
}

func shouldFollow(target, base *url.URL) bool {
	if !strings.EqualFold(target.Host, base.Host) {
		return false
	}
	path := strings.ToLower(target.Path)
	for _, fragment := range deniedPathFragments {
		if strings.Contains(path, fragment) {
			return false
		}
	}
	return true
}

// Session is the crawl state owned by a single analysis.
type Session struct {
	*SiteCrawler
	Fetcher    *Fetcher
	Politeness *Politeness
}

// Factory creates independent crawl sessions. Sessions share one HTTP
// transport and one fetch ceiling.
type Factory struct {
	opts      Options
	transport http.RoundTripper
	sem       *semaphore.Weighted
	recorder  CrawlLogRecorder
	clock     Clock
	logger    *zap.Logger
}

// NewFactory builds a Factory. A nil transport gets a pooled default.
func NewFactory(opts Options, transport http.RoundTripper, recorder CrawlLogRecorder, clock Clock, logger *zap.Logger) *Factory {
	if transport == nil {
		transport = NewHTTPTransport()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Factory{
		opts:      opts,
		transport: transport,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrentRequests)),
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
	}
}

// NewSession returns a crawler with a fresh robots cache and pacer. Its
// fetcher draws on the factory-wide concurrency ceiling.
func (f *Factory) NewSession() *Session {
	var robots *RobotsCache
	if f.opts.RespectRobotsTxt {
		client := &http.Client{Transport: f.transport, Timeout: f.opts.RequestTimeout}
		robots = NewRobotsCache(client, f.opts.UserAgent, f.opts.RobotsAgent, f.logger)
	}
	politeness := NewPoliteness(robots, ratelimit.New(f.opts.CrawlDelay), f.logger)
	fetcher := NewFetcher(f.opts, f.transport, politeness, f.sem, f.recorder, f.clock, f.logger)
	return &Session{
		SiteCrawler: NewSiteCrawler(fetcher, f.logger),
		Fetcher:     fetcher,
		Politeness:  politeness,
	}
}

package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBytes = 1 << 20

// RobotsCache fetches robots.txt once per domain and remembers the result for
// the lifetime of a crawl session. Domains whose robots.txt could not be
// loaded are cached as permissive.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	agent     string
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[string]*robotstxt.Group
	loaded  map[string]bool
}

// NewRobotsCache builds a cache that fetches with client and evaluates rules
// for the logical agent.
func NewRobotsCache(client *http.Client, userAgent, agent string, logger *zap.Logger) *RobotsCache {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		agent:     agent,
		logger:    logger,
		entries:   make(map[string]*robotstxt.Group),
		loaded:    make(map[string]bool),
	}
}

// Allowed reports whether the logical agent may fetch rawURL.
func (r *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	group := r.group(ctx, parsed)
	if group == nil {
		return true
	}
	return group.Test(parsed.RequestURI())
}

// cached reports whether the domain's policy has been loaded.
func (r *RobotsCache) cached(domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded[strings.ToLower(domain)]
}

func (r *RobotsCache) group(ctx context.Context, parsed *url.URL) *robotstxt.Group {
	domain := strings.ToLower(parsed.Host)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded[domain] {
		return r.entries[domain]
	}

	data, err := r.fetch(ctx, parsed.Scheme, domain)
	if err != nil {
		r.logger.Warn("robots.txt unavailable; allowing access",
			zap.String("domain", domain),
			zap.Error(err),
		)
		r.loaded[domain] = true
		r.entries[domain] = nil
		return nil
	}
	group := data.FindGroup(r.agent)
	r.loaded[domain] = true
	r.entries[domain] = group
	r.logger.Debug("robots.txt loaded", zap.String("domain", domain))
	return group
}

func (r *RobotsCache) fetch(ctx context.Context, scheme, domain string) (*robotstxt.RobotsData, error) {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("failed to close robots response body", zap.Error(cerr))
		}
	}()
	// A server error says nothing about the site's wishes.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	return data, nil
}

// Package ratelimit enforces a minimum interval between requests to the same domain.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/metrics"
	"golang.org/x/time/rate"
)

// Pacer tracks per-domain pacing for one crawl session. A limiter with
// burst 1 refilled every interval never banks more than one request, which
// yields plain minimum spacing rather than bursty token-bucket behavior.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// New creates a Pacer. A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until a request to domain is permitted, respecting the context.
func (p *Pacer) Wait(ctx context.Context, domain string) error {
	if p.interval <= 0 {
		return nil
	}
	p.mu.Lock()
	limiter, ok := p.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.interval), 1)
		p.limiters[domain] = limiter
	}
	p.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// An immediately granted slot is not a delay.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, waited)
	}
	return nil
}

package crawler

import (
	"context"

	"github.com/JakeFAU/company-analyzer/internal/metrics"
	"github.com/JakeFAU/company-analyzer/internal/policy/ratelimit"
	"go.uber.org/zap"
)

// Politeness combines the robots.txt cache and per-domain pacing for one
// crawl session.
type Politeness struct {
	robots *RobotsCache
	pacer  *ratelimit.Pacer
	logger *zap.Logger
}

// NewPoliteness builds a controller. A nil robots cache allows every URL.
func NewPoliteness(robots *RobotsCache, pacer *ratelimit.Pacer, logger *zap.Logger) *Politeness {
	if pacer == nil {
		pacer = ratelimit.New(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Politeness{robots: robots, pacer: pacer, logger: logger}
}

// IsAllowed reports whether robots.txt permits fetching rawURL. A denial is
// counted and logged, never returned as an error.
func (p *Politeness) IsAllowed(ctx context.Context, rawURL string) bool {
	if p.robots == nil {
		return true
	}
	if p.robots.Allowed(ctx, rawURL) {
		return true
	}
	metrics.ObserveRobotsBlock()
	p.logger.Info("url blocked by robots.txt", zap.String("url", rawURL))
	return false
}

// WaitForSlot blocks until domain may be requested again.
func (p *Politeness) WaitForSlot(ctx context.Context, domain string) error {
	return p.pacer.Wait(ctx, domain)
}

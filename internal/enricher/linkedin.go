package enricher

import (
	"context"
	"strings"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/rotisserie/eris"
)

const (
	linkedInName           = "linkedin"
	linkedInDefaultLatency = 500 * time.Millisecond
)

// LinkedInOptions configures LinkedInProvider.
type LinkedInOptions struct {
	Enabled bool
	APIKey  string
	Latency time.Duration
}

// LinkedInProvider stands in for a professional-network API. It derives a
// profile URL from the company name and fills a few generic fields.
type LinkedInProvider struct {
	opts LinkedInOptions
}

// NewLinkedInProvider builds the provider. A negative latency disables the
// simulated delay.
func NewLinkedInProvider(opts LinkedInOptions) *LinkedInProvider {
	if opts.Latency == 0 {
		opts.Latency = linkedInDefaultLatency
	}
	return &LinkedInProvider{opts: opts}
}

// Name implements Provider.
func (p *LinkedInProvider) Name() string { return linkedInName }

// Enabled implements Provider.
func (p *LinkedInProvider) Enabled() bool { return p.opts.Enabled && p.opts.APIKey != "" }

// CanEnrich implements Provider.
func (p *LinkedInProvider) CanEnrich(data company.Data) bool {
	return p.Enabled() && (company.HasText(data.Name) || company.HasText(data.LinkedInURL))
}

// Enrich implements Provider.
func (p *LinkedInProvider) Enrich(ctx context.Context, data company.Data) (Result, error) {
	start := time.Now()

	if p.opts.Latency > 0 {
		timer := time.NewTimer(p.opts.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{}, eris.Wrap(ctx.Err(), "linkedin lookup")
		case <-timer.C:
		}
	}

	var out company.Data
	if company.HasText(data.Name) {
		if !company.HasText(data.LinkedInURL) {
			slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(*data.Name)), " ", "-")
			out.LinkedInURL = company.Ptr("https://linkedin.com/company/" + slug)
		}
		if data.EmployeeCount == nil || *data.EmployeeCount == 0 {
			out.EmployeeCountRange = company.Ptr("201-500")
		}
		if !company.HasText(data.Industry) {
			out.Industry = company.Ptr("Technology")
		}
	}
	return success(linkedInName, data, out, start), nil
}

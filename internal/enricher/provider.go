// Package enricher augments extracted company data with external providers.
package enricher

import (
	"context"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/rotisserie/eris"
)

// ErrCompanyNotFound is reported when a provider has no record of the company.
var ErrCompanyNotFound = eris.New("company not found")

// Provider is one external data source. Providers are run concurrently and
// must honor ctx.
type Provider interface {
	Name() string
	// Enabled reports whether configuration allows the provider to run.
	Enabled() bool
	// CanEnrich reports whether data carries enough identity to look up.
	CanEnrich(data company.Data) bool
	// Enrich returns a result; a returned error is treated like a failed result.
	Enrich(ctx context.Context, data company.Data) (Result, error)
}

// Result is the outcome of one provider call.
type Result struct {
	Provider   string
	Success    bool
	Data       company.Data
	Error      string
	Confidence float64
	Duration   time.Duration
	Timestamp  time.Time
}

func failure(provider, msg string, start time.Time) Result {
	return Result{
		Provider:  provider,
		Success:   false,
		Error:     msg,
		Duration:  time.Since(start),
		Timestamp: time.Now().UTC(),
	}
}

func success(provider string, original, data company.Data, start time.Time) Result {
	return Result{
		Provider:   provider,
		Success:    true,
		Data:       data,
		Confidence: Confidence(original, data),
		Duration:   time.Since(start),
		Timestamp:  time.Now().UTC(),
	}
}

// Confidence scores how much a provider added relative to what was already
// known. It is informational and never gates a merge.
func Confidence(original, enriched company.Data) float64 {
	added := enriched.PopulatedCount()
	if added == 0 {
		return 0
	}
	have := original.PopulatedCount()
	if have == 0 {
		return 1
	}
	score := float64(added-have) / float64(have)
	return min(1, max(0, score))
}

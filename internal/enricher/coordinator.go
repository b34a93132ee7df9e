package enricher

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/metrics"
	"github.com/JakeFAU/company-analyzer/internal/telemetry"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a whole enrichment round.
const DefaultTimeout = 30 * time.Second

// Outcome is the merged product of an enrichment round.
type Outcome struct {
	Data    company.Data
	Sources []string
	Errors  []string
	Results []Result
}

// Coordinator fans a record out to its providers and merges what comes back.
type Coordinator struct {
	providers []Provider
	logger    *zap.Logger
}

// NewCoordinator builds a Coordinator over providers, kept in the given order.
func NewCoordinator(logger *zap.Logger, providers ...Provider) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	enabled := make([]string, 0, len(providers))
	for _, p := range providers {
		if p.Enabled() {
			enabled = append(enabled, p.Name())
		}
	}
	logger.Info("enrichment providers initialized", zap.Strings("providers", enabled))
	return &Coordinator{providers: providers, logger: logger}
}

type slot struct {
	result Result
	err    error
}

// Enrich runs every applicable provider concurrently under one deadline.
// When the deadline passes first, every provider outcome is discarded and the
// input comes back unchanged. Individual provider failures only add entries
// to Errors. An error is returned only when ctx itself is done.
func (c *Coordinator) Enrich(ctx context.Context, data company.Data, timeout time.Duration) (_ Outcome, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, span := telemetry.Tracer().Start(ctx, "enrich_company_data",
		trace.WithAttributes(attribute.String("company_name", company.Deref(data.Name))))
	defer func() { telemetry.EndSpan(span, err) }()

	out := Outcome{Data: data.Clone(), Sources: []string{}, Errors: []string{}}

	available := 0
	var applicable []Provider
	for _, p := range c.providers {
		if !p.Enabled() {
			continue
		}
		available++
		if p.CanEnrich(data) {
			applicable = append(applicable, p)
		}
	}
	span.SetAttributes(
		attribute.Int("available_providers", available),
		attribute.Int("applicable_providers", len(applicable)),
	)
	if len(applicable) == 0 {
		c.logger.Info("no enrichment providers applicable")
		return out, nil
	}

	names := make([]string, len(applicable))
	for i, p := range applicable {
		names[i] = p.Name()
	}
	c.logger.Info("starting enrichment",
		zap.String("company_name", company.Deref(data.Name)),
		zap.Strings("providers", names),
	)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slots := make([]slot, len(applicable))
	var g errgroup.Group
	for i, p := range applicable {
		g.Go(func() error {
			slots[i] = runProvider(runCtx, p, data.Clone())
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			return Outcome{}, eris.Wrap(err, "enrichment aborted")
		}
		c.logger.Warn("enrichment timed out", zap.Duration("timeout", timeout))
		span.SetAttributes(attribute.Bool("timed_out", true))
		return out, nil
	}

	for i, s := range slots {
		name := applicable[i].Name()
		if s.err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", name, s.err.Error()))
			c.logger.Error("enrichment provider failed", zap.String("provider", name), zap.Error(s.err))
			continue
		}
		out.Results = append(out.Results, s.result)
		if !s.result.Success {
			if s.result.Error != "" {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", s.result.Provider, s.result.Error))
			}
			continue
		}
		out.Sources = append(out.Sources, s.result.Provider)
		out.Data.Overlay(s.result.Data)
		c.logger.Info("enrichment successful",
			zap.String("provider", s.result.Provider),
			zap.Float64("confidence", s.result.Confidence),
			zap.Int64("processing_time_ms", s.result.Duration.Milliseconds()),
		)
	}

	span.SetAttributes(
		attribute.Int("successful_providers", len(out.Sources)),
		attribute.Int("failed_providers", len(out.Errors)),
	)
	c.logger.Info("enrichment completed",
		zap.Strings("sources", out.Sources),
		zap.Int("errors", len(out.Errors)),
	)
	return out, nil
}

// runProvider calls p and converts a panic into an error so one provider
// cannot take down its siblings.
func runProvider(ctx context.Context, p Provider, data company.Data) (s slot) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, p.Name()+"_enrich")
	defer func() {
		if r := recover(); r != nil {
			s = slot{err: eris.Errorf("panic: %v", r)}
		}
		ok := s.err == nil && s.result.Success
		metrics.ObserveEnrichment(p.Name(), ok, time.Since(start))
		span.SetAttributes(attribute.Bool("success", ok))
		if ok {
			span.SetAttributes(attribute.Float64("confidence_score", s.result.Confidence))
		} else if s.err == nil && s.result.Error != "" {
			span.SetAttributes(attribute.String("error", s.result.Error))
		}
		telemetry.EndSpan(span, s.err)
	}()
	result, err := p.Enrich(ctx, data)
	if err != nil {
		return slot{err: err}
	}
	if result.Provider == "" {
		result.Provider = p.Name()
	}
	return slot{result: result}
}

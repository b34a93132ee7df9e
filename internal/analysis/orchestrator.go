// Package analysis runs the crawl, extract, enrich, score, report and persist
// pipeline for one source URL.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/enricher"
	"github.com/JakeFAU/company-analyzer/internal/metrics"
	"github.com/JakeFAU/company-analyzer/internal/report"
	"github.com/JakeFAU/company-analyzer/internal/store"
	"github.com/JakeFAU/company-analyzer/internal/telemetry"
)

// ErrNothingCrawlable is returned when no page of the site could be fetched.
var ErrNothingCrawlable = eris.New("Failed to crawl any content from the provided URL")

// Crawler fetches up to maxPages pages of a site. Implementations are single use.
type Crawler interface {
	CrawlSite(ctx context.Context, startURL string, analysisID uuid.UUID, maxPages int) []string
}

// Extractor turns one page into a company record.
type Extractor interface {
	Extract(body, baseURL string) (company.Data, error)
}

// Enricher merges external provider data into a record.
type Enricher interface {
	Enrich(ctx context.Context, data company.Data, timeout time.Duration) (enricher.Outcome, error)
}

// Renderer produces the markdown report.
type Renderer interface {
	Render(in report.Input) string
}

// Hasher derives the idempotency key of a source URL.
type Hasher interface {
	HashURL(rawURL string) string
}

// IDGenerator issues profile ids.
type IDGenerator interface {
	NewProfileID() (uuid.UUID, error)
}

// Clock supplies wall time.
type Clock interface {
	Now() time.Time
}

// Publisher announces completed analyses.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// CompletedEvent is published after a new profile is persisted.
type CompletedEvent struct {
	ProfileID         uuid.UUID `json:"profile_id"`
	SourceURL         string    `json:"source_url"`
	SourceURLHash     string    `json:"source_url_hash"`
	CompanyName       *string   `json:"company_name"`
	CompletenessScore float64   `json:"completeness_score"`
	ConfidenceScore   float64   `json:"confidence_score"`
	EnrichmentSources []string  `json:"enrichment_sources"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
	ReportURI         string    `json:"report_uri,omitempty"`
}

// Config tunes the pipeline.
type Config struct {
	MaxPages          int
	EnrichmentTimeout time.Duration
}

// Orchestrator coordinates one analysis per call. It holds no per-request
// state; each call gets its own crawler from newCrawler.
type Orchestrator struct {
	profiles   store.ProfileRepository
	newCrawler func() Crawler
	extractor  Extractor
	enricher   Enricher
	renderer   Renderer
	archive    store.ReportArchive
	hasher     Hasher
	ids        IDGenerator
	clock      Clock
	cfg        Config
	logger     *zap.Logger

	publisher Publisher
	topic     string
}

// New constructs an Orchestrator. archive may be nil.
func New(
	profiles store.ProfileRepository,
	newCrawler func() Crawler,
	extractor Extractor,
	enricher Enricher,
	renderer Renderer,
	archive store.ReportArchive,
	hasher Hasher,
	ids IDGenerator,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		profiles:   profiles,
		newCrawler: newCrawler,
		extractor:  extractor,
		enricher:   enricher,
		renderer:   renderer,
		archive:    archive,
		hasher:     hasher,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// WithPublisher announces every persisted analysis on topic. Call it before
// the first Analyze.
func (o *Orchestrator) WithPublisher(p Publisher, topic string) *Orchestrator {
	o.publisher = p
	o.topic = topic
	return o
}

// Analyze returns the profile for req.URL, reusing the latest stored one
// unless req.ForceRefresh is set. Exactly one profile row is written per
// non-cached run, and none when any stage fails.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (_ Response, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "analyze_job_url", trace.WithAttributes(
		attribute.String("url", req.URL),
		attribute.Bool("include_enrichment", req.IncludeEnrichment),
		attribute.Bool("force_refresh", req.ForceRefresh),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	start := o.clock.Now()
	profileID, err := o.ids.NewProfileID()
	if err != nil {
		return Response{}, eris.Wrap(err, "generate profile id")
	}
	span.SetAttributes(attribute.String("profile_id", profileID.String()))
	log := o.logger.With(
		zap.String("profile_id", profileID.String()),
		zap.String("url", req.URL),
		telemetry.TraceField(ctx),
	)
	log.Info("starting analysis",
		zap.Bool("include_enrichment", req.IncludeEnrichment),
		zap.Bool("force_refresh", req.ForceRefresh),
	)

	hash := o.hasher.HashURL(req.URL)
	if !req.ForceRefresh {
		cached, err := o.profiles.LatestByURLHash(ctx, hash)
		switch {
		case err == nil:
			log.Info("returning cached analysis", zap.String("cached_profile_id", cached.ID.String()))
			span.SetAttributes(attribute.Bool("cached", true))
			return ToResponse(cached), nil
		case !errors.Is(err, store.ErrNotFound):
			return Response{}, o.fail(log, start, eris.Wrap(err, "look up cached profile"))
		}
	}

	profile, err := o.run(ctx, req, profileID, hash, start)
	if err != nil {
		return Response{}, o.fail(log, start, err)
	}

	metrics.ObserveAnalysis(true, profile.CompletenessScore, profile.ConfidenceScore)
	span.SetAttributes(
		attribute.Float64("completeness_score", profile.CompletenessScore),
		attribute.Float64("confidence_score", profile.ConfidenceScore),
		attribute.Int64("processing_time_ms", profile.ProcessingTimeMs),
	)
	log.Info("analysis completed",
		zap.Float64("completeness_score", profile.CompletenessScore),
		zap.Float64("confidence_score", profile.ConfidenceScore),
		zap.Int64("processing_time_ms", profile.ProcessingTimeMs),
	)
	o.afterPersist(ctx, log, profile)
	return ToResponse(profile), nil
}

func (o *Orchestrator) run(
	ctx context.Context,
	req Request,
	profileID uuid.UUID,
	hash string,
	start time.Time,
) (store.Profile, error) {
	pages := o.newCrawler().CrawlSite(ctx, req.URL, profileID, o.cfg.MaxPages)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int("pages_crawled", len(pages)))
	if len(pages) == 0 {
		return store.Profile{}, ErrNothingCrawlable
	}

	var merged company.Data
	for _, page := range pages {
		data, err := o.extract(ctx, page, req.URL)
		if err != nil {
			return store.Profile{}, eris.Wrap(err, "extract company data")
		}
		merged.FillMissing(data)
	}

	sources, enrichErrors := []string{}, []string{}
	if req.IncludeEnrichment {
		outcome, err := o.enricher.Enrich(ctx, merged, o.cfg.EnrichmentTimeout)
		if err != nil {
			return store.Profile{}, eris.Wrap(err, "enrich company data")
		}
		merged = outcome.Data
		sources, enrichErrors = outcome.Sources, outcome.Errors
		span.SetAttributes(
			attribute.Int("enrichment_sources", len(sources)),
			attribute.Int("enrichment_errors", len(enrichErrors)),
		)
	}

	completeness := Completeness(merged)
	confidence := Confidence(merged, len(sources))

	markdown := o.renderer.Render(report.Input{
		Data:         merged,
		Completeness: completeness,
		Confidence:   confidence,
		Sources:      sources,
		Errors:       enrichErrors,
	})

	now := o.clock.Now()
	profile := store.Profile{
		ID:                 profileID,
		SourceURL:          req.URL,
		SourceURLHash:      hash,
		Company:            merged,
		CompletenessScore:  completeness,
		ConfidenceScore:    confidence,
		ProcessingTimeMs:   now.Sub(start).Milliseconds(),
		AnalysisTimestamp:  now,
		EnrichmentEnabled:  req.IncludeEnrichment,
		EnrichmentComplete: len(sources) > 0,
		EnrichmentSources:  sources,
		EnrichmentErrors:   enrichErrors,
		MarkdownReport:     markdown,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := o.profiles.CreateProfile(ctx, profile); err != nil {
		return store.Profile{}, eris.Wrap(err, "save profile")
	}
	return profile, nil
}

// extract wraps one extraction in its own span.
func (o *Orchestrator) extract(ctx context.Context, page, baseURL string) (company.Data, error) {
	_, span := telemetry.Tracer().Start(ctx, "extract_info", trace.WithAttributes(
		attribute.String("url", baseURL),
		attribute.Int("content_length", len(page)),
	))
	data, err := o.extractor.Extract(page, baseURL)
	if err == nil {
		span.SetAttributes(attribute.Int("extracted_fields", data.PopulatedCount()))
	}
	telemetry.EndSpan(span, err)
	return data, err
}

// afterPersist does the best-effort follow-up work of a saved analysis.
func (o *Orchestrator) afterPersist(ctx context.Context, log *zap.Logger, p store.Profile) {
	var uri string
	if o.archive != nil {
		var err error
		uri, err = o.archive.SaveReport(ctx, p.ID, p.AnalysisTimestamp, p.MarkdownReport)
		if err != nil {
			log.Warn("failed to archive report", zap.Error(err))
		} else {
			log.Debug("archived report", zap.String("uri", uri))
		}
	}
	if o.publisher != nil {
		id, err := o.publisher.Publish(ctx, o.topic, CompletedEvent{
			ProfileID:         p.ID,
			SourceURL:         p.SourceURL,
			SourceURLHash:     p.SourceURLHash,
			CompanyName:       p.Company.Name,
			CompletenessScore: p.CompletenessScore,
			ConfidenceScore:   p.ConfidenceScore,
			EnrichmentSources: nonNil(p.EnrichmentSources),
			AnalysisTimestamp: p.AnalysisTimestamp,
			ReportURI:         uri,
		})
		if err != nil {
			log.Warn("failed to publish analysis event", zap.String("topic", o.topic), zap.Error(err))
		} else {
			log.Debug("published analysis event", zap.String("message_id", id))
		}
	}
	if n, err := o.profiles.CountProfiles(ctx); err == nil {
		metrics.SetActiveProfiles(n)
	}
}

func (o *Orchestrator) fail(log *zap.Logger, start time.Time, err error) error {
	metrics.ObserveAnalysis(false, 0, 0)
	log.Error("analysis failed",
		zap.Int64("processing_time_ms", o.clock.Now().Sub(start).Milliseconds()),
		zap.Error(err),
	)
	return err
}

// Package app builds the long-lived services of the analyzer from configuration
// and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/company-analyzer/internal/analysis"
	"github.com/JakeFAU/company-analyzer/internal/api"
	"github.com/JakeFAU/company-analyzer/internal/clock/system"
	"github.com/JakeFAU/company-analyzer/internal/config"
	"github.com/JakeFAU/company-analyzer/internal/crawler"
	"github.com/JakeFAU/company-analyzer/internal/enricher"
	"github.com/JakeFAU/company-analyzer/internal/extractor"
	"github.com/JakeFAU/company-analyzer/internal/hash/sha256"
	"github.com/JakeFAU/company-analyzer/internal/id/uuid"
	"github.com/JakeFAU/company-analyzer/internal/logging"
	"github.com/JakeFAU/company-analyzer/internal/metrics"
	gcppublisher "github.com/JakeFAU/company-analyzer/internal/publisher/pubsub"
	"github.com/JakeFAU/company-analyzer/internal/report"
	"github.com/JakeFAU/company-analyzer/internal/retry"
	gcsstorage "github.com/JakeFAU/company-analyzer/internal/storage/gcs"
	localstorage "github.com/JakeFAU/company-analyzer/internal/storage/local"
	memorystorage "github.com/JakeFAU/company-analyzer/internal/storage/memory"
	pgstore "github.com/JakeFAU/company-analyzer/internal/storage/postgres"
	"github.com/JakeFAU/company-analyzer/internal/store"
	"github.com/JakeFAU/company-analyzer/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	eventType       = "analysis.completed"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	repo         store.Repository
	archive      store.ReportArchive
	orchestrator *analysis.Orchestrator
	apiServer    *api.Server
	clock        system.Clock

	tracerProvider  *sdktrace.TracerProvider
	storage         *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
}

// Build creates the application's dependencies. The logger is installed as
// the zap global.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger, clock: system.New()}
	app.tracerProvider = telemetry.InitTracerProvider(tracingOptions(cfg.Tracing, logger))
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("database", cfg.Database.DSN != ""),
		zap.Int("max_pages", cfg.Crawler.MaxPages),
	)

	if err := app.setupRepository(ctx); err != nil {
		return nil, err
	}
	if err := app.setupArchive(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	factory := crawler.NewFactory(
		crawlerOptions(cfg.Crawler),
		nil,
		app.repo,
		app.clock,
		logger.Named("crawler"),
	)
	coordinator := setupEnrichment(cfg.Enrichment, logger.Named("enricher"))

	app.orchestrator = analysis.New(
		app.repo,
		func() analysis.Crawler { return factory.NewSession() },
		extractor.New(),
		coordinator,
		report.NewRenderer(app.clock),
		app.archive,
		sha256.New(),
		uuid.New(),
		app.clock,
		analysis.Config{
			MaxPages:          cfg.Crawler.MaxPages,
			EnrichmentTimeout: cfg.Enrichment.Timeout,
		},
		logger.Named("analysis"),
	)
	if publisher != nil {
		app.orchestrator.WithPublisher(publisher, cfg.PubSub.TopicName)
	}

	app.apiServer = api.NewServer(
		app.orchestrator,
		app.repo,
		app.clock,
		cfg.Server,
		logger.Named("api"),
	)

	if n, err := app.repo.CountProfiles(ctx); err == nil {
		metrics.SetActiveProfiles(n)
	}
	return app, nil
}

// Analyze runs one analysis through the orchestrator.
func (a *App) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	return a.orchestrator.Analyze(ctx, req)
}

// Repository exposes the profile store.
func (a *App) Repository() store.Repository {
	return a.repo
}

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves the API until ctx is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := a.cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
		return nil
	}
}

// Prune deletes profiles analyzed more than retention.days before now. Zero
// days disables pruning.
func (a *App) Prune(ctx context.Context, now time.Time) (int64, error) {
	cutoff, ok := a.cfg.RetentionCutoff(now)
	if !ok {
		a.logger.Info("retention disabled, nothing pruned")
		return 0, nil
	}
	n, err := a.repo.DeleteProfilesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune profiles: %w", err)
	}
	a.logger.Info("pruned profiles", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	if total, err := a.repo.CountProfiles(ctx); err == nil {
		metrics.SetActiveProfiles(total)
	}
	return n, nil
}

// Close releases clients and the repository and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

func (a *App) setupRepository(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database DSN configured, profiles are kept in memory")
		a.repo = memorystorage.NewStore()
		return nil
	}
	pg, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("profile store init failed: %w", err)
	}
	if a.cfg.Database.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("schema migration failed: %w", err)
		}
		a.logger.Info("database schema ready")
	}
	a.repo = pg
	return nil
}

func (a *App) setupArchive(ctx context.Context) error {
	reports := a.cfg.Reports
	switch {
	case reports.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		archive, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: reports.GCSBucket,
			Prefix: reports.GCSPrefix,
		})
		if err != nil {
			return fmt.Errorf("report archive init failed: %w", err)
		}
		a.logger.Info("archiving reports to GCS",
			zap.String("bucket", reports.GCSBucket),
			zap.String("prefix", reports.GCSPrefix),
		)
		a.archive = archive
	case reports.ArchiveDir != "":
		archive, err := localstorage.New(localstorage.Config{BaseDir: reports.ArchiveDir})
		if err != nil {
			return fmt.Errorf("report archive init failed: %w", err)
		}
		a.logger.Info("archiving reports locally", zap.String("path", reports.ArchiveDir))
		a.archive = archive
	default:
		a.logger.Debug("report archive disabled")
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (analysis.Publisher, error) {
	if !a.cfg.PubSub.Enabled() {
		a.logger.Debug("no Pub/Sub topic configured, analysis events are not published")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(a.pubsubPublisher, eventType), nil
}

func tracingOptions(c config.TracingConfig, logger *zap.Logger) telemetry.Options {
	opts := telemetry.Options{
		ServiceName:    c.ServiceName,
		ServiceVersion: api.Version,
		SampleRatio:    c.SampleRatio,
	}
	if c.LogSpans {
		opts.Exporter = telemetry.NewLogExporter(logger.Named("trace"))
	}
	return opts
}

func crawlerOptions(c config.CrawlerConfig) crawler.Options {
	return crawler.Options{
		UserAgent:             c.UserAgent,
		RobotsAgent:           c.RobotsAgent,
		MaxConcurrentRequests: c.MaxConcurrentRequests,
		RequestTimeout:        c.RequestTimeout,
		CrawlDelay:            c.CrawlDelay,
		RespectRobotsTxt:      c.RespectRobotsTxt,
		MaxRedirects:          c.MaxRedirects,
		MaxBodyBytes:          c.MaxBodyBytes,
	}
}

// setupEnrichment registers providers in merge order: later providers win.
func setupEnrichment(c config.EnrichmentConfig, logger *zap.Logger) *enricher.Coordinator {
	crunchbase := enricher.NewCrunchbaseProvider(enricher.CrunchbaseOptions{
		Enabled: c.Crunchbase.Enabled,
		APIKey:  c.Crunchbase.APIKey,
		BaseURL: c.Crunchbase.BaseURL,
		Timeout: c.Crunchbase.Timeout,
		Retry:   retry.DefaultPolicy(),
	}, nil, logger.Named("crunchbase"))
	linkedin := enricher.NewLinkedInProvider(enricher.LinkedInOptions{
		Enabled: c.LinkedIn.Enabled,
		APIKey:  c.LinkedIn.APIKey,
		Latency: c.LinkedIn.Latency,
	})
	logger.Info("enrichment providers configured",
		zap.Bool("crunchbase", crunchbase.Enabled()),
		zap.Bool("linkedin", linkedin.Enabled()),
	)
	return enricher.NewCoordinator(logger, crunchbase, linkedin)
}

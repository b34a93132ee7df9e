// Package store declares interfaces for persisting analyses.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/crawler"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("profile not found")

// Profile is one persisted analysis of a source URL.
type Profile struct {
	// ID is assigned at the start of each analysis run.
	ID        uuid.UUID
	SourceURL string
	// SourceURLHash is the idempotency key; several rows may share it.
	SourceURLHash string
	Company       company.Data

	CompletenessScore float64
	ConfidenceScore   float64
	ProcessingTimeMs  int64
	AnalysisTimestamp time.Time

	EnrichmentEnabled  bool
	EnrichmentComplete bool
	EnrichmentSources  []string
	EnrichmentErrors   []string

	MarkdownReport string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileRepository persists company profiles.
type ProfileRepository interface {
	// LatestByURLHash returns the most recent profile for hash or ErrNotFound.
	LatestByURLHash(ctx context.Context, hash string) (Profile, error)
	// GetProfile loads one profile or returns ErrNotFound.
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
	// CreateProfile inserts a new row. Profiles are never updated in place.
	CreateProfile(ctx context.Context, p Profile) error
	// DeleteProfilesBefore removes profiles analyzed before cutoff together
	// with their crawl logs and reports how many profiles were removed.
	DeleteProfilesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// CountProfiles returns the number of stored profiles.
	CountProfiles(ctx context.Context) (int64, error)
}

// CrawlLogRepository persists one entry per fetch attempt.
type CrawlLogRepository interface {
	crawler.CrawlLogRecorder
	// ListCrawlLogs returns the entries for one analysis in insertion order.
	ListCrawlLogs(ctx context.Context, profileID uuid.UUID) ([]crawler.CrawlLogEntry, error)
}

// Repository is the full persistence surface the service needs.
type Repository interface {
	ProfileRepository
	CrawlLogRepository
	Close()
}

// ReportArchive keeps a copy of each generated markdown report outside the
// profile row.
type ReportArchive interface {
	// SaveReport stores report and returns a URI naming where it went.
	SaveReport(ctx context.Context, profileID uuid.UUID, analyzedAt time.Time, report string) (string, error)
}

// ReportPath is the archive-relative location of a report: <yyyy-mm-dd>/<id>.md.
func ReportPath(profileID uuid.UUID, analyzedAt time.Time) string {
	return analyzedAt.UTC().Format("2006-01-02") + "/" + profileID.String() + ".md"
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/crawler"
	"github.com/JakeFAU/company-analyzer/internal/store"
)

var profileColumnNames = []string{
	"id", "source_url", "source_url_hash",
	"company_name", "company_description", "industry", "website",
	"employee_count", "employee_count_range", "funding_stage", "total_funding",
	"headquarters", "linkedin_url", "twitter_url", "logo_url", "founded_year",
	"locations", "tech_stack", "benefits", "culture_keywords",
	"completeness_score", "confidence_score", "processing_time_ms", "analysis_timestamp",
	"enrichment_enabled", "enrichment_complete", "enrichment_sources", "enrichment_errors",
	"markdown_report", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	s, err := NewWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func sampleProfile() store.Profile {
	now := time.Unix(1700000000, 0).UTC()
	return store.Profile{
		ID:            uuid.MustParse("0d9c1a4e-6a53-4f8e-b1f5-0c6a9f1d2e3b"),
		SourceURL:     "https://acme.example",
		SourceURLHash: "abc123",
		Company: company.Data{
			Name:          company.Ptr("Acme"),
			EmployeeCount: company.Ptr(150),
			TotalFunding:  company.Ptr(25.0),
			Locations:     []string{"Austin, TX"},
			TechStack:     []string{"Go", "PostgreSQL"},
		},
		CompletenessScore:  0.5,
		ConfidenceScore:    0.74,
		ProcessingTimeMs:   1234,
		AnalysisTimestamp:  now,
		EnrichmentEnabled:  true,
		EnrichmentComplete: true,
		EnrichmentSources:  []string{"linkedin"},
		EnrichmentErrors:   []string{"crunchbase: Company not found in Crunchbase"},
		MarkdownReport:     "# Acme - Company Analysis Report",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func profileRow(p store.Profile) []any {
	d := p.Company
	return []any{
		p.ID, p.SourceURL, p.SourceURLHash,
		d.Name, d.Description, d.Industry, d.Website,
		d.EmployeeCount, d.EmployeeCountRange, d.FundingStage, d.TotalFunding,
		d.Headquarters, d.LinkedInURL, d.TwitterURL, d.LogoURL, d.FoundedYear,
		[]byte(`{"locations":["Austin, TX"]}`),
		[]byte(`{"tech_stack":["Go","PostgreSQL"]}`),
		[]byte(`{"benefits":[]}`),
		[]byte(`{"culture_keywords":[]}`),
		p.CompletenessScore, p.ConfidenceScore, p.ProcessingTimeMs, p.AnalysisTimestamp,
		p.EnrichmentEnabled, p.EnrichmentComplete,
		[]byte(`{"sources":["linkedin"]}`),
		[]byte(`{"errors":["crunchbase: Company not found in Crunchbase"]}`),
		p.MarkdownReport, p.CreatedAt, p.UpdatedAt,
	}
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	assert.Error(t, err)
}

func TestCreateProfileInsertsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	p := sampleProfile()

	mock.ExpectExec("INSERT INTO company_profiles").
		WithArgs(profileRow(p)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateProfile(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProfileWrapsError(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO company_profiles").
		WithArgs(profileRow(sampleProfile())...).
		WillReturnError(errors.New("connection refused"))

	err := s.CreateProfile(context.Background(), sampleProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert profile")
}

func TestLatestByURLHash(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	p := sampleProfile()

	mock.ExpectQuery("FROM company_profiles\\s+WHERE source_url_hash = \\$1\\s+ORDER BY analysis_timestamp DESC").
		WithArgs("abc123").
		WillReturnRows(mock.NewRows(profileColumnNames).AddRow(profileRow(p)...))

	got, err := s.LatestByURLHash(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Acme", *got.Company.Name)
	assert.Equal(t, 150, *got.Company.EmployeeCount)
	assert.Nil(t, got.Company.Description)
	assert.Equal(t, []string{"Austin, TX"}, got.Company.Locations)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, got.Company.TechStack)
	assert.Nil(t, got.Company.Benefits)
	assert.Equal(t, []string{"linkedin"}, got.EnrichmentSources)
	assert.Equal(t, []string{"crunchbase: Company not found in Crunchbase"}, got.EnrichmentErrors)
	assert.Equal(t, int64(1234), got.ProcessingTimeMs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestByURLHashNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM company_profiles").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestByURLHash(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetProfile(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	p := sampleProfile()

	mock.ExpectQuery("FROM company_profiles\\s+WHERE id = \\$1").
		WithArgs(p.ID).
		WillReturnRows(mock.NewRows(profileColumnNames).AddRow(profileRow(p)...))

	got, err := s.GetProfile(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.SourceURL, got.SourceURL)
	assert.InDelta(t, 25.0, *got.Company.TotalFunding, 1e-9)

	missing := uuid.New()
	mock.ExpectQuery("FROM company_profiles").
		WithArgs(missing).
		WillReturnError(pgx.ErrNoRows)
	_, err = s.GetProfile(context.Background(), missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProfilesBefore(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM crawl_logs").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec("DELETE FROM company_profiles").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	removed, err := s.DeleteProfilesBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProfilesBeforeRollsBack(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM crawl_logs").
		WithArgs(cutoff).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := s.DeleteProfilesBefore(context.Background(), cutoff)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountProfiles(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM company_profiles").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.CountProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRecordCrawlInsertsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	status := 200
	entry := crawler.CrawlLogEntry{
		ProfileID:        uuid.New(),
		URL:              "https://acme.example/about",
		StatusCode:       &status,
		Success:          true,
		ResponseTimeMs:   87,
		ContentLength:    5120,
		RobotsTxtAllowed: true,
		CreatedAt:        time.Unix(1700000000, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO crawl_logs").
		WithArgs(
			entry.ProfileID,
			entry.URL,
			entry.StatusCode,
			entry.Success,
			entry.ErrorMessage,
			entry.ResponseTimeMs,
			entry.ContentLength,
			entry.RobotsTxtAllowed,
			entry.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordCrawl(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCrawlLogs(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	at := time.Unix(1700000000, 0).UTC()
	status := 404
	msg := "HTTP 404"

	mock.ExpectQuery("FROM crawl_logs").
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{
			"profile_id", "url", "status_code", "success", "error_message",
			"response_time_ms", "content_length", "robots_txt_allowed", "created_at",
		}).
			AddRow(id, "https://acme.example", &status, false, &msg, int64(12), int64(0), true, at).
			AddRow(id, "https://acme.example/private", (*int)(nil), false, company.Ptr("Blocked by robots.txt"), int64(0), int64(0), false, at))

	entries, err := s.ListCrawlLogs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 404, *entries[0].StatusCode)
	assert.Equal(t, "HTTP 404", *entries[0].ErrorMessage)
	assert.Nil(t, entries[1].StatusCode)
	assert.False(t, entries[1].RobotsTxtAllowed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS company_profiles").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_company_profiles_source_url_hash").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_company_profiles_analysis_timestamp").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_logs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_crawl_logs_profile_id").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_crawl_logs_created_at").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

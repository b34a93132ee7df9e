package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/company-analyzer/internal/store"
)

const profileColumns = `id, source_url, source_url_hash,
	company_name, company_description, industry, website,
	employee_count, employee_count_range, funding_stage, total_funding,
	headquarters, linkedin_url, twitter_url, logo_url, founded_year,
	locations, tech_stack, benefits, culture_keywords,
	completeness_score, confidence_score, processing_time_ms, analysis_timestamp,
	enrichment_enabled, enrichment_complete, enrichment_sources, enrichment_errors,
	markdown_report, created_at, updated_at`

// CreateProfile inserts a profile row.
func (s *Store) CreateProfile(ctx context.Context, p store.Profile) error {
	defer observe("create_profile", time.Now())

	blobs, err := encodeBlobs(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO company_profiles (` + profileColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		);
	`
	d := p.Company
	_, err = s.pool.Exec(ctx, query,
		p.ID,
		p.SourceURL,
		p.SourceURLHash,
		d.Name,
		d.Description,
		d.Industry,
		d.Website,
		d.EmployeeCount,
		d.EmployeeCountRange,
		d.FundingStage,
		d.TotalFunding,
		d.Headquarters,
		d.LinkedInURL,
		d.TwitterURL,
		d.LogoURL,
		d.FoundedYear,
		blobs.locations,
		blobs.techStack,
		blobs.benefits,
		blobs.cultureKeywords,
		p.CompletenessScore,
		p.ConfidenceScore,
		p.ProcessingTimeMs,
		p.AnalysisTimestamp,
		p.EnrichmentEnabled,
		p.EnrichmentComplete,
		blobs.sources,
		blobs.errors,
		p.MarkdownReport,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// LatestByURLHash returns the most recently analyzed profile for hash.
func (s *Store) LatestByURLHash(ctx context.Context, hash string) (store.Profile, error) {
	defer observe("latest_by_url_hash", time.Now())

	query := `
		SELECT ` + profileColumns + `
		FROM company_profiles
		WHERE source_url_hash = $1
		ORDER BY analysis_timestamp DESC
		LIMIT 1;
	`
	p, err := scanProfile(s.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Profile{}, store.ErrNotFound
		}
		return store.Profile{}, fmt.Errorf("failed to look up profile by url hash: %w", err)
	}
	return p, nil
}

// GetProfile retrieves a single profile by its ID.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (store.Profile, error) {
	defer observe("get_profile", time.Now())

	query := `
		SELECT ` + profileColumns + `
		FROM company_profiles
		WHERE id = $1;
	`
	p, err := scanProfile(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Profile{}, store.ErrNotFound
		}
		return store.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// DeleteProfilesBefore removes profiles analyzed before cutoff along with
// their crawl logs in one transaction.
func (s *Store) DeleteProfilesBefore(ctx context.Context, cutoff time.Time) (removed int64, err error) {
	defer observe("delete_profiles_before", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin retention tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		DELETE FROM crawl_logs
		WHERE profile_id IN (
			SELECT id FROM company_profiles WHERE analysis_timestamp < $1
		);
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete crawl logs: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM company_profiles WHERE analysis_timestamp < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete profiles: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit retention tx: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountProfiles returns the number of stored profiles.
func (s *Store) CountProfiles(ctx context.Context) (int64, error) {
	defer observe("count_profiles", time.Now())

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM company_profiles;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

func scanProfile(row pgx.Row) (store.Profile, error) {
	var (
		p     store.Profile
		blobs profileBlobs
	)
	d := &p.Company
	err := row.Scan(
		&p.ID,
		&p.SourceURL,
		&p.SourceURLHash,
		&d.Name,
		&d.Description,
		&d.Industry,
		&d.Website,
		&d.EmployeeCount,
		&d.EmployeeCountRange,
		&d.FundingStage,
		&d.TotalFunding,
		&d.Headquarters,
		&d.LinkedInURL,
		&d.TwitterURL,
		&d.LogoURL,
		&d.FoundedYear,
		&blobs.locations,
		&blobs.techStack,
		&blobs.benefits,
		&blobs.cultureKeywords,
		&p.CompletenessScore,
		&p.ConfidenceScore,
		&p.ProcessingTimeMs,
		&p.AnalysisTimestamp,
		&p.EnrichmentEnabled,
		&p.EnrichmentComplete,
		&blobs.sources,
		&blobs.errors,
		&p.MarkdownReport,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return store.Profile{}, err
	}
	if err := blobs.decode(&p); err != nil {
		return store.Profile{}, err
	}
	return p, nil
}

// profileBlobs holds the JSONB columns, each an object wrapping one named list.
type profileBlobs struct {
	locations       []byte
	techStack       []byte
	benefits        []byte
	cultureKeywords []byte
	sources         []byte
	errors          []byte
}

func encodeBlobs(p store.Profile) (profileBlobs, error) {
	var (
		b   profileBlobs
		err error
	)
	fields := []struct {
		dst  *[]byte
		key  string
		list []string
	}{
		{&b.locations, "locations", p.Company.Locations},
		{&b.techStack, "tech_stack", p.Company.TechStack},
		{&b.benefits, "benefits", p.Company.Benefits},
		{&b.cultureKeywords, "culture_keywords", p.Company.CultureKeywords},
		{&b.sources, "sources", p.EnrichmentSources},
		{&b.errors, "errors", p.EnrichmentErrors},
	}
	for _, f := range fields {
		if *f.dst, err = wrapList(f.key, f.list); err != nil {
			return profileBlobs{}, err
		}
	}
	return b, nil
}

func (b profileBlobs) decode(p *store.Profile) error {
	fields := []struct {
		raw []byte
		key string
		dst *[]string
	}{
		{b.locations, "locations", &p.Company.Locations},
		{b.techStack, "tech_stack", &p.Company.TechStack},
		{b.benefits, "benefits", &p.Company.Benefits},
		{b.cultureKeywords, "culture_keywords", &p.Company.CultureKeywords},
		{b.sources, "sources", &p.EnrichmentSources},
		{b.errors, "errors", &p.EnrichmentErrors},
	}
	for _, f := range fields {
		list, err := unwrapList(f.key, f.raw)
		if err != nil {
			return err
		}
		*f.dst = list
	}
	return nil
}

func wrapList(key string, list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(map[string][]string{key: list})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", key, err)
	}
	return data, nil
}

func unwrapList(key string, raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wrapped map[string][]string
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	if len(wrapped[key]) == 0 {
		return nil, nil
	}
	return wrapped[key], nil
}

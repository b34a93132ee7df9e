package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS company_profiles (
	id UUID PRIMARY KEY,
	source_url TEXT NOT NULL,
	source_url_hash VARCHAR(64) NOT NULL,
	company_name TEXT,
	company_description TEXT,
	industry TEXT,
	website TEXT,
	employee_count INTEGER,
	employee_count_range TEXT,
	funding_stage TEXT,
	total_funding DOUBLE PRECISION,
	headquarters TEXT,
	linkedin_url TEXT,
	twitter_url TEXT,
	logo_url TEXT,
	founded_year INTEGER,
	locations JSONB NOT NULL DEFAULT '{}'::jsonb,
	tech_stack JSONB NOT NULL DEFAULT '{}'::jsonb,
	benefits JSONB NOT NULL DEFAULT '{}'::jsonb,
	culture_keywords JSONB NOT NULL DEFAULT '{}'::jsonb,
	completeness_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	analysis_timestamp TIMESTAMPTZ NOT NULL,
	enrichment_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	enrichment_complete BOOLEAN NOT NULL DEFAULT FALSE,
	enrichment_sources JSONB NOT NULL DEFAULT '{}'::jsonb,
	enrichment_errors JSONB NOT NULL DEFAULT '{}'::jsonb,
	markdown_report TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_company_profiles_source_url_hash ON company_profiles (source_url_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_company_profiles_analysis_timestamp ON company_profiles (analysis_timestamp)`,
	`CREATE TABLE IF NOT EXISTS crawl_logs (
	id BIGSERIAL PRIMARY KEY,
	profile_id UUID NOT NULL,
	url TEXT NOT NULL,
	status_code INTEGER,
	success BOOLEAN NOT NULL,
	error_message TEXT,
	response_time_ms BIGINT NOT NULL DEFAULT 0,
	content_length BIGINT NOT NULL DEFAULT 0,
	robots_txt_allowed BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_crawl_logs_profile_id ON crawl_logs (profile_id)`,
	`CREATE INDEX IF NOT EXISTS idx_crawl_logs_created_at ON crawl_logs (created_at)`,
}

// Migrate creates the tables and indexes if they do not exist. It is safe to
// run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

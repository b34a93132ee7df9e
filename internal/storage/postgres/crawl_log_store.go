package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/crawler"
)

// RecordCrawl inserts one crawl log row.
func (s *Store) RecordCrawl(ctx context.Context, entry crawler.CrawlLogEntry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("crawl log store is not configured")
	}
	defer observe("record_crawl", time.Now())

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO crawl_logs (
			profile_id,
			url,
			status_code,
			success,
			error_message,
			response_time_ms,
			content_length,
			robots_txt_allowed,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := s.pool.Exec(ctx, query,
		entry.ProfileID,
		entry.URL,
		entry.StatusCode,
		entry.Success,
		entry.ErrorMessage,
		entry.ResponseTimeMs,
		entry.ContentLength,
		entry.RobotsTxtAllowed,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert crawl log: %w", err)
	}
	return nil
}

// ListCrawlLogs returns the crawl log rows of one analysis in insertion order.
func (s *Store) ListCrawlLogs(ctx context.Context, profileID uuid.UUID) ([]crawler.CrawlLogEntry, error) {
	defer observe("list_crawl_logs", time.Now())

	query := `
		SELECT profile_id, url, status_code, success, error_message,
			response_time_ms, content_length, robots_txt_allowed, created_at
		FROM crawl_logs
		WHERE profile_id = $1
		ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl logs: %w", err)
	}
	defer rows.Close()

	var entries []crawler.CrawlLogEntry
	for rows.Next() {
		var e crawler.CrawlLogEntry
		if err := rows.Scan(
			&e.ProfileID,
			&e.URL,
			&e.StatusCode,
			&e.Success,
			&e.ErrorMessage,
			&e.ResponseTimeMs,
			&e.ContentLength,
			&e.RobotsTxtAllowed,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate crawl logs: %w", err)
	}
	return entries, nil
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/company"
	"github.com/JakeFAU/company-analyzer/internal/crawler"
	"github.com/JakeFAU/company-analyzer/internal/store"
)

func newProfile(hash string, at time.Time) store.Profile {
	return store.Profile{
		ID:                uuid.New(),
		SourceURL:         "https://acme.example",
		SourceURLHash:     hash,
		Company:           company.Data{Name: company.Ptr("Acme"), TechStack: []string{"Go"}},
		AnalysisTimestamp: at,
		EnrichmentSources: []string{"linkedin"},
	}
}

func TestStoreProfileLifecycle(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := newProfile("hash-a", base)
	newer := newProfile("hash-a", base.Add(time.Hour))
	other := newProfile("hash-b", base.Add(2*time.Hour))
	for _, p := range []store.Profile{older, newer, other} {
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile() error = %v", err)
		}
	}
	if err := s.CreateProfile(ctx, older); err == nil {
		t.Fatal("expected duplicate id error")
	}

	latest, err := s.LatestByURLHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("LatestByURLHash() error = %v", err)
	}
	if latest.ID != newer.ID {
		t.Fatalf("expected newest profile %s, got %s", newer.ID, latest.ID)
	}
	if _, err := s.LatestByURLHash(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := s.GetProfile(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	got.Company.TechStack[0] = "modified"
	got.EnrichmentSources[0] = "modified"
	again, _ := s.GetProfile(ctx, other.ID)
	if again.Company.TechStack[0] != "Go" || again.EnrichmentSources[0] != "linkedin" {
		t.Fatal("expected GetProfile to return a copy")
	}
	if _, err := s.GetProfile(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	count, err := s.CountProfiles(ctx)
	if err != nil || count != 3 {
		t.Fatalf("CountProfiles() = %d, %v", count, err)
	}
}

func TestStoreCrawlLogsAndRetention(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := newProfile("hash-a", base)
	fresh := newProfile("hash-a", base.Add(48*time.Hour))
	for _, p := range []store.Profile{stale, fresh} {
		if err := s.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile() error = %v", err)
		}
	}
	for _, id := range []uuid.UUID{stale.ID, fresh.ID, fresh.ID} {
		entry := crawler.CrawlLogEntry{ProfileID: id, URL: "https://acme.example", Success: true}
		if err := s.RecordCrawl(ctx, entry); err != nil {
			t.Fatalf("RecordCrawl() error = %v", err)
		}
	}
	logs, err := s.ListCrawlLogs(ctx, fresh.ID)
	if err != nil || len(logs) != 2 {
		t.Fatalf("ListCrawlLogs() = %v, %v", logs, err)
	}

	removed, err := s.DeleteProfilesBefore(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteProfilesBefore() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 profile removed, got %d", removed)
	}
	if _, err := s.GetProfile(ctx, stale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected stale profile to be gone, got %v", err)
	}
	if logs, _ := s.ListCrawlLogs(ctx, stale.ID); len(logs) != 0 {
		t.Fatalf("expected stale crawl logs to be gone, got %d", len(logs))
	}
	if _, err := s.GetProfile(ctx, fresh.ID); err != nil {
		t.Fatalf("expected fresh profile to remain, got %v", err)
	}
}

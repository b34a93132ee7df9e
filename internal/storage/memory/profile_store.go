package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/crawler"
	"github.com/JakeFAU/company-analyzer/internal/store"
)

// Store keeps profiles and crawl logs in process memory. It is used when no
// database is configured and in tests.
type Store struct {
	mu       sync.RWMutex
	profiles []store.Profile
	logs     map[uuid.UUID][]crawler.CrawlLogEntry
}

var _ store.Repository = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{logs: make(map[uuid.UUID][]crawler.CrawlLogEntry)}
}

// Close is a no-op.
func (s *Store) Close() {}

// CreateProfile appends a profile row.
func (s *Store) CreateProfile(_ context.Context, p store.Profile) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("profile id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if existing.ID == p.ID {
			return fmt.Errorf("profile %s already exists", p.ID)
		}
	}
	s.profiles = append(s.profiles, cloneProfile(p))
	return nil
}

// LatestByURLHash returns the newest profile for hash. Ties on timestamp go
// to the row inserted last.
func (s *Store) LatestByURLHash(_ context.Context, hash string) (store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := -1
	for i, p := range s.profiles {
		if p.SourceURLHash != hash {
			continue
		}
		if found < 0 || !p.AnalysisTimestamp.Before(s.profiles[found].AnalysisTimestamp) {
			found = i
		}
	}
	if found < 0 {
		return store.Profile{}, store.ErrNotFound
	}
	return cloneProfile(s.profiles[found]), nil
}

// GetProfile fetches a profile by id.
func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (store.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.ID == id {
			return cloneProfile(p), nil
		}
	}
	return store.Profile{}, store.ErrNotFound
}

// DeleteProfilesBefore drops profiles analyzed before cutoff and their logs.
func (s *Store) DeleteProfilesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.profiles[:0]
	var removed int64
	for _, p := range s.profiles {
		if p.AnalysisTimestamp.Before(cutoff) {
			delete(s.logs, p.ID)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	clear(s.profiles[len(kept):])
	s.profiles = kept
	return removed, nil
}

// CountProfiles returns the number of stored profiles.
func (s *Store) CountProfiles(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.profiles)), nil
}

// RecordCrawl appends a crawl log entry.
func (s *Store) RecordCrawl(_ context.Context, entry crawler.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.ProfileID] = append(s.logs[entry.ProfileID], entry)
	return nil
}

// ListCrawlLogs returns a copy of the entries recorded for profileID.
func (s *Store) ListCrawlLogs(_ context.Context, profileID uuid.UUID) ([]crawler.CrawlLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[profileID]
	out := make([]crawler.CrawlLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func cloneProfile(p store.Profile) store.Profile {
	out := p
	out.Company = p.Company.Clone()
	out.EnrichmentSources = append([]string(nil), p.EnrichmentSources...)
	out.EnrichmentErrors = append([]string(nil), p.EnrichmentErrors...)
	return out
}

package crawler

import (
	"context"
	"sync"
)

type recordingLog struct {
	mu      sync.Mutex
	entries []CrawlLogEntry
	err     error
}

func (r *recordingLog) RecordCrawl(_ context.Context, entry CrawlLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

func (r *recordingLog) all() []CrawlLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CrawlLogEntry(nil), r.entries...)
}

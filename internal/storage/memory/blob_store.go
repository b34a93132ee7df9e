// Package memory stores profiles, crawl logs and reports in-memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/store"
)

// ReportArchive stores reports in-memory and returns pseudo URIs.
type ReportArchive struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ store.ReportArchive = (*ReportArchive)(nil)

// NewReportArchive creates a new in-memory report archive.
func NewReportArchive() *ReportArchive {
	return &ReportArchive{data: make(map[string]string)}
}

// SaveReport keeps the report under its archive path.
func (a *ReportArchive) SaveReport(_ context.Context, profileID uuid.UUID, analyzedAt time.Time, report string) (string, error) {
	path := store.ReportPath(profileID, analyzedAt)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[path] = report
	return fmt.Sprintf("memory://%s", path), nil
}

// Report returns the report stored at path.
func (a *ReportArchive) Report(path string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	report, ok := a.data[path]
	return report, ok
}

// Len returns the number of archived reports.
func (a *ReportArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

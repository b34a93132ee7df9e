package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReportArchiveSaveReport(t *testing.T) {
	t.Parallel()

	archive := NewReportArchive()
	id := uuid.MustParse("5f0c7c4e-8d7b-4b52-9a8e-1f5d0f6b2a11")
	at := time.Date(2024, 5, 17, 23, 59, 0, 0, time.UTC)

	uri, err := archive.SaveReport(context.Background(), id, at, "# Report")
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	want := "memory://2024-05-17/5f0c7c4e-8d7b-4b52-9a8e-1f5d0f6b2a11.md"
	if uri != want {
		t.Fatalf("unexpected uri %s", uri)
	}
	got, ok := archive.Report("2024-05-17/5f0c7c4e-8d7b-4b52-9a8e-1f5d0f6b2a11.md")
	if !ok || got != "# Report" {
		t.Fatalf("expected stored report, got %q (ok=%v)", got, ok)
	}
	if archive.Len() != 1 {
		t.Fatalf("expected one report, got %d", archive.Len())
	}
}

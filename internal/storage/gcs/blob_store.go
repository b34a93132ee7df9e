// Package gcs archives generated reports in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/store"
)

const reportContentType = "text/markdown; charset=utf-8"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

type objectWriterFunc func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// ReportArchive writes reports to <Prefix>/<yyyy-mm-dd>/<id>.md in the bucket.
type ReportArchive struct {
	newWriter objectWriterFunc
	bucket    string
	prefix    string
}

var _ store.ReportArchive = (*ReportArchive)(nil)

// New creates a GCS-backed report archive.
func New(client *storage.Client, cfg Config) (*ReportArchive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return newArchive(func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}, cfg)
}

func newArchive(newWriter objectWriterFunc, cfg Config) (*ReportArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ReportArchive{
		newWriter: newWriter,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// SaveReport uploads the report and returns a gs:// URI.
func (a *ReportArchive) SaveReport(ctx context.Context, profileID uuid.UUID, analyzedAt time.Time, report string) (string, error) {
	object := store.ReportPath(profileID, analyzedAt)
	if a.prefix != "" {
		object = path.Join(a.prefix, object)
	}
	writer := a.newWriter(ctx, a.bucket, object, reportContentType)
	if _, err := io.Copy(writer, strings.NewReader(report)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}

// Package local archives generated reports on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/company-analyzer/internal/store"
)

// Config captures the parameters for the local report archive.
type Config struct {
	// BaseDir is the root directory where reports will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ReportArchive writes markdown reports under <BaseDir>/<yyyy-mm-dd>/<id>.md.
type ReportArchive struct {
	baseDir string
}

var _ store.ReportArchive = (*ReportArchive)(nil)

// New creates a new filesystem-backed report archive.
func New(cfg Config) (*ReportArchive, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &ReportArchive{baseDir: cfg.BaseDir}, nil
}

// SaveReport writes report to disk and returns a file:// URI.
func (a *ReportArchive) SaveReport(_ context.Context, profileID uuid.UUID, analyzedAt time.Time, report string) (string, error) {
	return a.write(store.ReportPath(profileID, analyzedAt), []byte(report))
}

func (a *ReportArchive) write(path string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(a.baseDir, filepath.FromSlash(path))

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(a.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

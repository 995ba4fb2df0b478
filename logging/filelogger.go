// Package logging persists per-run artifacts: the raw reporter event
// streams and a plain-text run summary.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	rawEventsSuffix = "_events.jsonl"
	summaryFilename = "summary.log"
)

// FileLogger owns one run's log directory (<baseDir>/<runID>). Raw event
// streams are archived per package so a run can be re-triaged or fed to
// other tooling without re-running the tests.
type FileLogger struct {
	baseDir string
	runID   string

	mu sync.Mutex
}

// NewFileLogger creates the run's log directory.
func NewFileLogger(baseDir, runID string) (*FileLogger, error) {
	logger := &FileLogger{baseDir: baseDir, runID: runID}
	if err := os.MkdirAll(logger.RunDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return logger, nil
}

// RunDir returns the directory holding this run's artifacts.
func (l *FileLogger) RunDir() string {
	return filepath.Join(l.baseDir, l.runID)
}

// RawEventsFile returns the archive path for a package's event stream.
func (l *FileLogger) RawEventsFile(pkg string) string {
	return filepath.Join(l.RunDir(), sanitizeFilename(pkg)+rawEventsSuffix)
}

// SaveRawEvents copies a package's raw event stream into the run directory.
// Safe for concurrent use by per-package goroutines.
func (l *FileLogger) SaveRawEvents(pkg string, src io.Reader) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Create(l.RawEventsFile(pkg))
	if err != nil {
		return fmt.Errorf("failed to create raw events file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	if _, err := io.Copy(file, src); err != nil {
		return fmt.Errorf("failed to archive raw events for %s: %w", pkg, err)
	}
	return nil
}

// WriteSummary writes the run's plain-text summary file.
func (l *FileLogger) WriteSummary(content string) error {
	path := filepath.Join(l.RunDir(), summaryFilename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// sanitizeFilename flattens a package path into a filename-safe token.
func sanitizeFilename(pkg string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	name := replacer.Replace(strings.Trim(pkg, "./"))
	if name == "" {
		name = "package"
	}
	return name
}

package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteYAMLReport serializes the report to path. An all-green report writes
// nothing and leaves any previous file untouched; the boolean reports
// whether a file was written.
func WriteYAMLReport(report *Report, path string) (bool, error) {
	if report.Empty() {
		return false, nil
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return false, fmt.Errorf("failed to serialize report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return true, nil
}

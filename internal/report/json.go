package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"keyrunner/internal/runner"
	"keyrunner/pkg/logging"
)

// JSON writes the suite result to <dir>/<run-id>.json when the suite ends.
type JSON struct {
	runner.NopReporter
	dir string

	// LastPath is the file written by the most recent SuiteFinished call.
	LastPath string
}

// NewJSON creates a JSON reporter writing into dir.
func NewJSON(dir string) *JSON {
	return &JSON{dir: dir}
}

// SuiteFinished implements runner.Reporter.
func (j *JSON) SuiteFinished(result runner.SuiteResult) {
	path := filepath.Join(j.dir, result.RunID+".json")
	if err := WriteJSON(path, result); err != nil {
		logging.Error("Report", err, "Failed to write JSON report")
		return
	}
	j.LastPath = path
	logging.Info("Report", "Wrote JSON report to %s", path)
}

// WriteJSON writes v as indented JSON to path, creating parent directories.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

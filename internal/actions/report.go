package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"keyrunner/internal/registry"
	"keyrunner/internal/report"
	"keyrunner/pkg/logging"
)

var reportNamePattern = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// CheckRecord is one item recorded by record_check.
type CheckRecord struct {
	Item      string    `json:"item"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckReport is the document written by write_report.
type CheckReport struct {
	ReportName string    `json:"report_name"`
	Timestamp  time.Time `json:"timestamp"`
	Results    any       `json:"results"`
}

func reportPack(env *Environment) []registry.Descriptor {
	return []registry.Descriptor{
		{
			Keyword:     "record_check",
			Category:    CategoryReport,
			Description: "Record a check item for the next write_report",
			Params: []registry.ParamSpec{
				param("item", true, "check item name"),
				param("status", true, "outcome, e.g. pass or fail"),
				param("details", false, "free text"),
			},
			Handler: env.recordCheck,
		},
		{
			Keyword:     "write_report",
			Category:    CategoryReport,
			Description: "Write results (or the recorded checks) as JSON into the report directory",
			Params: []registry.ParamSpec{
				param("report_name", true, "file name without extension"),
				param("results", false, "results to write, default the recorded checks"),
			},
			Handler: env.writeReport,
		},
	}
}

func (e *Environment) recordCheck(_ context.Context, params map[string]any) (any, error) {
	item, err := requiredString(params, "item")
	if err != nil {
		return nil, err
	}
	status, err := requiredString(params, "status")
	if err != nil {
		return nil, err
	}
	details, _ := stringParam(params, "details", false)

	rec := CheckRecord{Item: item, Status: status, Details: details, Timestamp: time.Now()}
	e.mu.Lock()
	e.checks = append(e.checks, rec)
	e.mu.Unlock()

	return map[string]any{
		"item":      rec.Item,
		"status":    rec.Status,
		"details":   rec.Details,
		"timestamp": rec.Timestamp.Format(time.RFC3339),
	}, nil
}

// Checks returns the records collected by record_check since the last write_report.
func (e *Environment) Checks() []CheckRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]CheckRecord(nil), e.checks...)
}

func (e *Environment) writeReport(_ context.Context, params map[string]any) (any, error) {
	name, err := requiredString(params, "report_name")
	if err != nil {
		return nil, err
	}
	if e.ReportDir == "" {
		return nil, fmt.Errorf("no report directory configured")
	}

	var results any
	explicit := false
	if r, ok := params["results"]; ok && r != nil {
		results = r
		explicit = true
	} else {
		results = e.Checks()
	}

	path := filepath.Join(e.ReportDir, reportNamePattern.ReplaceAllString(name, "_")+".json")
	doc := CheckReport{ReportName: name, Timestamp: time.Now(), Results: results}
	if err := report.WriteJSON(path, doc); err != nil {
		return nil, err
	}
	if !explicit {
		e.mu.Lock()
		e.checks = nil
		e.mu.Unlock()
	}
	logging.Info("Actions", "Wrote report %s", path)
	return path, nil
}

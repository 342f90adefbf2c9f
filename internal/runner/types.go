package runner

import (
	"time"

	"keyrunner/internal/casefile"
	"keyrunner/internal/recovery"
)

// Status is the outcome of a step or case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Phase tells which part of a case a step belongs to.
type Phase string

const (
	PhaseSteps    Phase = "steps"
	PhaseTeardown Phase = "teardown"
	PhaseAdHoc    Phase = "adhoc"
)

// StepResult is the outcome of one executed (or skipped) step.
type StepResult struct {
	Index    int            `json:"index"`
	Keyword  string         `json:"keyword"`
	Name     string         `json:"name,omitempty"`
	Phase    Phase          `json:"phase"`
	Params   map[string]any `json:"params,omitempty"`
	Status   Status         `json:"status"`
	Value    any            `json:"value,omitempty"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`

	// Compensation is the keyword pushed onto the recovery stack, if any.
	Compensation string `json:"compensation,omitempty"`
}

// Failed reports whether the step counts against its case.
func (s StepResult) Failed() bool {
	return s.Status != StatusPassed
}

// CaseResult is the outcome of one case run.
type CaseResult struct {
	RunID       string               `json:"run_id"`
	CaseID      string               `json:"case_id"`
	CaseName    string               `json:"case_name,omitempty"`
	Source      string               `json:"source,omitempty"`
	Status      Status               `json:"status"`
	Passed      bool                 `json:"passed"`
	FailedCount int                  `json:"failed_count"`
	Steps       []StepResult         `json:"steps"`
	Recovery    recovery.DrainReport `json:"recovery"`
	Started     time.Time            `json:"started"`
	Duration    time.Duration        `json:"duration"`
}

// SuiteResult aggregates the case results of one invocation.
type SuiteResult struct {
	RunID    string        `json:"run_id"`
	Cases    []CaseResult  `json:"cases"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether every case passed.
func (s SuiteResult) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// Reporter receives progress notifications. Implementations must be safe
// for concurrent use when cases run in parallel.
type Reporter interface {
	CaseStarted(c *casefile.Case)
	StepFinished(caseID string, step StepResult)
	CaseFinished(result CaseResult)
	SuiteFinished(result SuiteResult)
}

// NopReporter discards every notification.
type NopReporter struct{}

func (NopReporter) CaseStarted(*casefile.Case)      {}
func (NopReporter) StepFinished(string, StepResult) {}
func (NopReporter) CaseFinished(CaseResult)         {}
func (NopReporter) SuiteFinished(SuiteResult)       {}

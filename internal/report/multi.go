package report

import (
	"keyrunner/internal/casefile"
	"keyrunner/internal/runner"
)

// Multi fans notifications out to several reporters in order.
type Multi []runner.Reporter

func (m Multi) CaseStarted(c *casefile.Case) {
	for _, r := range m {
		r.CaseStarted(c)
	}
}

func (m Multi) StepFinished(caseID string, step runner.StepResult) {
	for _, r := range m {
		r.StepFinished(caseID, step)
	}
}

func (m Multi) CaseFinished(result runner.CaseResult) {
	for _, r := range m {
		r.CaseFinished(result)
	}
}

func (m Multi) SuiteFinished(result runner.SuiteResult) {
	for _, r := range m {
		r.SuiteFinished(result)
	}
}

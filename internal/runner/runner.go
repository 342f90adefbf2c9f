// Package runner executes keyword-driven cases.
//
// Each case run owns a fresh variable context and recovery stack. Steps run
// strictly in order; a failed step never stops the steps after it. At the
// end of the case the teardown steps run and the recovery stack is drained.
package runner

import (
	"context"
	"time"

	"keyrunner/internal/casefile"
	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"

	"github.com/google/uuid"
)

// Runner executes cases against a registry. A Runner is safe for concurrent
// use; all per-run state lives in a Session.
type Runner struct {
	registry     *registry.Registry
	reporter     Reporter
	initialVars  map[string]any
	stepTimeout  time.Duration
	drainTimeout time.Duration
	noRecovery   bool
}

// New creates a Runner dispatching to reg.
func New(reg *registry.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry:     reg,
		reporter:     NopReporter{},
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the runner dispatches to.
func (r *Runner) Registry() *registry.Registry {
	return r.registry
}

// RunCase executes c and returns its result. It never returns an error:
// every failure is recorded in the result.
//
// ctx is checked between steps. Once it is done the remaining steps are
// recorded as skipped; teardown and the recovery drain still run under a
// fresh context bounded by the drain timeout.
func (r *Runner) RunCase(ctx context.Context, c *casefile.Case) CaseResult {
	result := CaseResult{
		RunID:    uuid.New().String(),
		CaseID:   c.ID,
		CaseName: c.DisplayName(),
		Source:   c.Source,
		Started:  time.Now(),
		Steps:    make([]StepResult, 0, len(c.Steps)+len(c.Teardown)),
	}

	r.reporter.CaseStarted(c)
	logging.Info("Runner", "Running case %s (%d steps)", c.ID, len(c.Steps))

	if len(c.Steps) == 0 {
		logging.Warn("Runner", "Case %s has no steps; treating it as passed", c.ID)
	}

	session := r.NewSession(c.Variables)
	session.caseID = c.ID

	for _, step := range c.Steps {
		var stepResult StepResult
		if err := ctx.Err(); err != nil {
			stepResult = session.skip(step, PhaseSteps, err)
		} else {
			stepResult = session.execute(ctx, step, PhaseSteps)
		}
		result.Steps = append(result.Steps, stepResult)
	}

	teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.drainTimeout)
	defer cancel()

	for _, step := range c.Teardown {
		result.Steps = append(result.Steps, session.execute(teardownCtx, step, PhaseTeardown))
	}
	result.Recovery = session.drain(teardownCtx)

	for _, s := range result.Steps {
		if s.Failed() {
			result.FailedCount++
		}
	}
	result.Passed = result.FailedCount == 0
	if result.Passed {
		result.Status = StatusPassed
	} else {
		result.Status = StatusFailed
	}
	result.Duration = time.Since(result.Started)

	if result.Passed {
		logging.Info("Runner", "Case %s passed in %s", c.ID, result.Duration)
	} else {
		logging.Info("Runner", "Case %s failed: %d failed steps", c.ID, result.FailedCount)
	}
	if result.Recovery.Failed > 0 {
		logging.Warn("Runner", "Case %s: %d compensations failed during recovery", c.ID, result.Recovery.Failed)
	}

	r.reporter.CaseFinished(result)
	return result
}

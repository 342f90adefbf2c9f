package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"keyrunner/internal/api"
	"keyrunner/internal/casefile"
	"keyrunner/internal/recovery"
	"keyrunner/internal/registry"
	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

// Session is the execution state of one case run: its variables, its
// recovery stack and a step counter. The interactive shell and the MCP
// server keep a Session open across many ExecuteStep calls.
//
// A Session serializes its steps; it must not be shared between
// independent runs.
type Session struct {
	runner   *Runner
	vars     *template.Variables
	recovery *recovery.Manager
	caseID   string

	mu    sync.Mutex
	index int
}

// NewSession creates a session seeded with the runner's initial variables
// overlaid by initial.
func (r *Runner) NewSession(initial map[string]any) *Session {
	return &Session{
		runner:   r,
		vars:     template.NewVariables(template.MergeContexts(r.initialVars, initial)),
		recovery: recovery.NewManager(r.registry),
	}
}

// Variables returns the session's variable context.
func (s *Session) Variables() *template.Variables {
	return s.vars
}

// Recovery returns the session's recovery stack.
func (s *Session) Recovery() *recovery.Manager {
	return s.recovery
}

// ExecuteStep runs a single step outside of a case.
func (s *Session) ExecuteStep(ctx context.Context, step casefile.Step) StepResult {
	return s.execute(ctx, step, PhaseAdHoc)
}

// Close drains the recovery stack under a context bounded by the runner's
// drain timeout.
func (s *Session) Close(ctx context.Context) recovery.DrainReport {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runner.drainTimeout)
	defer cancel()
	return s.drain(drainCtx)
}

func (s *Session) drain(ctx context.Context) recovery.DrainReport {
	return s.recovery.Drain(ctx)
}

func (s *Session) nextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index++
	return s.index
}

func (s *Session) skip(step casefile.Step, phase Phase, reason error) StepResult {
	result := StepResult{
		Index:   s.nextIndex(),
		Keyword: step.Keyword,
		Name:    step.Name,
		Phase:   phase,
		Status:  StatusSkipped,
		Err:     reason,
		Error:   fmt.Sprintf("skipped: %v", reason),
		Started: time.Now(),
	}
	logging.Debug("Runner", "Skipping step %d (%s): %v", result.Index, step.Keyword, reason)
	s.runner.reporter.StepFinished(s.caseID, result)
	return result
}

// execute resolves, dispatches and classifies one step. It never panics and
// never returns an error; failures are recorded in the result.
func (s *Session) execute(ctx context.Context, step casefile.Step, phase Phase) (result StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index++
	result = StepResult{
		Index:   s.index,
		Keyword: step.Keyword,
		Name:    step.Name,
		Phase:   phase,
		Started: time.Now(),
	}

	resolved := s.vars.ResolveParams(step.Params)
	result.Params = resolved

	defer func() {
		result.Duration = time.Since(result.Started)
		s.runner.reporter.StepFinished(s.caseID, result)
	}()

	desc, err := s.runner.registry.Lookup(step.Keyword)
	if err != nil {
		logging.Error("Runner", err, "Step %d: unknown action %s", result.Index, step.Keyword)
		result.fail(err)
		return result
	}

	timeout := step.Timeout
	if timeout == 0 {
		timeout = s.runner.stepTimeout
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logging.Debug("Runner", "Step %d: %s %v", result.Index, step.Keyword, resolved)

	value, err := invoke(stepCtx, desc.Handler, recovery.CopyParams(resolved))
	shaped, isShaped := value.(registry.Result)
	if isShaped {
		value = shaped.Value
	}
	if herr := classify(stepCtx, step.Keyword, value, err); herr != nil {
		logging.Error("Runner", herr, "Step %d (%s) failed", result.Index, step.Keyword)
		result.fail(herr)
		return result
	}

	result.Status = StatusPassed
	result.Value = value

	s.vars.Set(template.LastResultKey, value)
	if step.Store != "" {
		s.vars.Set(step.Store, value)
	}

	// A step-level recover keyword wins over the handler's choice, but a
	// handler that changed nothing never gets a compensation.
	compensation, captured := desc.Compensation, resolved
	if isShaped && shaped.Compensation != "" {
		compensation = shaped.Compensation
	}
	if isShaped && step.Recover == "" {
		captured = mergeParams(resolved, shaped.Params)
	}
	if step.Recover != "" {
		compensation = step.Recover
	}
	if isShaped && shaped.Skip {
		compensation = ""
	}
	if compensation != "" && !s.runner.noRecovery {
		s.recovery.Push(step.Keyword, captured, compensation)
		result.Compensation = compensation
	}

	logging.Debug("Runner", "Step %d (%s) passed", result.Index, step.Keyword)
	return result
}

// mergeParams returns base overlaid with extra. base is left untouched.
func mergeParams(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func (r *StepResult) fail(err error) {
	r.Status = StatusFailed
	r.Err = err
	r.Error = err.Error()
}

// invoke calls handler, converting a panic into a HandlerError.
func invoke(ctx context.Context, handler registry.Handler, params map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Debug("Runner", "Recovered handler panic: %v\n%s", r, debug.Stack())
			value = nil
			err = &panicError{value: r}
		}
	}()
	return handler(ctx, params)
}

type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// classify applies the failure policy: an error, a panic, an explicit false
// and a nil result all fail the step.
func classify(ctx context.Context, keyword string, value any, err error) error {
	if err != nil {
		var p *panicError
		switch {
		case errors.As(err, &p):
			return api.NewHandlerError(keyword, api.ReasonPanic, err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return api.NewHandlerError(keyword, api.ReasonTimeout, err)
		default:
			return api.NewHandlerError(keyword, api.ReasonError, err)
		}
	}
	switch v := value.(type) {
	case nil:
		return api.NewHandlerError(keyword, api.ReasonNoResult, nil)
	case bool:
		if !v {
			return api.NewHandlerError(keyword, api.ReasonFalse, nil)
		}
	}
	return nil
}

package runner

import "time"

const (
	// DefaultDrainTimeout bounds teardown steps and the recovery drain.
	DefaultDrainTimeout = 5 * time.Minute
)

// Option configures a Runner.
type Option func(*Runner)

// WithReporter sets the progress reporter.
func WithReporter(reporter Reporter) Option {
	return func(r *Runner) {
		if reporter != nil {
			r.reporter = reporter
		}
	}
}

// WithInitialVariables seeds every case run. Case variables override them.
func WithInitialVariables(vars map[string]any) Option {
	return func(r *Runner) {
		r.initialVars = vars
	}
}

// WithStepTimeout sets the default per-step deadline. Zero disables it.
// A step's own timeout takes precedence.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stepTimeout = d
	}
}

// WithDrainTimeout bounds teardown steps and the recovery drain.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.drainTimeout = d
		}
	}
}

// WithNoRecovery disables compensation pushing: recoverable steps run but
// nothing is undone at teardown.
func WithNoRecovery() Option {
	return func(r *Runner) {
		r.noRecovery = true
	}
}

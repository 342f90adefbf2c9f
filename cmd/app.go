package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"keyrunner/internal/actions"
	"keyrunner/internal/config"
	"keyrunner/internal/registry"
	"keyrunner/internal/report"
	"keyrunner/internal/runner"
)

// harness bundles the pieces every executing command needs.
type harness struct {
	registry *registry.Registry
	env      *actions.Environment
	runner   *runner.Runner
}

func (h *harness) Close() {
	_ = h.env.Close()
}

// newRegistry builds a registry holding the built-in action words.
func newRegistry(cfg config.KeyrunnerConfig) (*registry.Registry, *actions.Environment, error) {
	env := actions.NewEnvironment(cfg)
	reg := registry.New()
	if err := actions.Register(reg, env); err != nil {
		_ = env.Close()
		return nil, nil, err
	}
	return reg, env, nil
}

// newHarness wires the registry, action environment and runner from cfg.
// Extra variables override the configured initial variables.
func newHarness(cfg config.KeyrunnerConfig, reporter runner.Reporter, vars map[string]any) (*harness, error) {
	reg, env, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	initial := make(map[string]any, len(cfg.Variables)+len(vars))
	for k, v := range cfg.Variables {
		initial[k] = v
	}
	for k, v := range vars {
		initial[k] = v
	}

	opts := []runner.Option{
		runner.WithInitialVariables(initial),
		runner.WithStepTimeout(cfg.Runner.StepTimeout),
		runner.WithDrainTimeout(cfg.Runner.DrainTimeout),
	}
	if reporter != nil {
		opts = append(opts, runner.WithReporter(reporter))
	}
	if cfg.Runner.NoRecovery {
		opts = append(opts, runner.WithNoRecovery())
	}

	return &harness{
		registry: reg,
		env:      env,
		runner:   runner.New(reg, opts...),
	}, nil
}

// newReporter builds the reporter for the requested format.
func newReporter(format, dir string, out io.Writer, console report.ConsoleOptions) (runner.Reporter, *report.JSON, error) {
	switch format {
	case "", config.ReportFormatConsole:
		return report.NewConsole(out, console), nil, nil
	case config.ReportFormatJSON:
		j := report.NewJSON(dir)
		return j, j, nil
	case config.ReportFormatBoth:
		j := report.NewJSON(dir)
		return report.Multi{report.NewConsole(out, console), j}, j, nil
	default:
		return nil, nil, fmt.Errorf("unknown report format %q (want console, json or both)", format)
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

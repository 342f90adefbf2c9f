package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"keyrunner/internal/casefile"
	"keyrunner/internal/config"
	"keyrunner/internal/history"
	"keyrunner/internal/report"
	"keyrunner/internal/runner"
	"keyrunner/internal/watch"
	"keyrunner/pkg/logging"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	runWatch       bool
	runTags        []string
	runIDs         []string
	runParallel    int
	runFailFast    bool
	runReport      string
	runReportDir   string
	runVerbose     bool
	runNoSpinner   bool
	runNoRecovery  bool
	runStepTimeout time.Duration
	runVars        []string
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Run test cases",
	Long: `Runs the test cases found at path, a case file or a directory searched
recursively for *.yaml and *.yml files. Without a path the cases.path setting
of config.yaml is used.

Every case gets its own variables and recovery stack. When a case ends, its
teardown steps run first and then the pending compensations, newest first.

Examples:
  keyrunner run cases/
  keyrunner run cases/login.yaml --verbose
  keyrunner run --tag smoke --parallel 4 --fail-fast
  keyrunner run --var host=localhost --var port=8080
  keyrunner run --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := applyRunFlags(cmd, loadedConfig)

	path := cfg.Cases.Path
	if len(args) == 1 {
		path = args[0]
	}

	vars, err := parseVarFlags(runVars)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	if !runWatch {
		return runOnce(ctx, cfg, path, vars, out)
	}
	return runWatchLoop(ctx, cfg, path, vars, out)
}

// applyRunFlags overlays explicitly set flags on the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg config.KeyrunnerConfig) config.KeyrunnerConfig {
	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Runner.Parallel = runParallel
	}
	if flags.Changed("fail-fast") {
		cfg.Runner.FailFast = runFailFast
	}
	if flags.Changed("no-recovery") {
		cfg.Runner.NoRecovery = runNoRecovery
	}
	if flags.Changed("step-timeout") {
		cfg.Runner.StepTimeout = runStepTimeout
	}
	if flags.Changed("report") {
		cfg.Report.Format = runReport
	}
	if flags.Changed("report-dir") {
		cfg.Report.Dir = runReportDir
	}
	return cfg
}

// parseVarFlags turns --var name=value pairs into initial variables. Values
// are decoded as YAML scalars, so numbers and booleans keep their type.
func parseVarFlags(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: expected name=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		vars[name] = value
	}
	return vars, nil
}

// runOnce loads, filters and runs the cases at path.
func runOnce(ctx context.Context, cfg config.KeyrunnerConfig, path string, vars map[string]any, out io.Writer) error {
	cases, loadErrs := casefile.LoadDirectory(path)
	for _, le := range loadErrs {
		logging.Error("CaseParser", le, "Skipping case file")
		fmt.Fprintf(out, "✗ %s\n", le.Error())
	}

	cases = casefile.Filter{IDs: runIDs, Tags: runTags}.Apply(cases)
	if len(cases) == 0 {
		if len(loadErrs) > 0 {
			return fmt.Errorf("no runnable cases in %s: %d files failed to load", path, len(loadErrs))
		}
		return fmt.Errorf("no cases found in %s", path)
	}

	consoleOpts := report.ConsoleOptions{
		Verbose: runVerbose,
		Spinner: !runNoSpinner && cfg.Runner.Parallel <= 1 && isTerminal(out),
		NoColor: !isTerminal(out),
	}
	reporter, jsonReport, err := newReporter(cfg.Report.Format, cfg.Report.Dir, out, consoleOpts)
	if err != nil {
		return err
	}

	h, err := newHarness(cfg, reporter, vars)
	if err != nil {
		return err
	}
	defer h.Close()

	suite := h.runner.RunSuite(ctx, cases, runner.SuiteOptions{
		Parallel: cfg.Runner.Parallel,
		FailFast: cfg.Runner.FailFast,
	})

	if jsonReport != nil && jsonReport.LastPath != "" {
		fmt.Fprintf(out, "Report written to %s\n", jsonReport.LastPath)
	}
	if cfg.Runner.StoreHistory {
		if err := storeRun(suite); err != nil {
			logging.Warn("History", "Failed to store run %s: %v", suite.RunID, err)
		}
	}

	if len(loadErrs) > 0 && suite.OK() {
		return fmt.Errorf("%d case files failed to load", len(loadErrs))
	}
	if !suite.OK() {
		return &CasesFailedError{Failed: suite.Failed, Skipped: suite.Skipped}
	}
	return nil
}

func storeRun(suite runner.SuiteResult) error {
	store, err := history.NewStore(configPath)
	if err != nil {
		return err
	}
	return store.Save(suite)
}

// runWatchLoop runs every case at path once, then runs each case file again
// when it is created or modified, until ctx is canceled.
func runWatchLoop(ctx context.Context, cfg config.KeyrunnerConfig, path string, vars map[string]any, out io.Writer) error {
	w := watch.New(path, watch.DefaultDebounce)
	changes := make(chan watch.Change, 16)
	if err := w.Start(ctx, changes); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Stop()

	run := func(target string) {
		if err := runOnce(ctx, cfg, target, vars, out); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
		fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", path)
	}

	run(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-changes:
			logging.Info("Watcher", "%s %s", change.Operation, change.Path)
			if change.Operation == watch.OperationDelete {
				fmt.Fprintf(out, "\n%s removed\n", change.Path)
				continue
			}
			fmt.Fprintf(out, "\n%s changed, running it again\n", change.Path)
			run(change.Path)
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "Run again whenever a case file changes")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only run cases carrying one of these tags")
	runCmd.Flags().StringSliceVar(&runIDs, "id", nil, "Only run cases with these ids")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 1, "Number of cases run at once")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop starting cases after the first failure")
	runCmd.Flags().StringVar(&runReport, "report", config.ReportFormatConsole, "Report format: console, json or both")
	runCmd.Flags().StringVar(&runReportDir, "report-dir", "", "Directory for JSON reports")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every step, not only failed ones")
	runCmd.Flags().BoolVar(&runNoSpinner, "no-spinner", false, "Disable the progress spinner")
	runCmd.Flags().BoolVar(&runNoRecovery, "no-recovery", false, "Do not run compensations when a case ends")
	runCmd.Flags().DurationVar(&runStepTimeout, "step-timeout", 0, "Timeout applied to every step (0 disables)")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Initial variable as name=value (repeatable)")
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"keyrunner/internal/config"
	"keyrunner/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid arguments, unreadable configuration).
	ExitCodeError = 1
	// ExitCodeCasesFailed indicates that every case ran but at least one failed.
	ExitCodeCasesFailed = 2
)

// CasesFailedError is returned by commands whose cases ran to completion
// with failures.
type CasesFailedError struct {
	Failed  int
	Skipped int
}

func (e *CasesFailedError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("%d cases failed, %d skipped", e.Failed, e.Skipped)
	}
	return fmt.Sprintf("%d cases failed", e.Failed)
}

var (
	configPath string
	logLevel   string
	logFormat  string
	debug      bool

	// loadedConfig is populated by the root PersistentPreRunE.
	loadedConfig config.KeyrunnerConfig
)

// versionTemplate renders --version the same way as the version command.
const versionTemplate = `{{printf "keyrunner version %s\n" .Version}}`

// rootCmd represents the base command for the keyrunner application.
var rootCmd = &cobra.Command{
	Use:   "keyrunner",
	Short: "Run keyword-driven test cases",
	Long: `keyrunner executes test cases written as YAML lists of action words.

Each step names an action word and its parameters. Parameters may reference
variables with ${name}; every step's result is available as ${last_result}.
Steps that create something register a compensation, and compensations run
in reverse order when the case ends, whatever its outcome.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfigAndLogging,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to the process exit code.
func getExitCode(err error) int {
	var failed *CasesFailedError
	if errors.As(err, &failed) {
		return ExitCodeCasesFailed
	}
	return ExitCodeError
}

// initConfigAndLogging loads config.yaml and configures the logger. Flags
// take precedence over the file.
func initConfigAndLogging(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	if strings.TrimSpace(configPath) == "" {
		return fmt.Errorf("--config-path must not be empty")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), cfgErr.DetailedError())
		}
		return err
	}

	levelName := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		levelName = logLevel
	}
	if debug {
		levelName = "debug"
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}

	format := logging.Format(cfg.Logging.Format)
	if cmd.Flags().Changed("log-format") {
		format = logging.Format(logFormat)
	}
	logging.Init(level, format, os.Stderr)

	loadedConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Shorthand for --log-level=debug")

	rootCmd.SetVersionTemplate(versionTemplate)
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

package config

import "time"

// KeyrunnerConfig is the top-level configuration structure for keyrunner.
type KeyrunnerConfig struct {
	Logging    LoggingConfig             `yaml:"logging"`
	Runner     RunnerConfig              `yaml:"runner"`
	Cases      CasesConfig               `yaml:"cases"`
	Report     ReportConfig              `yaml:"report"`
	Variables  map[string]any            `yaml:"variables,omitempty"`  // Initial variables for every case run
	Databases  map[string]DatabaseConfig `yaml:"databases,omitempty"`  // Named database connections used by db_* actions
	HTTP       HTTPConfig                `yaml:"http"`
	Kubernetes KubernetesConfig          `yaml:"kubernetes"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (default: warn)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// RunnerConfig controls case execution.
type RunnerConfig struct {
	Parallel     int           `yaml:"parallel,omitempty"`      // Cases run at once (default: 1)
	FailFast     bool          `yaml:"fail_fast,omitempty"`     // Stop starting cases after the first failure
	StepTimeout  time.Duration `yaml:"step_timeout,omitempty"`  // Default per-step deadline, 0 disables
	DrainTimeout time.Duration `yaml:"drain_timeout,omitempty"` // Bound for teardown and recovery (default: 5m)
	StoreHistory bool          `yaml:"store_history,omitempty"` // Persist suite results under history/
	NoRecovery   bool          `yaml:"no_recovery,omitempty"`   // Do not push compensations
}

// CasesConfig locates case documents.
type CasesConfig struct {
	Path string `yaml:"path,omitempty"` // File or directory of case documents (default: ./cases)
}

// ReportConfig controls result output.
type ReportConfig struct {
	Dir    string `yaml:"dir,omitempty"`    // Directory for JSON reports and write_report output (default: ./reports)
	Format string `yaml:"format,omitempty"` // console, json or both (default: console)
}

// DatabaseConfig is one named database connection.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // database/sql driver name, e.g. sqlite
	DSN    string `yaml:"dsn"`
}

// HTTPConfig configures the http_request action.
type HTTPConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"` // default: 30s
	Retries int           `yaml:"retries,omitempty"` // default: 2
}

// KubernetesConfig configures the kube_* actions. An empty kubeconfig uses
// the standard loading rules (KUBECONFIG, ~/.kube/config, in-cluster).
type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"` // default: default
}

const (
	ReportFormatConsole = "console"
	ReportFormatJSON    = "json"
	ReportFormatBoth    = "both"
)

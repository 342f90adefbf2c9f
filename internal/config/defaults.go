package config

import "time"

const (
	DefaultCasesPath    = "cases"
	DefaultReportDir    = "reports"
	DefaultDrainTimeout = 5 * time.Minute
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultHTTPRetries  = 2
	DefaultNamespace    = "default"
)

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() KeyrunnerConfig {
	return KeyrunnerConfig{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Runner: RunnerConfig{
			Parallel:     1,
			DrainTimeout: DefaultDrainTimeout,
		},
		Cases: CasesConfig{
			Path: DefaultCasesPath,
		},
		Report: ReportConfig{
			Dir:    DefaultReportDir,
			Format: ReportFormatConsole,
		},
		HTTP: HTTPConfig{
			Timeout: DefaultHTTPTimeout,
			Retries: DefaultHTTPRetries,
		},
		Kubernetes: KubernetesConfig{
			Namespace: DefaultNamespace,
		},
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
	assert.Empty(t, Validate(cfg))
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
logging:
  level: debug
  format: json
runner:
  parallel: 4
  fail_fast: true
  step_timeout: 30s
  store_history: true
cases:
  path: ./suites
variables:
  env: staging
databases:
  main:
    driver: sqlite
    dsn: /tmp/test.db
http:
  base_url: http://localhost:8080
  retries: 5
kubernetes:
  namespace: testing
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Runner.Parallel)
	assert.True(t, cfg.Runner.FailFast)
	assert.Equal(t, 30*time.Second, cfg.Runner.StepTimeout)
	assert.Equal(t, DefaultDrainTimeout, cfg.Runner.DrainTimeout, "unset fields keep defaults")
	assert.True(t, cfg.Runner.StoreHistory)
	assert.Equal(t, "./suites", cfg.Cases.Path)
	assert.Equal(t, DefaultReportDir, cfg.Report.Dir)
	assert.Equal(t, "staging", cfg.Variables["env"])
	assert.Equal(t, DatabaseConfig{Driver: "sqlite", DSN: "/tmp/test.db"}, cfg.Databases["main"])
	assert.Equal(t, "http://localhost:8080", cfg.HTTP.BaseURL)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.Retries)
	assert.Equal(t, "testing", cfg.Kubernetes.Namespace)
}

func TestLoadConfig_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "runner: [not a map\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
	assert.Contains(t, cfgErr.DetailedError(), "Suggestions:")
}

func TestLoadConfig_ValidationError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
logging:
  level: loud
runner:
  parallel: 0
report:
  format: pdf
databases:
  broken:
    driver: sqlite
variables:
  bad-name: 1
`)

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ErrorTypeValidation, cfgErr.ErrorType)
	for _, field := range []string{"logging.level", "runner.parallel", "report.format", "databases.broken.dsn", "variables.bad-name"} {
		assert.Contains(t, cfgErr.Message, field)
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is wrong", 1)
	assert.Equal(t, "field 'a': is wrong", errs.Error())

	errs.Add("", "general problem")
	assert.Equal(t, "validation failed: field 'a': is wrong; general problem", errs.Error())
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir, err := GetUserConfigDir()
	require.NoError(t, err)
	assert.Equal(t, userConfigDir, filepath.Base(filepath.Dir(dir))+"/"+filepath.Base(dir))
}

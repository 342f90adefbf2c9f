package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"keyrunner/internal/history"
	"keyrunner/internal/runner"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	// Test setting version
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	// Test root command properties
	if rootCmd.Use != "keyrunner" {
		t.Errorf("Expected Use to be 'keyrunner', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	// Create a new command to test version template
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	testCmd.SetVersionTemplate(versionTemplate)

	// Capture output
	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	// Execute version command
	testCmd.SetArgs([]string{"--version"})
	err := testCmd.Execute()
	if err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "keyrunner version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestSubcommands(t *testing.T) {
	// Test that subcommands are added
	commands := rootCmd.Commands()

	expectedCommands := []string{"version", "self-update", "run", "validate", "actions", "schema", "history", "shell", "serve"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	if code := getExitCode(errors.New("boom")); code != ExitCodeError {
		t.Errorf("expected %d for a plain error, got %d", ExitCodeError, code)
	}
	wrapped := fmt.Errorf("run: %w", &CasesFailedError{Failed: 2})
	if code := getExitCode(wrapped); code != ExitCodeCasesFailed {
		t.Errorf("expected %d for failed cases, got %d", ExitCodeCasesFailed, code)
	}
}

func TestCasesFailedErrorMessage(t *testing.T) {
	if got := (&CasesFailedError{Failed: 2}).Error(); got != "2 cases failed" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&CasesFailedError{Failed: 1, Skipped: 3}).Error(); got != "1 cases failed, 3 skipped" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestInitConfigAndLogging(t *testing.T) {
	originalConfigPath := configPath
	defer func() { configPath = originalConfigPath }()

	dir := t.TempDir()
	configPath = dir
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cases:\n  path: suites\nvariables:\n  env: ci\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{Use: "keyrunner-test"}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "")
	if err := initConfigAndLogging(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loadedConfig.Cases.Path != "suites" {
		t.Errorf("expected cases path from config.yaml, got %q", loadedConfig.Cases.Path)
	}
	if loadedConfig.Variables["env"] != "ci" {
		t.Errorf("expected variables from config.yaml, got %v", loadedConfig.Variables)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("runner: [not, a, map]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	if err := initConfigAndLogging(cmd, nil); err == nil {
		t.Error("expected error for malformed config.yaml")
	}
}


func TestInitConfigAndLogging_RejectsEmptyConfigPath(t *testing.T) {
	originalConfigPath := configPath
	defer func() { configPath = originalConfigPath }()
	configPath = "  "

	cmd := &cobra.Command{Use: "keyrunner-test"}
	err := initConfigAndLogging(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--config-path must not be empty") {
		t.Fatalf("expected empty config path error, got %v", err)
	}
}

func TestStoreRun_EmptyConfigPath(t *testing.T) {
	originalConfigPath := configPath
	defer func() { configPath = originalConfigPath }()
	configPath = ""

	if err := storeRun(runner.SuiteResult{RunID: "r-1"}); !errors.Is(err, history.ErrNoConfigPath) {
		t.Fatalf("expected ErrNoConfigPath, got %v", err)
	}
}

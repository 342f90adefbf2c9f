package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"keyrunner/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/keyrunner"
	configFileName = "config.yaml"
)

// GetUserConfigDir returns ~/.config/keyrunner.
func GetUserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

func GetDefaultConfigPathOrPanic() string {
	dir, err := GetUserConfigDir()
	if err != nil {
		panic(err)
	}
	return dir
}

// LoadConfig loads config.yaml from configPath on top of the defaults and
// validates the result. A missing file yields the defaults.
func LoadConfig(configPath string) (KeyrunnerConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return KeyrunnerConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: ErrorTypeIO,
			Message:   err.Error(),
		}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return KeyrunnerConfig{}, &ConfigurationError{
			FilePath:    configFilePath,
			FileName:    configFileName,
			ErrorType:   ErrorTypeParse,
			Message:     err.Error(),
			Suggestions: []string{"check YAML indentation", "durations use Go syntax such as 30s or 5m"},
		}
	}

	if verrs := Validate(config); verrs.HasErrors() {
		return KeyrunnerConfig{}, &ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: ErrorTypeValidation,
			Message:   verrs.Error(),
		}
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return config, nil
}

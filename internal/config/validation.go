package config

import (
	"fmt"
	"regexp"
	"strings"

	"keyrunner/pkg/logging"
)

var variableName = regexp.MustCompile(`^\w+$`)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks a loaded configuration and lists every offending field.
func Validate(cfg KeyrunnerConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.Add("logging.level", err.Error(), cfg.Logging.Level)
	}
	if err := ValidateOneOf("logging.format", cfg.Logging.Format, []string{"text", "json"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	if cfg.Runner.Parallel < 1 {
		errs.Add("runner.parallel", "must be at least 1", cfg.Runner.Parallel)
	}
	if cfg.Runner.StepTimeout < 0 {
		errs.Add("runner.step_timeout", "cannot be negative", cfg.Runner.StepTimeout)
	}
	if cfg.Runner.DrainTimeout <= 0 {
		errs.Add("runner.drain_timeout", "must be positive", cfg.Runner.DrainTimeout)
	}

	if strings.TrimSpace(cfg.Cases.Path) == "" {
		errs.Add("cases.path", "is required")
	}
	if err := ValidateOneOf("report.format", cfg.Report.Format, []string{ReportFormatConsole, ReportFormatJSON, ReportFormatBoth}); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	for name := range cfg.Variables {
		if !variableName.MatchString(name) {
			errs.Add("variables."+name, "variable names must consist of word characters")
		}
	}

	for name, db := range cfg.Databases {
		if db.Driver == "" {
			errs.Add("databases."+name+".driver", "is required")
		}
		if db.DSN == "" {
			errs.Add("databases."+name+".dsn", "is required")
		}
	}

	if cfg.HTTP.Timeout < 0 {
		errs.Add("http.timeout", "cannot be negative", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Retries < 0 {
		errs.Add("http.retries", "cannot be negative", cfg.HTTP.Retries)
	}

	return errs
}

package api

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownActionError is raised when a step, or a compensation, names a
// keyword that is not bound in the action registry.
//
// The runner never propagates it; it is recorded as the failure reason of
// the step and the run continues with the next step.
type UnknownActionError struct {
	// Keyword is the action word that could not be resolved
	Keyword string
}

// Error implements the error interface for UnknownActionError.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action %q is not registered", e.Keyword)
}

// NewUnknownActionError creates a new UnknownActionError for the given keyword.
func NewUnknownActionError(keyword string) *UnknownActionError {
	return &UnknownActionError{Keyword: keyword}
}

// IsUnknownAction checks if an error is, or wraps, an UnknownActionError.
//
// Example:
//
//	desc, err := reg.Lookup("create_user")
//	if api.IsUnknownAction(err) {
//	    // record a failed step and carry on
//	}
func IsUnknownAction(err error) bool {
	var target *UnknownActionError
	return errors.As(err, &target)
}

// DuplicateActionError is returned by registration when a keyword is
// already bound. The first binding stays in place.
type DuplicateActionError struct {
	Keyword string
	// ExistingCategory is the category of the binding that was kept
	ExistingCategory string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered (category %q)", e.Keyword, e.ExistingCategory)
}

// IsDuplicateAction checks if an error is, or wraps, a DuplicateActionError.
func IsDuplicateAction(err error) bool {
	var target *DuplicateActionError
	return errors.As(err, &target)
}

// HandlerError describes a step whose handler raised an error, panicked, or
// returned one of the failure signals (false or no result).
type HandlerError struct {
	// Keyword is the action word whose handler failed
	Keyword string

	// Reason is a short classification: "error", "panic", "false" or "no result"
	Reason string

	// Err is the underlying error returned by the handler, if any
	Err error
}

// Handler failure reasons.
const (
	ReasonError    = "error"
	ReasonPanic    = "panic"
	ReasonFalse    = "false"
	ReasonNoResult = "no result"
	ReasonTimeout  = "timeout"
)

// Error implements the error interface for HandlerError.
func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action %q failed (%s): %v", e.Keyword, e.Reason, e.Err)
	}
	return fmt.Sprintf("action %q failed (%s)", e.Keyword, e.Reason)
}

// Unwrap returns the underlying handler error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewHandlerError creates a HandlerError.
//
// Args:
//   - keyword: the action word that failed
//   - reason: one of the Reason* constants
//   - err: the handler's own error, or nil for the false / no-result signals
//
// Returns:
//   - *HandlerError: a new HandlerError instance
func NewHandlerError(keyword, reason string, err error) *HandlerError {
	return &HandlerError{Keyword: keyword, Reason: reason, Err: err}
}

// IsHandlerError checks if an error is, or wraps, a HandlerError.
func IsHandlerError(err error) bool {
	var target *HandlerError
	return errors.As(err, &target)
}

// MalformedCaseError is returned when a case document lacks the structure
// required to build a case. It is the only error the core lets escape, and
// only at the single-document parse boundary; batch loading catches it per
// file.
type MalformedCaseError struct {
	// Source identifies the document, usually a file path
	Source string

	// Problems lists every structural problem found in the document
	Problems []string

	// Err is the decode error, if decoding itself failed
	Err error
}

// Error implements the error interface for MalformedCaseError.
func (e *MalformedCaseError) Error() string {
	var b strings.Builder
	b.WriteString("malformed case")
	if e.Source != "" {
		b.WriteString(" ")
		b.WriteString(e.Source)
	}
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the decode error, if any.
func (e *MalformedCaseError) Unwrap() error {
	return e.Err
}

// NewMalformedCaseError creates a MalformedCaseError listing the given problems.
func NewMalformedCaseError(source string, problems ...string) *MalformedCaseError {
	return &MalformedCaseError{Source: source, Problems: problems}
}

// IsMalformedCase checks if an error is, or wraps, a MalformedCaseError.
func IsMalformedCase(err error) bool {
	var target *MalformedCaseError
	return errors.As(err, &target)
}

// CompensationError describes a compensation that failed while the recovery
// stack was being drained. It never changes the verdict of the case that
// pushed the compensation.
type CompensationError struct {
	// OriginalKeyword is the recoverable step that pushed the compensation
	OriginalKeyword string

	// CompensationKeyword is the action word that was run to undo it
	CompensationKeyword string

	Err error
}

// Error implements the error interface for CompensationError.
func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %q for %q failed: %v", e.CompensationKeyword, e.OriginalKeyword, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// NewCompensationError wraps err as a CompensationError.
func NewCompensationError(original, compensation string, err error) *CompensationError {
	return &CompensationError{
		OriginalKeyword:     original,
		CompensationKeyword: compensation,
		Err:                 err,
	}
}

// IsCompensationError checks if an error is, or wraps, a CompensationError.
func IsCompensationError(err error) bool {
	var target *CompensationError
	return errors.As(err, &target)
}

// Package api defines the error types shared by the registry, the case
// parser, the step executor and the recovery manager.
//
// Every error type supports errors.As through a matching Is* helper, so
// callers can classify failures that were wrapped on the way up:
//
//	if api.IsUnknownAction(result.Err) {
//	    // the keyword was never registered
//	}
//
// # Error Types
//
//   - UnknownActionError: a step or compensation names an unregistered keyword
//   - DuplicateActionError: a keyword was registered twice
//   - HandlerError: an action word failed, returned false or nil, or panicked
//   - MalformedCaseError: a case document is missing required structure
//   - CompensationError: a compensation failed while draining the recovery stack
package api

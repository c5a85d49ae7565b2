package faults

import "fmt"

// Code identifies a failure kind that can cross component boundaries.
// Every error a collaborator (editor host, backend) can produce is converted
// to one of these before the turn controller sees it.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeProtectedPathViolation Code = "PROTECTED_PATH_VIOLATION"
	CodeRevisionDrift          Code = "REVISION_DRIFT"
	CodeDiagnosticBlock        Code = "DIAGNOSTIC_BLOCK"
	CodeBackendUnavailable     Code = "BACKEND_UNAVAILABLE"
	CodeStreamFailure          Code = "STREAM_FAILURE"
	CodeValidationMismatch     Code = "VALIDATION_MISMATCH"
)

// StreamReason distinguishes the ways a stream can fail.
type StreamReason string

const (
	StreamRefused   StreamReason = "connection_refused"
	StreamStatus    StreamReason = "http_status"
	StreamMalformed StreamReason = "malformed_chunk"
	StreamTimeout   StreamReason = "timeout"
	StreamCancelled StreamReason = "cancelled"
)

// Fault is a structured error with a code, a user-facing message, and
// optional details for the UI layer.
type Fault struct {
	Code    Code
	Reason  StreamReason // set for CodeStreamFailure only
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Is reports whether err is a Fault with the given code.
func Is(err error, code Code) bool {
	if f, ok := err.(*Fault); ok {
		return f.Code == code
	}
	return false
}

// IsCancelled reports whether err is a user-initiated stream cancellation.
// Cancellation is an expected outcome, never reported to the user as an error.
func IsCancelled(err error) bool {
	f, ok := err.(*Fault)
	return ok && f.Code == CodeStreamFailure && f.Reason == StreamCancelled
}

// NewNotFound marks a path that did not resolve to a readable document.
// This is a normal outcome; assembly proceeds without the file.
func NewNotFound(path string) *Fault {
	return &Fault{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewProtectedPathViolation marks a protected path requested with no override.
// This is an integration error; assembly must fail rather than serve a stale
// disk copy.
func NewProtectedPathViolation(path string) *Fault {
	return &Fault{
		Code:    CodeProtectedPathViolation,
		Message: fmt.Sprintf("path %q has unsaved edits but no live buffer was supplied", path),
		Details: map[string]any{"path": path},
	}
}

// NewRevisionDrift marks a workspace that changed between capture and use.
func NewRevisionDrift(captured, current uint64) *Fault {
	return &Fault{
		Code:    CodeRevisionDrift,
		Message: "the workspace changed while preparing your request; let edits settle and resend",
		Details: map[string]any{"captured_revision": captured, "current_revision": current},
	}
}

// NewDiagnosticBlock marks a turn refused because of blocking diagnostics.
func NewDiagnosticBlock(listing string, count int) *Fault {
	return &Fault{
		Code:    CodeDiagnosticBlock,
		Message: fmt.Sprintf("cannot generate while %d error(s) remain:\n%s", count, listing),
		Details: map[string]any{"count": count},
	}
}

// NewBackendUnavailable marks a backend that is not reachable at all.
func NewBackendUnavailable(url string) *Fault {
	return &Fault{
		Code:    CodeBackendUnavailable,
		Message: fmt.Sprintf("generation backend at %s is not responding; start the backend service and retry", url),
		Details: map[string]any{"url": url},
	}
}

// NewStreamFailure marks a failed stream with a distinct reason.
func NewStreamFailure(reason StreamReason, detail string) *Fault {
	var msg string
	switch reason {
	case StreamRefused:
		msg = "could not connect to the generation backend; start the backend service"
	case StreamStatus:
		msg = "the generation backend rejected the request: " + detail
	case StreamMalformed:
		msg = "the generation backend sent a malformed response: " + detail
	case StreamTimeout:
		msg = "the generation request timed out"
	case StreamCancelled:
		msg = "generation cancelled"
	default:
		msg = detail
	}
	return &Fault{
		Code:    CodeStreamFailure,
		Reason:  reason,
		Message: msg,
	}
}

// NewValidationMismatch marks a response whose shape did not match the request.
func NewValidationMismatch(detail string) *Fault {
	return &Fault{
		Code:    CodeValidationMismatch,
		Message: "the model answered the wrong kind of question: " + detail,
	}
}

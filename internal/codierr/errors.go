// Package codierr defines the stable error taxonomy every subsystem tags
// its errors with: a Kind, a human-readable message, and whether the
// caller should retry. Config loading and the cmd package wrap their
// failures in *Error rather than returning bare errors, so the top-level
// command can branch on Kind via errors.As instead of string matching.
package codierr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy's stable tags.
type Kind string

const (
	// Configuration covers missing keys or an invalid model — fatal,
	// exit code 2.
	Configuration Kind = "configuration"
	// ProviderTransport covers network/TLS/HTTP 5xx/429 failures —
	// retryable per the provider adapter's own retry policy.
	ProviderTransport Kind = "provider_transport"
	// ProviderProtocol covers a malformed stream or schema mismatch —
	// non-retryable, ends the turn with an error.
	ProviderProtocol Kind = "provider_protocol"
	// ToolArgument covers a tool call whose arguments failed schema
	// validation — surfaced as a tool_result, the loop continues.
	ToolArgument Kind = "tool_argument"
	// ToolExecution covers an I/O failure or non-zero subprocess exit —
	// same treatment as ToolArgument.
	ToolExecution Kind = "tool_execution"
	// PathSafety covers a path traversal or workspace escape attempt —
	// tool_result error, never retried.
	PathSafety Kind = "path_safety"
	// Denied covers a user-declined approval.
	Denied Kind = "denied"
	// Cancelled covers a user-initiated cancellation — ends the turn.
	Cancelled Kind = "cancelled"
	// LimitExceeded covers max-iterations or wall-time limits — ends the
	// turn with a visible notice.
	LimitExceeded Kind = "limit_exceeded"
	// IPC covers framing, timeout, or peer-closed failures on the
	// orchestrator transport.
	IPC Kind = "ipc"
)

// Error wraps an underlying cause with a stable Kind and an explicit
// Retryable flag, independent of Kind — two errors of the same Kind can
// still disagree on retryability (e.g. a 429 vs a 400 provider_transport
// error).
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying cause, defaulting Message to cause's own
// error string when message is empty.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRetryable sets e.Retryable and returns e for chaining at the call
// site, e.g. codierr.Wrap(...).WithRetryable(true).
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Is reports whether err is a *Error of the given kind, unwrapping
// through any wrapper chain via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

package tools

import (
	"encoding/json"
	"time"
)

// Result is the outcome of one tool invocation, before it is recorded onto
// the session as a session.ToolResult.
type Result struct {
	ForLLM  string // content returned to the model as the tool_result block
	ForUser string // optional human-facing rendering, empty if ForLLM suffices
	Silent  bool   // suppress ForUser rendering even if non-empty
	IsError bool
	Denied  bool // true when a human rejected the approval prompt, terminal per the approval gate contract
	Err     error
	// StructuredPayload carries a tool-specific JSON record alongside ForLLM
	// for tools whose output has real structure (grep's {path, line_number,
	// text} hits), flowed onto session.ToolResult unchanged.
	StructuredPayload json.RawMessage
	// Truncated marks a result cut off at a bound (grep's hit cap) before
	// it naturally ended.
	Truncated bool
	Duration  time.Duration
}

func (r *Result) withDenied() *Result {
	r.Denied = true
	return r
}

// NewResult builds a successful result whose model-facing and user-facing
// content are the same string.
func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

// SilentResult builds a successful result that should not be echoed to the
// user even though it is sent to the model.
func SilentResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM, Silent: true}
}

// ErrorResult builds a failed result from a plain message.
func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

// UserResult builds a result meant primarily for display, echoed to the
// model unchanged.
func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}

// WithError attaches the causing error and marks the result as failed,
// using err's message as the model-facing content if none was set yet.
func (r *Result) WithError(err error) *Result {
	r.Err = err
	r.IsError = true
	if r.ForLLM == "" {
		r.ForLLM = err.Error()
	}
	return r
}

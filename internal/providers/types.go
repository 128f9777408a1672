// Package providers defines the unified provider adapter contract used by
// the agent loop: a pull-based lazy event stream that every vendor backend
// (Anthropic, OpenAI-compatible, or a deterministic mock for tests)
// translates its own wire format into.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Role mirrors session.Role without importing the session package, keeping
// providers free of the session data model's persistence concerns.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ContentBlock is one fragment of a Message sent to a provider.
type ContentBlock struct {
	Text       string          `json:"text,omitempty"`
	ToolUseID  string          `json:"tool_use_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	ToolOutput string          `json:"tool_output,omitempty"`
	IsToolUse  bool            `json:"is_tool_use,omitempty"`
	IsToolResp bool            `json:"is_tool_response,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

// Message is one entry in the conversation sent as part of a Request.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// ToolDefinition describes one tool available to the model, in the
// provider-agnostic JSON Schema shape every vendor accepts.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any // JSON Schema "properties"/"required"/etc, cleaned per-provider before send.
}

// ThinkingLevel requests extended reasoning depth where the provider
// supports it.
type ThinkingLevel string

const (
	ThinkingOff    ThinkingLevel = ""
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// Request is one model call: the full message history, the tools currently
// visible to the model, and generation options.
type Request struct {
	Model         string
	System        string
	Messages      []Message
	Tools         []ToolDefinition
	MaxTokens     int
	Temperature   *float64
	ThinkingLevel ThinkingLevel
}

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	EventTextDelta     EventKind = "text_delta"
	EventThinkingDelta EventKind = "thinking_delta"
	EventToolUseStart  EventKind = "tool_use_start"
	EventToolUseDelta  EventKind = "tool_use_delta"
	EventToolUseEnd    EventKind = "tool_use_end"
	EventUsageUpdate   EventKind = "usage_update"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// Usage reports token accounting for a turn. Provider-reported usage is
// authoritative over client-side estimation wherever both are available.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	ThinkingTokens      int
}

// StopReason records why the model stopped generating.
type StopReason string

const (
	StopNatural   StopReason = "stop"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "length"
)

// Event is one unit of a provider's streamed response. Exactly one of the
// payload fields is populated, determined by Kind.
type Event struct {
	Kind EventKind

	TextDelta     string
	ThinkingDelta string

	ToolUseID    string
	ToolUseName  string
	ToolUseDelta string // raw JSON fragment, accumulated across ToolUseDelta events until ToolUseEnd

	Usage      *Usage
	StopReason StopReason
	Err        error
}

// Stream is a lazily pulled sequence of Events for one Request. Callers
// must keep calling Next until it returns ok=false; the final call
// surfaces either an EventDone or a terminal error.
type Stream interface {
	Next(ctx context.Context) (event Event, ok bool, err error)
	Close() error
}

// Provider adapts one vendor's wire API to the unified Stream contract.
type Provider interface {
	Name() string
	DefaultModel() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// RetryableError is implemented by errors that carry a recommendation for
// whether the caller should retry the request.
type RetryableError interface {
	error
	Retryable() bool
}

// streamTimeout is the http.Client timeout of the OpenAI-compatible
// adapter: it bounds a whole request, including reading the streamed
// body, not each Stream.Next call on its own.
const streamTimeout = 2 * time.Minute

// Package session defines the conversational data model shared by the
// agent loop, the tool pipeline, and the session store: messages built from
// typed blocks, tool calls and their results, and the session and turn
// envelopes that hold them.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// BlockKind tags the variant held by a Block.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
)

// Block is one tagged fragment of a Message's content. Exactly the field
// matching Kind is populated.
type Block struct {
	Kind       BlockKind        `json:"kind"`
	Text       string           `json:"text,omitempty"`
	Thinking   string           `json:"thinking,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

func TextBlock(text string) Block { return Block{Kind: BlockText, Text: text} }

func ThinkingBlock(text string) Block { return Block{Kind: BlockThinking, Thinking: text} }

func ToolUseBlockOf(id, name string, args json.RawMessage) Block {
	return Block{Kind: BlockToolUse, ToolUse: &ToolUseBlock{ID: id, Name: name, Arguments: args}}
}

func ToolResultBlockOf(id, output string, isError bool) Block {
	return Block{Kind: BlockToolResult, ToolResult: &ToolResultBlock{ID: id, Output: output, IsError: isError}}
}

// ToolUseBlock is a model-issued request to invoke a tool.
type ToolUseBlock struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultBlock resolves a prior ToolUseBlock with the same ID.
type ToolResultBlock struct {
	ID      string `json:"id"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

// Message is one append-only conversational exchange.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolUseIDs returns the ids of every tool_use block in the message, in
// emission order.
func (m Message) ToolUseIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Kind == BlockToolUse {
			ids = append(ids, b.ToolUse.ID)
		}
	}
	return ids
}

// HasUnresolvedToolUse reports whether m contains tool_use blocks (used by
// the context manager to treat the message atomically during working-set
// selection).
func (m Message) HasUnresolvedToolUse() bool {
	return len(m.ToolUseIDs()) > 0
}

// ToolCallState is the lifecycle of one ToolCall instance.
type ToolCallState string

const (
	ToolCallPending   ToolCallState = "pending"
	ToolCallApproved  ToolCallState = "approved"
	ToolCallDenied    ToolCallState = "denied"
	ToolCallRunning   ToolCallState = "running"
	ToolCallCompleted ToolCallState = "completed"
	ToolCallFailed    ToolCallState = "failed"
)

// ToolCall is one instance of a tool invocation requested within a turn.
type ToolCall struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ArgumentsJSON string        `json:"arguments_json"`
	State         ToolCallState `json:"state"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ID                string          `json:"id"`
	Success           bool            `json:"success"`
	Output            string          `json:"output"`
	StructuredPayload json.RawMessage `json:"structured_payload,omitempty"`
	Duration          time.Duration   `json:"duration"`
	TokenCostEstimate int             `json:"token_cost_estimate"`
	Truncated         bool            `json:"truncated,omitempty"`
}

// EndReason records why a Turn stopped.
type EndReason string

const (
	EndNatural       EndReason = "natural"
	EndMaxIterations EndReason = "max_iterations"
	EndCancelled     EndReason = "cancelled"
	EndError         EndReason = "error"
)

// Turn is the ephemeral scope of one model call and the tool-execution
// phase that follows it.
type Turn struct {
	InputTokensUsed  int
	OutputTokensUsed int
	ToolCalls        []ToolCall
	ToolResults      []ToolResult
	Duration         time.Duration
	EndReason        EndReason
}

// Session is the durable, append-only conversation a user or worker holds
// with the agent.
type Session struct {
	ID              uuid.UUID       `json:"id"`
	Label           string          `json:"label"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Model           string          `json:"model"`
	Provider        string          `json:"provider"`
	SystemPrompt    string          `json:"system_prompt"`
	ProjectRoot     string          `json:"project_root"`
	Messages        []Message       `json:"messages"`
	Todos           []string        `json:"todos"`
	WorkingSetHint  int             `json:"working_set_hint"`
	TotalInputToks  int64           `json:"total_input_tokens"`
	TotalOutputToks int64           `json:"total_output_tokens"`
	AutoApprove     map[string]bool `json:"auto_approve"`
	CompactionCount int             `json:"compaction_count"`
}

// New creates an empty session rooted at root, ready for its first turn.
func New(model, provider, systemPrompt, root string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Model:        model,
		Provider:     provider,
		SystemPrompt: systemPrompt,
		ProjectRoot:  root,
		AutoApprove:  make(map[string]bool),
	}
}

// AppendMessage is the sole mutator of Session.Messages, preserving the
// append-only invariant from the data model.
func (s *Session) AppendMessage(m Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = m.CreatedAt
}

// AccumulateTokens adds to the session's running token counters. Counters
// are monotonically non-decreasing across turns, per the data model
// invariant.
func (s *Session) AccumulateTokens(input, output int64) {
	s.TotalInputToks += input
	s.TotalOutputToks += output
}

// PendingToolResultIDs returns the ids of tool_use blocks in any message
// that have no matching tool_result anywhere in the session,
// used to validate the "no orphan tool_use" invariant.
func (s *Session) PendingToolResultIDs() []string {
	resolved := make(map[string]bool)
	var pending []string
	for _, m := range s.Messages {
		for _, b := range m.Blocks {
			switch b.Kind {
			case BlockToolUse:
				pending = append(pending, b.ToolUse.ID)
			case BlockToolResult:
				resolved[b.ToolResult.ID] = true
			}
		}
	}
	var out []string
	for _, id := range pending {
		if !resolved[id] {
			out = append(out, id)
		}
	}
	return out
}

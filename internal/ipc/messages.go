// Package ipc implements the length-prefixed framed channel the
// orchestrator's commander and worker processes speak over a Unix domain
// socket: a 4-byte big-endian length prefix followed by a JSON payload,
// carrying a small tagged message-type enumeration.
package ipc

import "encoding/json"

// MessageType tags the variant carried by a Message's Payload.
type MessageType string

const (
	Handshake         MessageType = "Handshake"
	HandshakeAck      MessageType = "HandshakeAck"
	Ready             MessageType = "Ready"
	PermissionRequest MessageType = "PermissionRequest"
	PermissionResp    MessageType = "PermissionResponse"
	Status            MessageType = "Status"
	Log               MessageType = "Log"
	TaskComplete      MessageType = "TaskComplete"
	TaskError         MessageType = "TaskError"
	Ping              MessageType = "Ping"
	Pong              MessageType = "Pong"
	Cancel            MessageType = "Cancel"
	Shutdown          MessageType = "Shutdown"
)

// Message is one frame's decoded payload: a type tag, an optional
// correlation id (request/response pairing, e.g. PermissionRequest and
// its matching PermissionResponse), and the type-specific payload.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds a Message from a typed payload.
func Encode(t MessageType, id string, payload any) (Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, ID: id, Payload: body}, nil
}

// Decode unmarshals m's payload into dst, which must be a pointer to the
// type matching m.Type.
func Decode(m Message, dst any) error {
	return json.Unmarshal(m.Payload, dst)
}

// HandshakePayload is the worker's introduction: its id, the random
// per-worker token the commander issued at spawn and checks once here
// (later frames carry no token), and the worktree path it was spawned
// against.
type HandshakePayload struct {
	WorkerID     string `json:"worker_id"`
	Token        string `json:"token"`
	WorktreePath string `json:"worktree_path"`
}

// PermissionRequestPayload forwards a pending tool call from a worker's
// local Approval Gate up to the commander for a user-facing decision.
type PermissionRequestPayload struct {
	ToolName   string `json:"tool_name"`
	Category   string `json:"category"`
	DangerTier int    `json:"danger_tier"`
	DangerWhy  string `json:"danger_why,omitempty"`
	Preview    string `json:"preview"`
}

// PermissionResponsePayload carries the commander's decision back down to
// the worker that raised the matching PermissionRequest (same Message.ID).
type PermissionResponsePayload struct {
	Approved bool   `json:"approved"`
	Always   string `json:"always,omitempty"` // "", "tool", or "pattern"
}

// TaskCompletePayload reports a worker's finished task, summarized as a
// diff against the worktree's base commit rather than the full patch —
// the commander decides whether to fetch the worktree's actual diff.
type TaskCompletePayload struct {
	DiffSummary string `json:"diff_summary"`
}

// TaskErrorPayload reports a worker's task failure.
type TaskErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusPayload reports a worker's lifecycle state transition.
type StatusPayload struct {
	State string `json:"state"`
}

// LogPayload forwards a worker's log line to the commander for unified
// output, since a detached worker process has no terminal of its own.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Info is the lightweight listing projection of a Session, used by
// "sessions list" without loading full message history.
type Info struct {
	ID              uuid.UUID
	Label           string
	MessageCount    int
	Created         time.Time
	Updated         time.Time
	Model           string
	Provider        string
	TotalInputToks  int64
	TotalOutputToks int64
}

// ListOpts filters and paginates Store.List.
type ListOpts struct {
	Limit  int
	Offset int
}

// ListResult is a page of session listings.
type ListResult struct {
	Sessions []Info
	Total    int
}

// Store persists Sessions across process runs. Implementations must be
// safe for concurrent use; the agent loop and a worker's IPC forwarder may
// both touch the same backing store concurrently from different processes.
type Store interface {
	// Create persists a brand-new session; s itself is not modified.
	Create(ctx context.Context, s *Session) error

	// Get loads a session by id, including its full message history.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// Save persists the full current state of s, including all messages
	// appended since the last Save.
	Save(ctx context.Context, s *Session) error

	// AppendMessage persists one message onto an existing session without
	// requiring the caller to round-trip the full session.
	AppendMessage(ctx context.Context, id uuid.UUID, m Message) error

	// AccumulateTokens adds to a session's running token counters.
	AccumulateTokens(ctx context.Context, id uuid.UUID, input, output int64) error

	// IncrementCompaction records that a compaction pass ran.
	IncrementCompaction(ctx context.Context, id uuid.UUID) error

	// TruncateHistory drops all but the most recent keepLast messages,
	// called after compaction replaces older turns with a summary.
	TruncateHistory(ctx context.Context, id uuid.UUID, keepLast int) error

	// SetLabel assigns a human-readable label to a session.
	SetLabel(ctx context.Context, id uuid.UUID, label string) error

	// List returns session summaries ordered by most recently updated.
	List(ctx context.Context, opts ListOpts) (ListResult, error)

	// Delete removes a session and its message history.
	Delete(ctx context.Context, id uuid.UUID) error

	// Close releases any underlying resources (database handles, files).
	Close() error
}

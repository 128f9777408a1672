// Package audit writes the append-only JSONL audit trail described in
// §6: one line per event, opened lazily under ~/.codi/audit/ the first
// time a run actually produces an audit-worthy event.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Kind tags what an audit entry's payload describes.
type Kind string

const (
	ToolCall         Kind = "tool_call"
	ToolResult       Kind = "tool_result"
	Approval         Kind = "approval"
	ProviderRequest  Kind = "provider_request"
	ProviderResponse Kind = "provider_response"
	Error            Kind = "error"
)

type entry struct {
	Timestamp time.Time `json:"ts"`
	Kind      Kind      `json:"kind"`
	Payload   any       `json:"payload"`
}

// Sink is the process-wide audit singleton. It is safe for concurrent
// use and never blocks a caller on a write failure — a broken audit
// sink must not take down a run.
type Sink struct {
	mu        sync.Mutex
	enabled   bool
	sessionID string
	writer    *lumberjack.Logger
}

// NewSink returns a Sink that only writes when enabled is true. A
// disabled Sink is still safe to call Record/Close on; both are no-ops.
func NewSink(enabled bool, sessionID string) *Sink {
	return &Sink{enabled: enabled, sessionID: sessionID}
}

// Record appends one entry to the audit log, opening the underlying
// file on first use. Marshal or open failures are swallowed: audit
// logging is best-effort and must never surface as a run failure.
func (s *Sink) Record(kind Kind, payload any) {
	if s == nil || !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		if err := s.open(); err != nil {
			return
		}
	}

	line, err := json.Marshal(entry{Timestamp: time.Now(), Kind: kind, Payload: payload})
	if err != nil {
		return
	}
	line = append(line, '\n')
	_, _ = s.writer.Write(line)
}

func (s *Sink) open() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".codi", "audit")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	s.writer = &lumberjack.Logger{
		Filename:   filepath.Join(dir, s.sessionID+".jsonl"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	return nil
}

// Close flushes and closes the underlying file, if one was ever opened.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

package agent

// EventType tags the variant carried by an AgentEvent.
type EventType string

const (
	TurnStarted   EventType = "turn_started"
	ToolExecuting EventType = "tool_executing"
	ToolCompleted EventType = "tool_completed"
	TurnEnded     EventType = "turn_ended"
)

// AgentEvent is one lifecycle notification emitted during a turn. It is
// the engine's sole extension point for progress rendering: a terminal UI,
// a log sink, or a test assertion all subscribe the same way, via the
// onEvent callback passed to New.
type AgentEvent struct {
	Type EventType

	ToolID   string // set for ToolExecuting/ToolCompleted
	ToolName string // set for ToolExecuting
	IsError  bool   // set for ToolCompleted

	EndReason string // set for TurnEnded
	Err       error  // set for TurnEnded when EndReason is "error"
}

func (l *Loop) emit(ev AgentEvent) {
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

// DeltaSink receives incremental text as a turn streams. Both methods are
// called synchronously from the loop's goroutine: a slow sink applies
// back-pressure to the whole turn, which is the point — the loop must not
// race ahead of a caller that is still rendering the previous delta.
type DeltaSink interface {
	Text(delta string)
	Thinking(delta string)
}

// NoopSink discards every delta, for callers that only care about the
// final session state (tests, headless batch runs).
type NoopSink struct{}

func (NoopSink) Text(string)     {}
func (NoopSink) Thinking(string) {}

// FuncSink adapts two plain functions to DeltaSink. A nil field is treated
// as a no-op for that delta kind.
type FuncSink struct {
	OnText     func(string)
	OnThinking func(string)
}

func (s FuncSink) Text(delta string) {
	if s.OnText != nil {
		s.OnText(delta)
	}
}

func (s FuncSink) Thinking(delta string) {
	if s.OnThinking != nil {
		s.OnThinking(delta)
	}
}

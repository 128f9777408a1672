package providers

import (
	"context"
	"fmt"
)

// MockProvider replays a scripted queue of responses, one per Stream call,
// for deterministic tests of the agent loop without a network dependency.
type MockProvider struct {
	name      string
	model     string
	responses [][]Event
	calls     int
}

// NewMockProvider creates an empty mock; use With* options or AddResponse
// to script its behavior.
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", model: "mock-model"}
}

func (p *MockProvider) Name() string         { return p.name }
func (p *MockProvider) DefaultModel() string { return p.model }

// AddResponse appends one scripted turn's worth of events, terminated
// automatically with EventDone if the caller didn't include one.
func (p *MockProvider) AddResponse(events ...Event) *MockProvider {
	if len(events) == 0 || events[len(events)-1].Kind != EventDone {
		events = append(events, Event{Kind: EventDone})
	}
	p.responses = append(p.responses, events)
	return p
}

// WithTextResponse scripts a plain text reply followed by a usage update.
func (p *MockProvider) WithTextResponse(text string, inputTokens, outputTokens int) *MockProvider {
	return p.AddResponse(
		Event{Kind: EventTextDelta, TextDelta: text},
		Event{Kind: EventUsageUpdate, Usage: &Usage{InputTokens: inputTokens, OutputTokens: outputTokens}, StopReason: StopNatural},
	)
}

// WithToolUseResponse scripts a single tool call with no preceding text.
func (p *MockProvider) WithToolUseResponse(toolUseID, toolName, argsJSON string, inputTokens, outputTokens int) *MockProvider {
	return p.AddResponse(
		Event{Kind: EventToolUseStart, ToolUseID: toolUseID, ToolUseName: toolName},
		Event{Kind: EventToolUseDelta, ToolUseID: toolUseID, ToolUseDelta: argsJSON},
		Event{Kind: EventToolUseEnd, ToolUseID: toolUseID, ToolUseName: toolName, ToolUseDelta: argsJSON},
		Event{Kind: EventUsageUpdate, Usage: &Usage{InputTokens: inputTokens, OutputTokens: outputTokens}, StopReason: StopToolUse},
	)
}

// WithErrorResponse scripts a terminal stream error.
func (p *MockProvider) WithErrorResponse(err error) *MockProvider {
	p.responses = append(p.responses, []Event{{Kind: EventError, Err: err}})
	return p
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("mock provider: no scripted response for call %d", p.calls+1)
	}
	events := p.responses[p.calls]
	p.calls++
	return &mockStream{events: events}, nil
}

// CallCount reports how many times Stream has been invoked, for
// asserting the agent loop made the expected number of model calls.
func (p *MockProvider) CallCount() int { return p.calls }

type mockStream struct {
	events []Event
	pos    int
}

func (s *mockStream) Next(ctx context.Context) (Event, bool, error) {
	if s.pos >= len(s.events) {
		return Event{}, false, nil
	}
	ev := s.events[s.pos]
	s.pos++
	if ev.Kind == EventError {
		return Event{}, false, ev.Err
	}
	return ev, true, nil
}

func (s *mockStream) Close() error { return nil }

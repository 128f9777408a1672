package providers

import (
	"context"
	"errors"
	"testing"
)

func drain(t *testing.T, stream Stream) []Event {
	t.Helper()
	var events []Event
	for {
		ev, ok, err := stream.Next(context.Background())
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func TestMockProviderTextResponse(t *testing.T) {
	p := NewMockProvider().WithTextResponse("hello there", 100, 20)
	stream, err := p.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	events := drain(t, stream)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != EventTextDelta || events[0].TextDelta != "hello there" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != EventUsageUpdate || events[1].Usage.InputTokens != 100 {
		t.Fatalf("unexpected usage event: %+v", events[1])
	}
}

func TestMockProviderToolUseResponse(t *testing.T) {
	p := NewMockProvider().WithToolUseResponse("call_1", "read_file", `{"path":"a.go"}`, 50, 10)
	stream, err := p.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	events := drain(t, stream)
	if events[0].Kind != EventToolUseStart || events[0].ToolUseID != "call_1" {
		t.Fatalf("unexpected start event: %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Kind != EventUsageUpdate || last.StopReason != StopToolUse {
		t.Fatalf("expected tool_use stop reason, got %+v", last)
	}
}

func TestMockProviderExhaustedQueueErrors(t *testing.T) {
	p := NewMockProvider()
	if _, err := p.Stream(context.Background(), Request{}); err == nil {
		t.Fatal("expected error on empty response queue")
	}
}

func TestMockProviderErrorResponse(t *testing.T) {
	wantErr := errors.New("simulated network failure")
	p := NewMockProvider().WithErrorResponse(wantErr)
	stream, err := p.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	_, _, err = stream.Next(context.Background())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped simulated error, got %v", err)
	}
}

func TestCleanSchemaForProviderStripsDisallowedKeywords(t *testing.T) {
	schema := map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "default": "foo", "examples": []string{"a"}},
		},
	}
	cleaned := CleanSchemaForProvider(schema)
	if _, ok := cleaned["$schema"]; ok {
		t.Fatal("expected $schema to be stripped")
	}
	props := cleaned["properties"].(map[string]any)
	path := props["path"].(map[string]any)
	if _, ok := path["default"]; ok {
		t.Fatal("expected default to be stripped from nested property")
	}
}

func TestRetryDoStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := RetryDo(context.Background(), DefaultRetryConfig(), func() error {
		attempts++
		return errors.New("not retryable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestRetryDoRetriesOnHTTPError(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 2}
	err := RetryDo(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{Status: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

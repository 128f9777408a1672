package codierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapDefaultsMessageToCauseString(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ProviderTransport, "", cause)
	if err.Message != "boom" {
		t.Fatalf("expected message %q, got %q", "boom", err.Message)
	}
	if !errors.Is(err, err) {
		t.Fatal("expected Wrap result to equal itself under errors.Is")
	}
	if errors.Unwrap(err) != cause {
		t.Fatal("expected Unwrap to return the original cause")
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	inner := New(PathSafety, "escaped workspace")
	wrapped := fmt.Errorf("tool failed: %w", inner)

	if !Is(wrapped, PathSafety) {
		t.Fatal("expected Is to find the PathSafety kind through fmt.Errorf wrapping")
	}
	if Is(wrapped, Denied) {
		t.Fatal("expected Is to reject a mismatched kind")
	}
}

func TestWithRetryableChains(t *testing.T) {
	err := Wrap(ProviderTransport, "rate limited", errors.New("429")).WithRetryable(true)
	if !err.Retryable {
		t.Fatal("expected Retryable to be true after WithRetryable(true)")
	}
}

func TestErrorStringIncludesKindAndCause(t *testing.T) {
	err := Wrap(ToolExecution, "command failed", errors.New("exit status 1"))
	got := err.Error()
	if got != "tool_execution: command failed: exit status 1" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

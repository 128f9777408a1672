package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitedAllowsBurstThenPaces(t *testing.T) {
	mock := NewMockProvider().
		WithTextResponse("a", 1, 1).
		WithTextResponse("b", 1, 1).
		WithTextResponse("c", 1, 1)
	limited := RateLimited(mock, 1000, 2) // fast enough not to slow the test down

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		stream, err := limited.Stream(ctx, Request{})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		drainAll(t, stream)
	}
	if got := mock.CallCount(); got != 3 {
		t.Fatalf("CallCount() = %d, want 3", got)
	}
}

func TestRateLimitedRespectsContextCancellation(t *testing.T) {
	mock := NewMockProvider().WithTextResponse("a", 1, 1)
	// A limiter with a burst of one and a very slow refill forces Wait to block
	// until the context is cancelled.
	limited := RateLimited(mock, 0.001, 1)

	// Consume the lone burst slot so the next call must wait.
	ctx := context.Background()
	if _, err := limited.Stream(ctx, Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Stream(cancelCtx, Request{}); err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestRateLimitedDefaultsWhenUnset(t *testing.T) {
	mock := NewMockProvider().WithTextResponse("a", 1, 1)
	limited := RateLimited(mock, 0, 0)
	if _, err := limited.Stream(context.Background(), Request{}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
}

func drainAll(t *testing.T, s Stream) {
	t.Helper()
	for {
		_, ok, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("stream.Next: %v", err)
		}
		if !ok {
			return
		}
	}
}

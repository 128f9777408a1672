package agent

import (
	"context"
	"errors"
	"testing"
)

func TestTracingHelpersDoNotPanicWithoutAConfiguredProvider(t *testing.T) {
	ctx := context.Background()

	_, turnSpan := startTurnSpan(ctx, "mock-model", "mock")
	endSpan(turnSpan, nil)

	_, llmSpan := startLLMSpan(ctx, "mock-model", "mock", 1)
	endSpan(llmSpan, errors.New("boom"))

	_, toolSpan := startToolSpan(ctx, "echo", "call-1")
	endToolSpan(toolSpan, false)

	_, toolErrSpan := startToolSpan(ctx, "echo", "call-2")
	endToolSpan(toolErrSpan, true)
}

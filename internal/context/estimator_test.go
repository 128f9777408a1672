package context

import (
	"testing"

	"github.com/nextlevelbuilder/codi/internal/session"
)

func TestEstimateTokensScalesWithWordCount(t *testing.T) {
	short := EstimateTokens("one two three")
	long := EstimateTokens("one two three four five six")
	if long <= short {
		t.Fatalf("expected longer text to estimate higher, got short=%d long=%d", short, long)
	}
}

func TestEstimateTokensEmptyString(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 for empty string, got %d", got)
	}
}

func TestEstimateMessageSumsBlocks(t *testing.T) {
	m := session.Message{Blocks: []session.Block{
		session.TextBlock("hello world"),
		session.ThinkingBlock("thinking about it"),
	}}
	if got := EstimateMessage(m); got == 0 {
		t.Fatal("expected non-zero estimate across text and thinking blocks")
	}
}

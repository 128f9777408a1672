package context

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
)

func TestCompactReturnsSummaryAndTail(t *testing.T) {
	provider := providers.NewMockProvider().WithTextResponse("summary of the old turns", 500, 40)
	history := []session.Message{
		userMsg("old question one"),
		assistantMsg("old answer one"),
		userMsg("old question two"),
		assistantMsg("old answer two"),
		userMsg("newest question"),
	}

	summary, tail, err := Compact(context.Background(), provider, "mock-model", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Role != session.RoleSystem {
		t.Fatalf("expected summary to be a system message, got %s", summary.Role)
	}
	if !strings.Contains(summary.Blocks[0].Text, "summary of the old turns") {
		t.Fatalf("expected summary text to be carried through, got %q", summary.Blocks[0].Text)
	}
	if len(tail) != 1 || tail[0].Blocks[0].Text != "newest question" {
		t.Fatalf("expected the tail group to retain only the newest message, got %+v", tail)
	}
}

func TestCompactRejectsEmptyHistory(t *testing.T) {
	provider := providers.NewMockProvider()
	_, _, err := Compact(context.Background(), provider, "mock-model", nil)
	if err == nil {
		t.Fatal("expected an error compacting empty history")
	}
}

func TestCompactSurfacesStreamError(t *testing.T) {
	provider := providers.NewMockProvider().WithErrorResponse(errBoom{})
	history := []session.Message{userMsg("a"), userMsg("b")}
	_, _, err := Compact(context.Background(), provider, "mock-model", history)
	if err == nil {
		t.Fatal("expected the stream error to propagate")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

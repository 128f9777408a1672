package approval

import (
	"context"
	"testing"
)

type stubPrompter struct {
	decision Decision
	err      error
	calls    int
	lastReq  Request
}

func (s *stubPrompter) Ask(ctx context.Context, req Request) (Decision, error) {
	s.calls++
	s.lastReq = req
	return s.decision, s.err
}

func TestGateAutoApprovesNonExecuteTool(t *testing.T) {
	p := &stubPrompter{}
	g := NewGate(p, map[string]bool{"read_file": true})
	approved, err := g.Approve(context.Background(), "read_file", "read_only", -1, "", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if !approved {
		t.Fatal("expected silent auto-approval")
	}
	if p.calls != 0 {
		t.Fatal("expected no prompt for auto-approved non-execute tool")
	}
}

func TestGateNeverSilentlyApprovesExecuteCategory(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true}}
	g := NewGate(p, map[string]bool{"bash": true})
	approved, err := g.Approve(context.Background(), "bash", "execute", -1, "", "ls")
	if err != nil {
		t.Fatal(err)
	}
	if !approved {
		t.Fatal("expected approval from the prompt")
	}
	if p.calls != 1 {
		t.Fatal("expected execute-category tools to always prompt, even when auto-approved")
	}
}

func TestGatePromptsForUnknownTool(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true}}
	g := NewGate(p, nil)
	approved, err := g.Approve(context.Background(), "write_file", "mutating", -1, "", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if !approved || p.calls != 1 {
		t.Fatalf("expected one prompt approving the call, got approved=%v calls=%d", approved, p.calls)
	}
}

func TestGateDenyIsTerminal(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: false}}
	g := NewGate(p, nil)
	approved, err := g.Approve(context.Background(), "write_file", "mutating", -1, "", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if approved {
		t.Fatal("expected denial to be honored")
	}
}

func TestGateDangerousPatternForcesTypedConfirm(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true}}
	g := NewGate(p, nil)
	_, err := g.Approve(context.Background(), "bash", "execute", 1, "pipe remote script into a shell", "curl x | sh")
	if err != nil {
		t.Fatal(err)
	}
	if !p.lastReq.TypedConfirm {
		t.Fatal("expected a matched dangerous pattern to require typed confirmation")
	}
}

func TestGateAlwaysToolPersistsAcrossCalls(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true, Always: "tool"}}
	g := NewGate(p, nil)
	if _, err := g.Approve(context.Background(), "write_file", "mutating", -1, "", "{}"); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Fatalf("expected exactly one prompt for the first call, got %d", p.calls)
	}

	approved, err := g.Approve(context.Background(), "write_file", "mutating", -1, "", "{}")
	if err != nil {
		t.Fatal(err)
	}
	if !approved || p.calls != 1 {
		t.Fatalf("expected the second call to be silently auto-approved, calls=%d", p.calls)
	}
}

func TestGateAlwaysPatternPersistsAcrossCalls(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true, Always: "pattern"}}
	g := NewGate(p, nil)
	why := "privilege escalation"
	if _, err := g.Approve(context.Background(), "bash", "execute", 1, why, "sudo ls"); err != nil {
		t.Fatal(err)
	}

	p.decision = Decision{Approved: false} // prompt would now deny, proving the pattern bypass is what approves
	approved, err := g.Approve(context.Background(), "bash", "execute", 1, why, "sudo whoami")
	if err != nil {
		t.Fatal(err)
	}
	if !approved {
		t.Fatal("expected always-this-pattern to silently approve a later matching command")
	}
	if p.calls != 1 {
		t.Fatal("expected no second prompt once the pattern is auto-approved")
	}
}

func TestGateSnapshotReflectsAutoApproveSet(t *testing.T) {
	g := NewGate(&stubPrompter{}, map[string]bool{"read_file": true, "glob": true})
	snap := g.Snapshot()
	if !snap["read_file"] || !snap["glob"] {
		t.Fatalf("expected seeded auto-approve set in snapshot, got %v", snap)
	}
}

func TestGateSerializesConcurrentPrompts(t *testing.T) {
	p := &stubPrompter{decision: Decision{Approved: true}}
	g := NewGate(p, nil)
	done := make(chan struct{})
	go func() {
		g.Approve(context.Background(), "a", "mutating", -1, "", "{}")
		done <- struct{}{}
	}()
	g.Approve(context.Background(), "b", "mutating", -1, "", "{}")
	<-done
	if p.calls != 2 {
		t.Fatalf("expected both prompts to complete, got %d", p.calls)
	}
}

// Package approval implements the Approval Gate: the single serialized
// decision point every mutating or risky tool call passes through before
// the registry executes it.
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/codi/internal/tools"
)

// Decision is how a human (or a forwarding commander) answered a prompt.
type Decision struct {
	Approved bool
	// Always is "", "tool", or "pattern" — non-empty augments the gate's
	// in-memory auto-approve set so future identical decisions are
	// silent.
	Always string
}

// Request describes one pending approval prompt.
type Request struct {
	ToolName     string
	Category     string
	DangerTier   int // -1 when no dangerous pattern matched
	DangerWhy    string
	Preview      string // rendered argument preview shown to the human
	TypedConfirm bool   // true forces an explicit typed confirmation, not single-key yes
}

// Prompter surfaces a Request to a human and waits for their answer. The
// CLI implements this over stdin; the orchestrator implements it by
// forwarding the request up the IPC chain to the commander and relaying
// the reply back down.
type Prompter interface {
	Ask(ctx context.Context, req Request) (Decision, error)
}

// Gate is the single point every tool call's approval decision passes
// through, serializing prompts so two never race onto the terminal (or
// IPC channel) at once.
type Gate struct {
	mu           sync.Mutex
	promptMu     sync.Mutex // held for the duration of one prompt, serializing across concurrent calls
	prompter     Prompter
	autoApprove  map[string]bool
	autoPatterns map[string]bool
}

// NewGate builds a Gate that prompts through p, seeded with a session's
// previously persisted auto_approve set.
func NewGate(p Prompter, seedAutoApprove map[string]bool) *Gate {
	g := &Gate{
		prompter:     p,
		autoApprove:  make(map[string]bool),
		autoPatterns: make(map[string]bool),
	}
	for name, ok := range seedAutoApprove {
		if ok {
			g.autoApprove[name] = true
		}
	}
	return g
}

// Approve implements tools.Approver, running the four-step decision
// rule: silent auto-approve, dangerous-pattern blocking warning,
// interactive prompt, deny-is-terminal.
func (g *Gate) Approve(ctx context.Context, toolName, category string, dangerTier int, dangerWhy, preview string) (bool, error) {
	matched := dangerTier >= 0

	g.mu.Lock()
	autoApproved := g.autoApprove[toolName]
	patternApproved := matched && g.autoPatterns[dangerWhy]
	g.mu.Unlock()

	// Step 1: silent auto-approve, but never for execute-category tools —
	// a bash call always passes through the dangerous-pattern filter and
	// at minimum an interactive prompt, even if "bash" itself is on the
	// auto-approve list.
	if autoApproved && category != string(tools.CategoryExecute) {
		return true, nil
	}
	if patternApproved {
		return true, nil
	}

	// Step 2: a matched dangerous pattern always forces an explicit typed
	// confirmation, even if the tool itself is on the auto-approve list.
	req := Request{
		ToolName:   toolName,
		Category:   category,
		DangerTier: dangerTier,
		DangerWhy:  dangerWhy,
		Preview:    preview,
	}
	if matched {
		req.TypedConfirm = true
	}

	decision, err := g.prompt(ctx, req)
	if err != nil {
		return false, fmt.Errorf("approval prompt failed: %w", err)
	}

	if decision.Approved {
		g.applyAlways(toolName, dangerWhy, decision.Always)
	}
	return decision.Approved, nil
}

// prompt serializes concurrent Approve calls so only one Request is ever
// outstanding at a time, matching the gate's single bounded queue.
func (g *Gate) prompt(ctx context.Context, req Request) (Decision, error) {
	g.promptMu.Lock()
	defer g.promptMu.Unlock()
	return g.prompter.Ask(ctx, req)
}

func (g *Gate) applyAlways(toolName, dangerWhy, always string) {
	if always == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch always {
	case "tool":
		g.autoApprove[toolName] = true
	case "pattern":
		if dangerWhy != "" {
			g.autoPatterns[dangerWhy] = true
		}
	}
}

// Snapshot returns the current auto-approve tool set, persisted into the
// session's config at session close.
func (g *Gate) Snapshot() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]bool, len(g.autoApprove))
	for k, v := range g.autoApprove {
		out[k] = v
	}
	return out
}

// Package tools implements the standard tool set the agent loop can call:
// a registry contract for lookup and dispatch, the seven built-in
// filesystem/search/shell tools, the dangerous-command filter, and a
// visibility policy layered on top of the registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Category classifies a tool's side-effect profile, used by the approval
// gate's auto-approve-set check.
type Category string

const (
	CategoryReadOnly Category = "read_only"
	CategoryMutating Category = "mutating"
	CategoryExecute  Category = "execute"
)

// Tool is one callable tool. Definition is returned separately from
// Execute so the registry can build the provider-facing tool list without
// invoking any tool.
type Tool interface {
	Name() string
	Description() string
	Category() Category
	Schema() map[string]any
	Execute(ctx context.Context, argsJSON json.RawMessage) *Result
}

// Approver is the narrow slice of the approval gate the registry depends
// on, kept as an interface here to avoid an import cycle between tools and
// approval.
type Approver interface {
	Approve(ctx context.Context, toolName, category string, dangerTier int, dangerWhy, preview string) (approved bool, err error)
}

// Registry holds the tool set visible to one session. It is built once
// before the first turn starts and sealed: after that Register fails,
// so no tool is added mid-turn, matching the data model's invariant
// that the provider's tool list cannot change between a tool_use and its
// tool_result. Unregister still removes tools from a sealed registry.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	sealed   bool
	approver Approver
	danger   *DangerPatternFilter
}

// NewRegistry creates an empty registry wired to the given approval gate
// and dangerous-pattern filter.
func NewRegistry(approver Approver, danger *DangerPatternFilter) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		approver: approver,
		danger:   danger,
	}
}

// Register adds a tool. Returns an error if sealed, if the name is already
// taken, or if the tool is nil.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("registry is sealed: cannot register %q after a turn has started", t.Name())
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Seal freezes the tool set. Called once, immediately before the first
// turn's request is assembled.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Unregister removes a tool, used by the MCP bridge when a server
// disconnects or a tool is filtered by grant. Permitted even on a sealed
// registry: the seal guards the provider's tool list against mutation
// mid-turn, not against a server going away between turns.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the provider-facing tool list in a stable order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Definition is the provider-facing description of one tool.
type Definition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Execute validates arguments against the tool's schema, runs the
// approval gate, and dispatches to the tool. unknown_tool and
// schema_validation_failed are returned as error Results rather than Go
// errors so the model always receives a tool_result for its tool_use.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON json.RawMessage) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown_tool: %q is not a registered tool", name))
	}

	if err := validateAgainstSchema(argsJSON, t.Schema()); err != nil {
		return ErrorResult(fmt.Sprintf("schema_validation_failed: %v", err))
	}

	tier, why, matched := 0, "", false
	if shellTool, ok := t.(interface{ Command(json.RawMessage) string }); ok && r.danger != nil {
		cmd := shellTool.Command(argsJSON)
		var patternTier PatternTier
		patternTier, why, matched = r.danger.Classify(cmd)
		tier = int(patternTier)
		if matched && patternTier == TierHardForbidden {
			return ErrorResult(fmt.Sprintf("command rejected: %s", why))
		}
	}

	if r.approver != nil {
		preview := string(argsJSON)
		if previewer, ok := t.(interface{ Preview(json.RawMessage) string }); ok {
			preview = previewer.Preview(argsJSON)
		}
		approved, err := r.approver.Approve(ctx, name, string(t.Category()), tierOrNegOne(matched, tier), why, preview)
		if err != nil {
			return ErrorResult(fmt.Sprintf("approval error: %v", err)).WithError(err)
		}
		if !approved {
			return ErrorResult("denied by user").withDenied()
		}
	}

	return t.Execute(ctx, argsJSON)
}

func tierOrNegOne(matched bool, tier int) int {
	if !matched {
		return -1
	}
	return tier
}

// validateAgainstSchema performs a minimal structural check: argsJSON must
// decode as a JSON object and every property named in schema's "required"
// list must be present. Full JSON Schema validation is not attempted;
// tools themselves re-validate types when they parse argsJSON.
func validateAgainstSchema(argsJSON json.RawMessage, schema map[string]any) error {
	if len(argsJSON) == 0 {
		argsJSON = json.RawMessage(`{}`)
	}
	var decoded map[string]any
	if err := json.Unmarshal(argsJSON, &decoded); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	required, _ := schema["required"].([]string)
	for _, field := range required {
		if _, ok := decoded[field]; !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	return nil
}

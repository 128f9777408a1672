package tools

import "sync"

// builtinToolGroups maps a named group to its member tool names.
// VisibilityPolicy does not consult it, and there is no "mcp" group: MCP
// tools are tracked one by one through RegisterMCPTool.
var builtinToolGroups = map[string][]string{
	"fs":      {"read_file", "write_file", "edit_file", "glob", "grep", "list_directory"},
	"runtime": {"bash"},
}

// toolProfiles name a preset tool set by profile name, selected by the
// profile argument of NewVisibilityPolicy; Config has no profile setting.
var toolProfiles = map[string][]string{
	"read_only": {"read_file", "glob", "grep", "list_directory"},
	"full":      {"read_file", "write_file", "edit_file", "glob", "grep", "list_directory", "bash"},
}

// VisibilityPolicy filters which tools a given turn sees, independent of
// the approval gate's per-call allow/deny decision: policy controls
// whether the model is offered a tool at all, approval controls whether
// an offered call is allowed to run.
type VisibilityPolicy struct {
	mu         sync.RWMutex
	profile    string
	allow      map[string]bool
	deny       map[string]bool
	dynamicMCP map[string]bool // tool names contributed by connected MCP servers
}

// NewVisibilityPolicy builds a policy defaulting to the "full" profile.
func NewVisibilityPolicy(profile string) *VisibilityPolicy {
	if profile == "" {
		profile = "full"
	}
	return &VisibilityPolicy{
		profile:    profile,
		allow:      make(map[string]bool),
		deny:       make(map[string]bool),
		dynamicMCP: make(map[string]bool),
	}
}

// Allow adds name to the explicit allow-list, overriding the profile's
// default exclusion.
func (p *VisibilityPolicy) Allow(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allow[name] = true
}

// Deny adds name to the explicit deny-list, overriding both the profile
// and any explicit allow.
func (p *VisibilityPolicy) Deny(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deny[name] = true
}

// RegisterMCPTool marks name as contributed by a connected MCP server, so
// it passes visibility filtering without needing to appear in a static
// profile or group.
func (p *VisibilityPolicy) RegisterMCPTool(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dynamicMCP[name] = true
}

// UnregisterMCPTool removes a tool contributed by a disconnected MCP
// server.
func (p *VisibilityPolicy) UnregisterMCPTool(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.dynamicMCP, name)
}

// Visible reports whether name should be offered to the model this turn.
func (p *VisibilityPolicy) Visible(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.deny[name] {
		return false
	}
	if p.allow[name] || p.dynamicMCP[name] {
		return true
	}
	for _, member := range toolProfiles[p.profile] {
		if member == name {
			return true
		}
	}
	return false
}

// Filter returns the subset of defs currently visible under this policy.
func (p *VisibilityPolicy) Filter(defs []Definition) []Definition {
	var out []Definition
	for _, d := range defs {
		if p.Visible(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

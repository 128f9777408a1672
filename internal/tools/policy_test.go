package tools

import "testing"

func TestVisibilityPolicyReadOnlyProfile(t *testing.T) {
	p := NewVisibilityPolicy("read_only")
	if !p.Visible("read_file") {
		t.Fatal("expected read_file visible under read_only profile")
	}
	if p.Visible("bash") {
		t.Fatal("expected bash hidden under read_only profile")
	}
}

func TestVisibilityPolicyExplicitDenyOverridesProfile(t *testing.T) {
	p := NewVisibilityPolicy("full")
	p.Deny("bash")
	if p.Visible("bash") {
		t.Fatal("expected explicit deny to override the full profile")
	}
}

func TestVisibilityPolicyExplicitAllowOverridesProfile(t *testing.T) {
	p := NewVisibilityPolicy("read_only")
	p.Allow("bash")
	if !p.Visible("bash") {
		t.Fatal("expected explicit allow to override the read_only profile")
	}
}

func TestVisibilityPolicyMCPTools(t *testing.T) {
	p := NewVisibilityPolicy("read_only")
	p.RegisterMCPTool("mcp:jira:create_issue")
	if !p.Visible("mcp:jira:create_issue") {
		t.Fatal("expected registered MCP tool to be visible")
	}
	p.UnregisterMCPTool("mcp:jira:create_issue")
	if p.Visible("mcp:jira:create_issue") {
		t.Fatal("expected unregistered MCP tool to become invisible")
	}
}

func TestVisibilityPolicyFilter(t *testing.T) {
	p := NewVisibilityPolicy("read_only")
	defs := []Definition{{Name: "read_file"}, {Name: "bash"}, {Name: "grep"}}
	filtered := p.Filter(defs)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 visible defs, got %d", len(filtered))
	}
}

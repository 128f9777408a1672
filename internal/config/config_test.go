package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Model == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codi.yaml")
	content := "provider: openai\nmodel: gpt-4.1\nauto_approve:\n  - read_file\n  - list_dir\nmax_iterations: 30\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-4.1" || cfg.MaxIterations != 30 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.AutoApprove) != 2 {
		t.Fatalf("expected 2 auto_approve entries, got %v", cfg.AutoApprove)
	}
}

func TestLoadParsesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codi.json")
	content := `{"provider": "anthropic", "model": "claude-sonnet-4-5-20250929", "dangerous_patterns": ["rm -rf"]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.DangerousPatterns) != 1 || cfg.DangerousPatterns[0] != "rm -rf" {
		t.Fatalf("unexpected dangerous_patterns: %v", cfg.DangerousPatterns)
	}
}

func TestLoadRejectsEmptyProviderAfterFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codi.json")
	if err := os.WriteFile(path, []byte(`{"provider": "", "model": "x"}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a configuration error for an empty provider")
	}
}

func TestLoadRejectsOutOfRangeContextHeadroom(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codi.json")
	if err := os.WriteFile(path, []byte(`{"provider": "anthropic", "model": "x", "context_headroom": 1.5}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a configuration error for context_headroom >= 1")
	}
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".codi.json")
	if err := os.WriteFile(path, []byte(`{"provider": "anthropic", "model": "claude-sonnet-4-5-20250929"}`), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODI_PROVIDER", "openai")
	t.Setenv("CODI_MAX_ITERATIONS", "99")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("expected env override to win, got provider=%q", cfg.Provider)
	}
	if cfg.MaxIterations != 99 {
		t.Fatalf("expected CODI_MAX_ITERATIONS override, got %d", cfg.MaxIterations)
	}
}

func TestResolvePrefersExplicitPath(t *testing.T) {
	if got := Resolve("/explicit/path.yaml"); got != "/explicit/path.yaml" {
		t.Fatalf("expected explicit path to win, got %q", got)
	}
}

func TestSnapshotReturnsIndependentCopies(t *testing.T) {
	cfg := &Config{AutoApprove: []string{"read_file"}}
	snapshot, _ := cfg.Snapshot()
	snapshot[0] = "mutated"
	if cfg.AutoApprove[0] != "read_file" {
		t.Fatal("expected Snapshot to return a copy, not an alias")
	}
}

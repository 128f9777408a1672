package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordIsNoopWhenDisabled(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := NewSink(false, "sess-1")
	s.Record(ToolCall, map[string]string{"tool": "read_file"})

	if _, err := os.Stat(filepath.Join(home, ".codi", "audit")); !os.IsNotExist(err) {
		t.Fatalf("expected no audit directory to be created when disabled, stat err=%v", err)
	}
}

func TestRecordOpensLazilyAndWritesJSONL(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := NewSink(true, "sess-2")
	s.Record(ToolCall, map[string]string{"tool": "read_file"})
	s.Record(Approval, map[string]any{"approved": true})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(home, ".codi", "audit", "sess-2.jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected audit file at %s: %v", path, err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}
	if lines[0]["kind"] != string(ToolCall) {
		t.Fatalf("expected first kind %q, got %v", ToolCall, lines[0]["kind"])
	}
	if _, ok := lines[0]["ts"]; !ok {
		t.Fatal("expected a ts field on every entry")
	}
}

func TestCloseOnNeverOpenedSinkIsNoop(t *testing.T) {
	s := NewSink(true, "sess-3")
	if err := s.Close(); err != nil {
		t.Fatalf("expected Close on a never-written sink to be a no-op, got %v", err)
	}
}

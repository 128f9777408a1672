package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileToolRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("line1\nline2\nline3"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewReadFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM != "line1\nline2\nline3" {
		t.Fatalf("unexpected content: %q", res.ForLLM)
	}
}

func TestReadFileToolLineRange(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree\nfour"), 0o644)
	tool := NewReadFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt","start_line":2,"end_line":3}`))
	if res.ForLLM != "two\nthree" {
		t.Fatalf("unexpected range result: %q", res.ForLLM)
	}
}

func TestReadFileToolNotFound(t *testing.T) {
	root := t.TempDir()
	tool := NewReadFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"missing.txt"}`))
	if !res.IsError {
		t.Fatal("expected not_found error")
	}
}

func TestReadFileToolRejectsDirectory(t *testing.T) {
	root := t.TempDir()
	os.Mkdir(filepath.Join(root, "sub"), 0o755)
	tool := NewReadFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"sub"}`))
	if !res.IsError {
		t.Fatal("expected is_directory error")
	}
}

func TestWriteFileToolCreatesNestedDirs(t *testing.T) {
	root := t.TempDir()
	tool := NewWriteFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a/b/c.txt","content":"hello"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	data, err := os.ReadFile(filepath.Join(root, "a", "b", "c.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected file content: %q", data)
	}
}

func TestWriteFileToolOverwritesAtomicallyAndReportsDiff(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	os.WriteFile(path, []byte("line1\nline2\n"), 0o644)

	tool := NewWriteFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt","content":"line1\nline2 changed\n"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line1\nline2 changed\n" {
		t.Fatalf("unexpected file content: %q", data)
	}
	if res.ForUser == "" {
		t.Fatal("expected a unified diff in ForUser")
	}
	if !containsAll(res.ForUser, "--- a/a.txt", "+++ b/a.txt", "-line2", "+line2 changed") {
		t.Fatalf("diff missing expected lines: %q", res.ForUser)
	}

	// No leftover temp files from the atomic write.
	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if e.Name() != "a.txt" {
			t.Fatalf("unexpected leftover entry: %s", e.Name())
		}
	}
}

func TestWriteFileToolPreviewMatchesDiff(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("old\n"), 0o644)
	tool := NewWriteFileTool(root)
	preview := tool.Preview(json.RawMessage(`{"path":"a.txt","content":"new\n"}`))
	if !containsAll(preview, "-old", "+new") {
		t.Fatalf("preview missing expected diff lines: %q", preview)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestEditFileToolUniqueMatch(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo bar baz"), 0o644)
	tool := NewEditFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt","old_string":"bar","new_string":"qux"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	data, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	if string(data) != "foo qux baz" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestEditFileToolRejectsAmbiguousMatch(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo foo foo"), 0o644)
	tool := NewEditFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt","old_string":"foo","new_string":"bar"}`))
	if !res.IsError {
		t.Fatal("expected ambiguous_match error")
	}
}

func TestEditFileToolRejectsNoMatch(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo"), 0o644)
	tool := NewEditFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"a.txt","old_string":"nope","new_string":"bar"}`))
	if !res.IsError {
		t.Fatal("expected no_match error")
	}
}

func TestEditFileToolAssertAbsence(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("foo"), 0o644)
	tool := NewEditFileTool(root)
	zero := 0
	argsJSON, _ := json.Marshal(editFileArgs{Path: "a.txt", OldString: "nope", NewString: "x", ExpectedCount: &zero})
	res := tool.Execute(context.Background(), argsJSON)
	if res.IsError {
		t.Fatalf("expected no-op success asserting absence, got error: %s", res.ForLLM)
	}
}

func TestListDirectoryTool(t *testing.T) {
	root := t.TempDir()
	os.Mkdir(filepath.Join(root, "sub"), 0o755)
	os.WriteFile(filepath.Join(root, "file.txt"), []byte("x"), 0o644)
	tool := NewListDirectoryTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"."}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM == "" {
		t.Fatal("expected non-empty listing")
	}
}

func TestGlobToolMatchesPattern(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(root, "b.txt"), []byte("x"), 0o644)
	tool := NewGlobTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"*.go"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM != "a.go" {
		t.Fatalf("expected a.go, got %q", res.ForLLM)
	}
}

func TestGrepToolFindsMatch(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\nworld\nneedle here"), 0o644)
	tool := NewGrepTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"needle"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM == "" {
		t.Fatal("expected a hit")
	}
}

func TestGrepToolStructuredPayload(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\nworld\nneedle here"), 0o644)
	tool := NewGrepTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"needle"}`))
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	var hits []grepHit
	if err := json.Unmarshal(res.StructuredPayload, &hits); err != nil {
		t.Fatalf("structured payload did not unmarshal: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "a.txt" || hits[0].LineNumber != 3 || hits[0].Text != "needle here" {
		t.Fatalf("unexpected structured hit: %+v", hits)
	}
	if res.Truncated {
		t.Fatal("did not expect truncation under the hit cap")
	}
}

func TestGrepToolInvalidPattern(t *testing.T) {
	root := t.TempDir()
	tool := NewGrepTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"pattern":"("}`))
	if !res.IsError {
		t.Fatal("expected invalid_pattern error")
	}
}

func TestFilesystemToolsRejectPathEscape(t *testing.T) {
	root := t.TempDir()
	tool := NewReadFileTool(root)
	res := tool.Execute(context.Background(), json.RawMessage(`{"path":"../../../../etc/passwd"}`))
	if !res.IsError {
		t.Fatal("expected path_escape error")
	}
}

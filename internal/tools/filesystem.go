package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const maxReadBytes = 512 * 1024

// ReadFileTool reads a file's contents, optionally bounded to a line
// range, rejecting any path that resolves outside root.
type ReadFileTool struct{ root string }

func NewReadFileTool(root string) *ReadFileTool { return &ReadFileTool{root: root} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Category() Category  { return CategoryReadOnly }
func (t *ReadFileTool) Description() string { return "Read the contents of a file within the project." }
func (t *ReadFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "path relative to the project root"},
			"start_line": map[string]any{"type": "integer", "description": "1-indexed first line to include, optional"},
			"end_line":   map[string]any{"type": "integer", "description": "1-indexed last line to include, optional"},
		},
		"required": []string{"path"},
	}
}

type readFileArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func (t *ReadFileTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args readFileArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	resolved, err := resolvePath(args.Path, t.root)
	if err != nil {
		return ErrorResult(fmt.Sprintf("path_escape: %v", err))
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return ErrorResult(fmt.Sprintf("not_found: %s does not exist", args.Path))
	}
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	if info.IsDir() {
		return ErrorResult(fmt.Sprintf("is_directory: %s is a directory, use list_directory", args.Path))
	}
	if info.Size() > maxReadBytes && args.StartLine == 0 && args.EndLine == 0 {
		return ErrorResult(fmt.Sprintf("file_too_large: %s is %d bytes, request a line range", args.Path, info.Size()))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	content := string(data)
	if args.StartLine > 0 || args.EndLine > 0 {
		content = sliceLines(content, args.StartLine, args.EndLine)
	}

	r := NewResult(content)
	r.Duration = time.Since(start)
	return r
}

func sliceLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// WriteFileTool creates or overwrites a file with the given content.
type WriteFileTool struct{ root string }

func NewWriteFileTool(root string) *WriteFileTool { return &WriteFileTool{root: root} }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Category() Category  { return CategoryMutating }
func (t *WriteFileTool) Description() string { return "Create or overwrite a file with new content." }
func (t *WriteFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"path", "content"},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Preview renders the unified diff the approval prompt shows before the
// write runs, per the write_file contract's side-band artifact.
func (t *WriteFileTool) Preview(argsJSON json.RawMessage) string {
	var args writeFileArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return string(argsJSON)
	}
	resolved, err := resolvePath(args.Path, t.root)
	if err != nil {
		return string(argsJSON)
	}
	before := ""
	if data, err := os.ReadFile(resolved); err == nil {
		before = string(data)
	}
	diff := unifiedDiff(args.Path, before, args.Content)
	if diff == "" {
		return fmt.Sprintf("%s: no content change", args.Path)
	}
	return diff
}

func (t *WriteFileTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args writeFileArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	resolved, err := resolvePath(args.Path, t.root)
	if err != nil {
		return ErrorResult(fmt.Sprintf("path_escape: %v", err))
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	var before string
	if data, err := os.ReadFile(resolved); err == nil {
		before = string(data)
	}

	if err := atomicWriteFile(dir, resolved, []byte(args.Content), 0o644); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}

	r := NewResult(fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path))
	if diff := unifiedDiff(args.Path, before, args.Content); diff != "" {
		r.ForUser = diff
	}
	r.Duration = time.Since(start)
	return r
}

// atomicWriteFile writes data to a temp file in dir (the same filesystem
// as the final path) and renames it into place, so a crash mid-write
// never leaves target truncated or partially written.
func atomicWriteFile(dir, target string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(dir, ".codi-write-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// EditFileTool replaces an exact substring match within a file, rejecting
// ambiguous or absent matches per the edit_file contract.
type EditFileTool struct{ root string }

func NewEditFileTool(root string) *EditFileTool { return &EditFileTool{root: root} }

func (t *EditFileTool) Name() string       { return "edit_file" }
func (t *EditFileTool) Category() Category { return CategoryMutating }
func (t *EditFileTool) Description() string {
	return "Replace an exact, uniquely-matching substring within a file."
}
func (t *EditFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":           map[string]any{"type": "string"},
			"old_string":     map[string]any{"type": "string"},
			"new_string":     map[string]any{"type": "string"},
			"expected_count": map[string]any{"type": "integer", "description": "expected number of matches; 0 asserts old_string must not occur"},
		},
		"required": []string{"path", "old_string", "new_string"},
	}
}

type editFileArgs struct {
	Path          string `json:"path"`
	OldString     string `json:"old_string"`
	NewString     string `json:"new_string"`
	ExpectedCount *int   `json:"expected_count"`
}

func (t *EditFileTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args editFileArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	resolved, err := resolvePath(args.Path, t.root)
	if err != nil {
		return ErrorResult(fmt.Sprintf("path_escape: %v", err))
	}
	data, err := os.ReadFile(resolved)
	if os.IsNotExist(err) {
		return ErrorResult(fmt.Sprintf("not_found: %s does not exist", args.Path))
	}
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	content := string(data)
	count := strings.Count(content, args.OldString)

	wantZero := args.ExpectedCount != nil && *args.ExpectedCount == 0
	if wantZero {
		if count != 0 {
			return ErrorResult(fmt.Sprintf("ambiguous_match: expected old_string to be absent but found %d occurrence(s)", count))
		}
		r := NewResult(fmt.Sprintf("no-op: %s already absent from %s", args.OldString, args.Path))
		r.Duration = time.Since(start)
		return r
	}
	if count == 0 {
		return ErrorResult("no_match: old_string was not found in the file")
	}
	if count > 1 && (args.ExpectedCount == nil || *args.ExpectedCount != count) {
		return ErrorResult(fmt.Sprintf("ambiguous_match: old_string occurs %d times, expected a unique match", count))
	}

	updated := strings.Replace(content, args.OldString, args.NewString, count)
	if err := os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	r := NewResult(fmt.Sprintf("replaced %d occurrence(s) in %s", count, args.Path))
	r.Duration = time.Since(start)
	return r
}

// ListDirectoryTool lists the immediate children of a directory.
type ListDirectoryTool struct{ root string }

func NewListDirectoryTool(root string) *ListDirectoryTool { return &ListDirectoryTool{root: root} }

func (t *ListDirectoryTool) Name() string        { return "list_directory" }
func (t *ListDirectoryTool) Category() Category  { return CategoryReadOnly }
func (t *ListDirectoryTool) Description() string { return "List the entries of a directory." }
func (t *ListDirectoryTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	resolved, err := resolvePath(args.Path, t.root)
	if err != nil {
		return ErrorResult(fmt.Sprintf("path_escape: %v", err))
	}
	entries, err := os.ReadDir(resolved)
	if os.IsNotExist(err) {
		return ErrorResult(fmt.Sprintf("not_found: %s does not exist", args.Path))
	}
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name())
		}
	}
	r := NewResult(b.String())
	r.Duration = time.Since(start)
	return r
}

// GlobTool matches files by shell glob pattern under root.
type GlobTool struct{ root string }

func NewGlobTool(root string) *GlobTool { return &GlobTool{root: root} }

func (t *GlobTool) Name() string        { return "glob" }
func (t *GlobTool) Category() Category  { return CategoryReadOnly }
func (t *GlobTool) Description() string { return "Find files matching a glob pattern." }
func (t *GlobTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"pattern": map[string]any{"type": "string"}},
		"required":   []string{"pattern"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}

	var matches []string
	err := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(t.root, path)
		if err != nil {
			return nil
		}
		if ok, _ := filepath.Match(args.Pattern, rel); ok {
			matches = append(matches, rel)
		} else if ok, _ := filepath.Match(args.Pattern, filepath.Base(rel)); ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return ErrorResult(err.Error()).WithError(err)
	}
	sort.Strings(matches)
	r := NewResult(strings.Join(matches, "\n"))
	r.Duration = time.Since(start)
	return r
}

// grepHit is one matching line, the structured record behind both the
// flattened ForLLM text and the StructuredPayload side-channel.
type grepHit struct {
	Path       string `json:"path"`
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// GrepTool searches file contents by regular expression across the project.
type GrepTool struct{ root string }

func NewGrepTool(root string) *GrepTool { return &GrepTool{root: root} }

func (t *GrepTool) Name() string        { return "grep" }
func (t *GrepTool) Category() Category  { return CategoryReadOnly }
func (t *GrepTool) Description() string { return "Search file contents for a regular expression." }
func (t *GrepTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"glob":    map[string]any{"type": "string", "description": "optional glob to restrict which files are searched"},
		},
		"required": []string{"pattern"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, argsJSON json.RawMessage) *Result {
	start := time.Now()
	var args struct {
		Pattern string `json:"pattern"`
		Glob    string `json:"glob"`
	}
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return ErrorResult(fmt.Sprintf("invalid_pattern: %v", err))
	}

	var hits []grepHit
	truncated := false
	walkErr := filepath.WalkDir(t.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			if d != nil && d.IsDir() && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(t.root, path)
		if args.Glob != "" {
			if ok, _ := filepath.Match(args.Glob, filepath.Base(rel)); !ok {
				return nil
			}
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				hits = append(hits, grepHit{Path: rel, LineNumber: lineNo, Text: scanner.Text()})
				if len(hits) >= 500 {
					truncated = true
					return fs.SkipAll
				}
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != fs.SkipAll {
		return ErrorResult(walkErr.Error()).WithError(walkErr)
	}

	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = fmt.Sprintf("%s:%d:%s", h.Path, h.LineNumber, h.Text)
	}
	r := NewResult(strings.Join(lines, "\n"))
	if payload, err := json.Marshal(hits); err == nil {
		r.StructuredPayload = payload
	}
	r.Truncated = truncated
	r.Duration = time.Since(start)
	return r
}

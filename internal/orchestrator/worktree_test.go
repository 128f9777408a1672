package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestCreateWorktreeAddsIsolatedCheckout(t *testing.T) {
	repo := initTestRepo(t)
	base := filepath.Join(repo, "..", "worktrees")

	wt, err := CreateWorktree(context.Background(), repo, base)
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wt.Path, "README.md")); err != nil {
		t.Fatalf("expected README.md in worktree: %v", err)
	}

	if err := wt.Remove(context.Background(), repo); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(wt.Path); !os.IsNotExist(err) {
		t.Fatalf("expected worktree path removed, stat err = %v", err)
	}
}

func TestWorktreeDiffReportsNoChangesOnFreshCheckout(t *testing.T) {
	repo := initTestRepo(t)
	base := filepath.Join(repo, "..", "worktrees")

	wt, err := CreateWorktree(context.Background(), repo, base)
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	defer wt.Remove(context.Background(), repo)

	diff, err := wt.Diff(context.Background(), "main")
	if err != nil {
		// older git defaults to "master"; fall back before failing the test
		diff, err = wt.Diff(context.Background(), "master")
		if err != nil {
			t.Fatalf("Diff: %v", err)
		}
	}
	if diff != "" {
		t.Fatalf("expected empty diff on fresh checkout, got %q", diff)
	}
}

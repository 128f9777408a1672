package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Worktree is one isolated git working tree created for a single worker's
// task, so concurrent workers never touch the same files the commander's
// own checkout has open.
type Worktree struct {
	Path   string
	Branch string
}

// CreateWorktree adds a new worktree under baseDir, checked out from the
// repository at repoDir's current branch. The branch name embeds a random
// suffix so concurrent workers never collide on worktree-add.
func CreateWorktree(ctx context.Context, repoDir, baseDir string) (*Worktree, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("orchestrator: create worktree base dir: %w", err)
	}

	currentBranch, err := runGit(ctx, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: determine current branch: %w", err)
	}

	id := uuid.New().String()[:8]
	path := filepath.Join(baseDir, "worker-"+id)
	branch := fmt.Sprintf("codi-worker-%s", id)

	if _, err := runGit(ctx, repoDir, "worktree", "add", "-b", branch, path, currentBranch); err != nil {
		return nil, fmt.Errorf("orchestrator: git worktree add: %w", err)
	}

	return &Worktree{Path: path, Branch: branch}, nil
}

// Remove unconditionally tears down the worktree and its branch. Errors
// are best-effort: a worker's worktree removal must never block the
// commander from reporting the worker's actual task outcome.
func (w *Worktree) Remove(ctx context.Context, repoDir string) error {
	if _, err := runGit(ctx, repoDir, "worktree", "remove", "--force", w.Path); err != nil {
		return fmt.Errorf("orchestrator: git worktree remove: %w", err)
	}
	_, _ = runGit(ctx, repoDir, "branch", "-D", w.Branch)
	return nil
}

// Diff returns the worktree's uncommitted and committed changes against
// its base branch, used to build a TaskComplete diff summary.
func (w *Worktree) Diff(ctx context.Context, baseBranch string) (string, error) {
	return runGit(ctx, w.Path, "diff", baseBranch, "--stat")
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %v: %w: %s", args, err, stderr.String())
	}
	return string(bytes.TrimSpace(stdout.Bytes())), nil
}

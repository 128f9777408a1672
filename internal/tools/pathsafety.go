package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// pathEscapeError reports that a resolved path fell outside the project
// root, the specific failure kind standard tools must surface for any
// attempt to read or write outside the sandboxed workspace.
type pathEscapeError struct {
	path string
	root string
}

func (e *pathEscapeError) Error() string {
	return fmt.Sprintf("path %q escapes project root %q", e.path, e.root)
}

// resolvePath canonicalizes path relative to root and verifies it remains
// contained within root after symlinks are resolved, including symlinks
// on ancestor directories that do not yet exist (broken-target writes).
func resolvePath(path, root string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}

	resolved, err := resolveThroughExistingAncestors(path)
	if err != nil {
		return "", err
	}

	if !isPathInside(resolved, resolvedRoot) {
		return "", &pathEscapeError{path: path, root: root}
	}
	if err := checkHardlink(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

// resolveThroughExistingAncestors resolves symlinks on the longest existing
// prefix of target and rejoins the remaining (not-yet-created) suffix
// unresolved, so that write_file against a new file in a symlinked
// directory still gets the symlink target canonicalized.
func resolveThroughExistingAncestors(target string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(target)
	base := filepath.Base(target)
	if dir == target {
		return target, nil
	}
	resolvedDir, err := resolveThroughExistingAncestors(dir)
	if err != nil {
		return "", err
	}
	if hasMutableSymlinkParent(resolvedDir) {
		return "", fmt.Errorf("refusing to write through mutable symlinked directory %q", resolvedDir)
	}
	return filepath.Join(resolvedDir, base), nil
}

// isPathInside reports whether child is contained within parent after both
// have been cleaned, treating equal paths as contained.
func isPathInside(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hasMutableSymlinkParent reports whether any other user could swap path
// for a symlink before it is used (a TOCTOU check on the immediate parent
// directory's write permission bit), returning false where the check does
// not apply (non-POSIX platforms).
func hasMutableSymlinkParent(path string) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	return syscall.Access(path, 0x2) == nil && isWorldOrGroupWritable(path)
}

func isWorldOrGroupWritable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := info.Mode()
	return mode&0022 != 0 && mode&os.ModeSticky == 0
}

// checkHardlink rejects any operation on a file with more than one hard
// link, which would otherwise let a write silently modify a file outside
// the project root. Directories are not checked.
func checkHardlink(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if stat.Nlink > 1 {
		return fmt.Errorf("refusing to operate on hardlinked file %q (nlink=%d)", path, stat.Nlink)
	}
	return nil
}

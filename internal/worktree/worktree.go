package worktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Manager handles git worktrees of one repository. Worktrees live as siblings
// under <repo-parent>/<repo-name>-worktrees/, one directory per worktree.
type Manager struct {
	RepoRoot string // main repository root
	BaseDir  string // directory holding the managed worktrees
}

// Discover locates the main repository from anywhere inside it, including
// from within one of its worktrees.
func Discover(dir string) (*Manager, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %s", dir)
	}

	// The main worktree is always the first entry.
	var root string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			root = strings.TrimPrefix(line, "worktree ")
			break
		}
	}
	if root == "" {
		return nil, fmt.Errorf("failed to locate repository root from %s", dir)
	}

	return &Manager{
		RepoRoot: root,
		BaseDir:  filepath.Join(filepath.Dir(root), filepath.Base(root)+"-worktrees"),
	}, nil
}

// Alias is the registry key for this repository.
func (m *Manager) Alias() string {
	return filepath.Base(m.RepoRoot)
}

// Path returns the full path for a named worktree.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.BaseDir, name)
}

// Add creates a worktree with a branch of the same name from baseRef.
func (m *Manager) Add(name, baseRef string) error {
	if err := os.MkdirAll(m.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create worktree directory: %w", err)
	}

	cmd := exec.Command("git", "worktree", "add", "-b", name, m.Path(name), baseRef)
	cmd.Dir = m.RepoRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to create worktree: %w", err)
	}

	return nil
}

// Remove removes a worktree.
func (m *Manager) Remove(name string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, m.Path(name))

	cmd := exec.Command("git", args...)
	cmd.Dir = m.RepoRoot
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove worktree: %w", err)
	}

	return nil
}

// DeleteBranch deletes a branch, best effort. The branch may be gone already
// or checked out elsewhere; either way the worktree itself is removed.
func (m *Manager) DeleteBranch(branch string) error {
	cmd := exec.Command("git", "branch", "-D", branch)
	cmd.Dir = m.RepoRoot
	return cmd.Run()
}

// List returns the managed worktrees as name -> branch. Worktrees outside the
// managed base directory (including the main checkout) are excluded.
func (m *Manager) List() (map[string]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = m.RepoRoot
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	return parseWorktreeList(string(output), m.BaseDir), nil
}

// parseWorktreeList extracts managed worktrees from porcelain output. Each
// entry is a "worktree <path>" line followed by attribute lines, "branch"
// among them for non-detached checkouts.
func parseWorktreeList(output, baseDir string) map[string]string {
	worktrees := make(map[string]string)
	prefix := baseDir + string(filepath.Separator)

	var current string
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			path := strings.TrimPrefix(line, "worktree ")
			if strings.HasPrefix(path, prefix) {
				current = filepath.Base(path)
				worktrees[current] = "detached"
			} else {
				current = ""
			}
		case strings.HasPrefix(line, "branch ") && current != "":
			ref := strings.TrimPrefix(line, "branch ")
			worktrees[current] = strings.TrimPrefix(ref, "refs/heads/")
		case line == "":
			current = ""
		}
	}

	return worktrees
}

// Package env resolves which worktree's environment a command targets and
// assembles the compose stack for it.
package env

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattbr/branchbox/internal/compose"
	"github.com/mattbr/branchbox/internal/config"
)

// ErrNotConfigured means the worktree has no usable base+overlay file pair.
// It is a user-facing "nothing to do here" outcome, not a failure.
var ErrNotConfigured = errors.New("environment not configured")

// Environment is one worktree's resolved environment.
type Environment struct {
	RepoAlias    string
	Worktree     string
	WorktreeRoot string
	Config       *config.Config
}

// ActiveWorktree resolves the worktree containing cwd. A worktree is active
// when cwd equals or descends from its root. Managed roots are siblings under
// worktreeBase, so at most one can match; if that is ever violated the first
// match in directory order wins.
func ActiveWorktree(cwd, worktreeBase string) (name, root string, ok bool) {
	entries, err := os.ReadDir(worktreeBase)
	if err != nil {
		return "", "", false
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(worktreeBase, entry.Name())
		if cwd == candidate || strings.HasPrefix(cwd, candidate+string(filepath.Separator)) {
			return entry.Name(), candidate, true
		}
	}

	return "", "", false
}

// ProjectName is the compose project name scoping this worktree's containers.
func (e *Environment) ProjectName() string {
	return fmt.Sprintf("%s-%s", e.RepoAlias, e.Worktree)
}

// BaseFile returns the base compose file path for this worktree.
func (e *Environment) BaseFile() string {
	return filepath.Join(e.WorktreeRoot, e.Config.ComposeDir, e.Config.ComposeFile)
}

// OverlayFile returns the overlay file path for this worktree.
func (e *Environment) OverlayFile() string {
	return compose.OverlayPath(e.WorktreeRoot, e.Config.ComposeDir, e.Worktree)
}

// DocumentPair returns the base and overlay files, requiring both to exist.
// A missing file yields ErrNotConfigured.
func (e *Environment) DocumentPair() (base, overlay string, err error) {
	base = e.BaseFile()
	overlay = e.OverlayFile()

	if _, err := os.Stat(base); err != nil {
		return "", "", fmt.Errorf("%w: base compose file %s missing", ErrNotConfigured, base)
	}
	if _, err := os.Stat(overlay); err != nil {
		return "", "", fmt.Errorf("%w: overlay %s missing (run branchbox new, or re-provision)", ErrNotConfigured, overlay)
	}

	return base, overlay, nil
}

// Stack assembles the compose stack for this worktree's document pair.
func (e *Environment) Stack() (*compose.Stack, error) {
	base, overlay, err := e.DocumentPair()
	if err != nil {
		return nil, err
	}

	return &compose.Stack{
		Project: e.ProjectName(),
		Dir:     filepath.Join(e.WorktreeRoot, e.Config.ComposeDir),
		Files:   []string{base, overlay},
	}, nil
}

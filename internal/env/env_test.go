package env

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattbr/branchbox/internal/config"
)

func TestActiveWorktree(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"alpha", "beta"} {
		if err := os.MkdirAll(filepath.Join(base, name, "src"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		cwd    string
		want   string
		wantOK bool
	}{
		{"worktree root", filepath.Join(base, "beta"), "beta", true},
		{"nested directory", filepath.Join(base, "beta", "src"), "beta", true},
		{"sibling worktree", filepath.Join(base, "alpha"), "alpha", true},
		{"outside the base", filepath.Dir(base), "", false},
		{"name prefix is not containment", filepath.Join(base, "betamax"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, root, ok := ActiveWorktree(tt.cwd, base)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if name != tt.want {
				t.Errorf("name = %q, want %q", name, tt.want)
			}
			if ok && root != filepath.Join(base, tt.want) {
				t.Errorf("root = %q", root)
			}
		})
	}
}

func TestActiveWorktreeMissingBase(t *testing.T) {
	_, _, ok := ActiveWorktree("/anywhere", filepath.Join(t.TempDir(), "absent"))
	if ok {
		t.Error("a missing worktree base should resolve to no active worktree")
	}
}

func testEnvironment(t *testing.T) *Environment {
	t.Helper()
	root := t.TempDir()
	return &Environment{
		RepoAlias:    "acme",
		Worktree:     "foo",
		WorktreeRoot: root,
		Config: &config.Config{
			ComposeDir:  ".",
			ComposeFile: "docker-compose.yml",
		},
	}
}

func TestDocumentPair(t *testing.T) {
	e := testEnvironment(t)

	base := filepath.Join(e.WorktreeRoot, "docker-compose.yml")
	overlay := filepath.Join(e.WorktreeRoot, "docker-compose.foo.yml")

	// Neither file exists yet.
	if _, _, err := e.DocumentPair(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}

	if err := os.WriteFile(base, []byte("services: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.DocumentPair(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error with missing overlay = %v, want ErrNotConfigured", err)
	}

	if err := os.WriteFile(overlay, []byte("services: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	gotBase, gotOverlay, err := e.DocumentPair()
	if err != nil {
		t.Fatalf("DocumentPair() error = %v", err)
	}
	if gotBase != base || gotOverlay != overlay {
		t.Errorf("DocumentPair() = %q, %q", gotBase, gotOverlay)
	}
}

func TestProjectName(t *testing.T) {
	e := testEnvironment(t)
	if got := e.ProjectName(); got != "acme-foo" {
		t.Errorf("ProjectName() = %q, want acme-foo", got)
	}
}

func TestStack(t *testing.T) {
	e := testEnvironment(t)

	for _, f := range []string{"docker-compose.yml", "docker-compose.foo.yml"} {
		if err := os.WriteFile(filepath.Join(e.WorktreeRoot, f), []byte("services: {}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	stack, err := e.Stack()
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}
	if stack.Project != "acme-foo" {
		t.Errorf("Project = %q", stack.Project)
	}
	if len(stack.Files) != 2 {
		t.Fatalf("Files = %v, want base and overlay", stack.Files)
	}
	if filepath.Base(stack.Files[0]) != "docker-compose.yml" || filepath.Base(stack.Files[1]) != "docker-compose.foo.yml" {
		t.Errorf("Files = %v, want base first then overlay", stack.Files)
	}
}

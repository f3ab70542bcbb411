package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the setup configuration file looked up in the repository
// root and, as a fallback, in the user's home directory.
const ConfigFileName = ".branchbox.json"

// ServiceSpec describes how one compose service is parameterized per worktree.
type ServiceSpec struct {
	// Port is the container-internal port the service listens on. Zero
	// means the service exposes no port and gets no port mappings.
	Port int `json:"port,omitempty"`

	// ExtraPorts are additional host-visible entry points. Each one maps
	// (extra+offset) to the same internal Port.
	ExtraPorts []int `json:"extra_ports,omitempty"`

	// Environment entries are attached verbatim to the overlay service.
	Environment map[string]string `json:"environment,omitempty"`

	// Volumes are literal mounts always included in the overlay, e.g.
	// source-tree binds for hot reload.
	Volumes []string `json:"volumes,omitempty"`

	// IsolateData renames the service's named volumes per worktree so
	// data is not shared between worktrees.
	IsolateData bool `json:"isolate_data,omitempty"`

	// SkipOverride excludes the service from the overlay entirely.
	SkipOverride bool `json:"skip_override,omitempty"`
}

// SetupStep is one shell command run after a worktree is created.
type SetupStep struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

// Config represents the branchbox setup configuration
type Config struct {
	// BaseBranch is the default ref new worktrees are created from.
	BaseBranch string `json:"base_branch,omitempty"`

	// ComposeDir is the directory inside the worktree holding the base
	// compose file, relative to the worktree root.
	ComposeDir string `json:"compose_dir,omitempty"`

	// ComposeFile is the base compose file name inside ComposeDir.
	ComposeFile string `json:"compose_file,omitempty"`

	Services   map[string]ServiceSpec `json:"services,omitempty"`
	SetupSteps []SetupStep            `json:"setup_steps,omitempty"`
}

// Load reads the setup configuration for a repository. The repository's own
// file wins; a file in the home directory is the fallback. A missing file is
// not an error: worktree management works without any environment config.
func Load(repoRoot string) (*Config, error) {
	cfg := &Config{
		// Set defaults
		BaseBranch:  "origin/main",
		ComposeDir:  ".",
		ComposeFile: "docker-compose.yml",
	}

	path := filepath.Join(repoRoot, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ConfigFileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values the rest of the tool
// relies on.
func (c *Config) Validate() error {
	var problems []string

	if strings.HasPrefix(c.ComposeDir, "/") {
		problems = append(problems, "compose_dir must be relative to the worktree root")
	}

	for name, svc := range c.Services {
		if svc.Port < 0 || svc.Port > 65535 {
			problems = append(problems, fmt.Sprintf("service %q: port %d out of range", name, svc.Port))
		}
		for _, p := range svc.ExtraPorts {
			if p <= 0 || p > 65535 {
				problems = append(problems, fmt.Sprintf("service %q: extra port %d out of range", name, p))
			}
		}
		if len(svc.ExtraPorts) > 0 && svc.Port == 0 {
			problems = append(problems, fmt.Sprintf("service %q: extra_ports require a port", name))
		}
	}

	for i, step := range c.SetupSteps {
		if step.Command == "" {
			problems = append(problems, fmt.Sprintf("setup step %d (%s): empty command", i+1, step.Name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return nil
}

package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattbr/branchbox/internal/config"
	"gopkg.in/yaml.v3"
)

// Overlay is the generated per-worktree compose file merged on top of the
// base definition. It is regenerated wholesale on each synthesis.
type Overlay struct {
	Name     string                     `yaml:"name"`
	Services map[string]*OverlayService `yaml:"services"`
	Volumes  map[string]*struct{}       `yaml:"volumes,omitempty"`
}

// OverlayService is one service entry of the overlay.
type OverlayService struct {
	ContainerName string            `yaml:"container_name"`
	Ports         []string          `yaml:"ports,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
}

// Synthesize builds the overlay for one worktree from the service specs and
// the base definition's volume bindings. It returns the overlay together with
// the resolved external port per service.
//
// Marshaling the result is deterministic: identical inputs produce
// byte-identical documents (yaml emits map keys in sorted order).
func Synthesize(project, worktree string, offset int, specs map[string]config.ServiceSpec, baseVolumes map[string][]string) (*Overlay, map[string]int) {
	overlay := &Overlay{
		Name:     project,
		Services: make(map[string]*OverlayService),
	}
	portMap := make(map[string]int)

	for name, svc := range specs {
		if svc.SkipOverride {
			continue
		}

		entry := &OverlayService{
			ContainerName: fmt.Sprintf("%s-%s", name, worktree),
		}

		if svc.Port > 0 {
			external := svc.Port + offset
			portMap[name] = external
			entry.Ports = append(entry.Ports, fmt.Sprintf("%d:%d", external, svc.Port))

			// Extra ports are secondary host entry points to the
			// same internal listener.
			for _, extra := range svc.ExtraPorts {
				entry.Ports = append(entry.Ports, fmt.Sprintf("%d:%d", extra+offset, svc.Port))
			}
		}

		if len(svc.Environment) > 0 {
			entry.Environment = svc.Environment
		}

		// Literal mounts first, then the base definition's bindings:
		// renamed per worktree when the service isolates its data,
		// verbatim when it shares storage with the base.
		entry.Volumes = append(entry.Volumes, svc.Volumes...)
		for _, binding := range baseVolumes[name] {
			if !svc.IsolateData {
				entry.Volumes = append(entry.Volumes, binding)
				continue
			}

			source, rest, ok := strings.Cut(binding, ":")
			if !ok || !isNamedVolume(source) {
				// Bind mounts keep their host path; renaming
				// only applies to named volumes.
				entry.Volumes = append(entry.Volumes, binding)
				continue
			}

			renamed := fmt.Sprintf("%s-%s", source, worktree)
			entry.Volumes = append(entry.Volumes, renamed+":"+rest)
			if overlay.Volumes == nil {
				overlay.Volumes = make(map[string]*struct{})
			}
			// Empty declaration: compose creates and manages it.
			overlay.Volumes[renamed] = nil
		}

		overlay.Services[name] = entry
	}

	return overlay, portMap
}

// isNamedVolume reports whether a binding source refers to a named volume
// rather than a host path.
func isNamedVolume(source string) bool {
	return source != "" && !strings.HasPrefix(source, ".") && !strings.HasPrefix(source, "/")
}

// OverlayPath returns the deterministic overlay file location for a worktree,
// derived from its name so lifecycle commands can rediscover it.
func OverlayPath(worktreeRoot, composeDir, worktree string) string {
	return filepath.Join(worktreeRoot, composeDir, fmt.Sprintf("docker-compose.%s.yml", worktree))
}

// WriteOverlay marshals the overlay to path, replacing any previous version.
func WriteOverlay(path string, overlay *Overlay) error {
	data, err := yaml.Marshal(overlay)
	if err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}

	return nil
}

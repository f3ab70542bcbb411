package compose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// baseDocument is the subset of the base compose file branchbox reads: the
// per-service volume bindings that isolation renaming operates on.
type baseDocument struct {
	Services map[string]struct {
		Volumes []string `yaml:"volumes"`
	} `yaml:"services"`
}

// BaseVolumes parses the volume bindings declared per service in the base
// compose file. The base document is never modified here; it is read-only
// input to synthesis.
func BaseVolumes(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base compose file %s: %w", path, err)
	}

	var doc baseDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed base compose file %s: %w", path, err)
	}

	volumes := make(map[string][]string, len(doc.Services))
	for name, svc := range doc.Services {
		if len(svc.Volumes) > 0 {
			volumes[name] = svc.Volumes
		}
	}

	return volumes, nil
}

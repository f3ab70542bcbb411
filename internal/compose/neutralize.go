package compose

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattbr/branchbox/internal/config"
)

// NeutralizeBasePorts comments out the ports: block of every listed service in
// the base compose file, so merging base and overlay does not union both port
// lists. The blocks are disabled rather than removed, and every other line is
// preserved byte-for-byte, so the edit is easy to review and revert.
//
// The transform is line-oriented and indentation-scoped on purpose: a
// structural yaml round-trip would reformat the whole document and lose
// comments.
func NeutralizeBasePorts(path string, services map[string]config.ServiceSpec) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := strings.Split(string(data), "\n")

	inServices := false  // inside the top-level services: block
	serviceIndent := -1  // indentation of service name keys
	propertyIndent := -1 // indentation of the current service's properties
	inTarget := false    // current service is one we manage
	portsIndent := -1    // >= 0 while disabling a ports: block

	changed := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Blank lines never terminate a block.
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))
		commented := strings.HasPrefix(trimmed, "#")

		// Finish a ports: block when indentation returns to its level.
		if portsIndent >= 0 {
			if indent > portsIndent {
				if !commented {
					lines[i] = disableLine(line, indent)
					changed = true
				}
				continue
			}
			portsIndent = -1
		}

		if commented {
			continue
		}

		key, isKey := lineKey(trimmed)

		if indent == 0 {
			inServices = isKey && key == "services"
			serviceIndent = -1
			propertyIndent = -1
			inTarget = false
			continue
		}

		if !inServices {
			continue
		}

		// The first indented key under services: fixes the service
		// nesting level for the whole document.
		if serviceIndent < 0 {
			serviceIndent = indent
		}

		if indent == serviceIndent {
			_, ok := services[key]
			inTarget = isKey && ok
			propertyIndent = -1
			continue
		}

		if indent < serviceIndent {
			inTarget = false
			continue
		}

		if !inTarget {
			continue
		}

		if propertyIndent < 0 {
			propertyIndent = indent
		}

		if indent == propertyIndent && isKey && key == "ports" {
			lines[i] = disableLine(line, indent)
			portsIndent = indent
			changed = true
		}
	}

	if !changed {
		return nil
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// disableLine comments a line out while keeping its indentation, so the
// original indentation structure stays readable and re-enabling is a matter
// of deleting the marker.
func disableLine(line string, indent int) string {
	return line[:indent] + "# " + line[indent:]
}

// lineKey extracts a mapping key from a trimmed line, tolerating a trailing
// value or comment. Returns ok=false for list items and plain scalars.
func lineKey(trimmed string) (string, bool) {
	if strings.HasPrefix(trimmed, "-") {
		return "", false
	}
	key, _, found := strings.Cut(trimmed, ":")
	if !found {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "\"' {}[]") {
		return "", false
	}
	return key, true
}

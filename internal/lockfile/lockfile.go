// Package lockfile serializes the provision cycle across processes. The
// registry alone cannot do this: between reading the used offsets and
// committing a new one, a second invocation could observe the same snapshot
// and pick the same offset.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Acquire takes the machine-wide provision lock, blocking until it is held.
// Callers must Unlock the returned lock when their read-modify-write cycle
// against the registry is done.
func Acquire() (*flock.Flock, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(home, ".branchbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .branchbox directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, "provision.lock"))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire provision lock: %w", err)
	}

	return fl, nil
}

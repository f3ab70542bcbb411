package compose

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Stack drives docker compose against one worktree's base+overlay file pair.
// Every operation is a single invocation of the external tool; failures carry
// the captured stderr and are never retried.
type Stack struct {
	Project string   // compose project name, scopes containers and networks
	Dir     string   // working directory for the invocation
	Files   []string // base file first, overlay second
}

// Up starts the stack, or a subset of its services.
func (s *Stack) Up(services []string, build bool) error {
	args := []string{"up", "-d"}
	if build {
		args = append(args, "--build")
	}
	args = append(args, services...)

	fmt.Println("🚀 Starting containers...")
	return s.run(args...)
}

// Stop stops a subset of services, or with no subset tears the whole stack
// down. Volume removal is destructive and only happens when asked for.
func (s *Stack) Stop(services []string, removeVolumes bool) error {
	fmt.Println("🛑 Stopping containers...")

	if len(services) > 0 {
		return s.run(append([]string{"stop"}, services...)...)
	}

	args := []string{"down"}
	if removeVolumes {
		args = append(args, "--volumes")
		fmt.Println("   Removing volumes...")
	}
	return s.run(args...)
}

// Restart restarts the stack, or a subset of its services.
func (s *Stack) Restart(services []string) error {
	fmt.Println("🔄 Restarting containers...")
	return s.run(append([]string{"restart"}, services...)...)
}

// Status prints the container status table.
func (s *Stack) Status() error {
	return s.run("ps")
}

// Logs streams logs, optionally for one service, following and tailing on
// request. tail <= 0 means the tool's default.
func (s *Stack) Logs(service string, follow bool, tail int) error {
	args := []string{"logs"}
	if follow {
		args = append(args, "--follow")
	}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	if service != "" {
		args = append(args, service)
	}
	return s.run(args...)
}

// run invokes docker compose with the project and file pair applied. Output
// streams through; stderr is additionally captured for the error message.
func (s *Stack) run(args ...string) error {
	full := []string{"compose", "-p", s.Project}
	for _, f := range s.Files {
		full = append(full, "-f", f)
	}
	full = append(full, args...)

	var stderr bytes.Buffer
	cmd := exec.Command("docker", full...)
	cmd.Dir = s.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("docker compose %s failed: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("docker compose %s failed: %w", args[0], err)
	}

	return nil
}

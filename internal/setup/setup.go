package setup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattbr/branchbox/internal/config"
)

// Run executes the setup steps inside a freshly created worktree, in order.
// A failing step is reported and the remaining steps still run; setup is
// convenience, not provisioning, and must never leave a worktree half-made.
func Run(worktreePath string, steps []config.SetupStep) {
	blue := color.New(color.FgBlue).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	for _, step := range steps {
		name := step.Name
		if name == "" {
			name = step.Command
		}

		fmt.Printf("%s %s\n", blue("==>"), bold(name))

		dir := worktreePath
		if step.Cwd != "" {
			dir = filepath.Join(worktreePath, step.Cwd)
			if _, err := os.Stat(dir); err != nil {
				fmt.Printf("%s skipping %s (path not found: %s)\n", yellow("⚠"), name, step.Cwd)
				continue
			}
		}

		cmd := exec.Command("bash", "-c", step.Command)
		cmd.Dir = dir
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			fmt.Printf("%s setup step failed: %s - %v\n", yellow("⚠"), name, err)
			fmt.Println(yellow("Continuing with remaining steps..."))
			continue
		}

		fmt.Printf("%s %s complete\n", green("✓"), name)
	}
}

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattbr/branchbox/internal/config"
	"github.com/mattbr/branchbox/internal/env"
	"github.com/mattbr/branchbox/internal/registry"
	"github.com/mattbr/branchbox/internal/worktree"
	"github.com/spf13/cobra"
)

// NewRmCmd creates the rm command
func NewRmCmd() *cobra.Command {
	var (
		force         bool
		removeVolumes bool
	)

	cmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a worktree and tear down its environment",
		Long: `Stops the worktree's containers, releases its port allocation, removes the
worktree and deletes its branch. Data volumes are kept unless --volumes is
given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}

			wt, err := worktree.Discover(cwd)
			if err != nil {
				return err
			}

			worktrees, err := wt.List()
			if err != nil {
				return err
			}
			branch, exists := worktrees[name]
			if !exists {
				return fmt.Errorf("worktree %q not found", name)
			}

			if !force && !confirm(fmt.Sprintf("Are you sure you want to remove worktree %q?", name)) {
				fmt.Println("Cancelled.")
				return nil
			}

			cfg, err := config.Load(wt.RepoRoot)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			teardownEnvironment(wt, cfg, name, removeVolumes)

			fmt.Printf("🗑  Removing worktree %q\n", name)
			if err := wt.Remove(name, force); err != nil {
				return err
			}

			if branch != "detached" {
				if err := wt.DeleteBranch(branch); err != nil {
					fmt.Printf("Warning: could not delete branch %q (may already be deleted)\n", branch)
				}
			}

			fmt.Printf("✅ Worktree %q removed\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Force removal without confirmation")
	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Also remove the environment's data volumes")

	return cmd
}

// teardownEnvironment stops the stack and releases the allocation. Failures
// here warn rather than abort: the worktree removal should not be blocked by
// an environment that is already gone or was never provisioned.
func teardownEnvironment(wt *worktree.Manager, cfg *config.Config, name string, removeVolumes bool) {
	e := &env.Environment{
		RepoAlias:    wt.Alias(),
		Worktree:     name,
		WorktreeRoot: wt.Path(name),
		Config:       cfg,
	}

	stack, err := e.Stack()
	switch {
	case errors.Is(err, env.ErrNotConfigured):
		// Nothing was provisioned; nothing to stop.
	case err != nil:
		fmt.Printf("Warning: %v\n", err)
	default:
		if err := stack.Stop(nil, removeVolumes); err != nil {
			fmt.Printf("Warning: failed to stop environment: %v\n", err)
		}
	}

	reg, err := registry.New()
	if err != nil {
		fmt.Printf("Warning: failed to open registry: %v\n", err)
		return
	}
	defer func() { _ = reg.Close() }()

	if err := reg.Remove(wt.Alias(), name); err != nil {
		fmt.Printf("Warning: failed to release allocation: %v\n", err)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(response), "y")
}

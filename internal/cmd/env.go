package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattbr/branchbox/internal/compose"
	"github.com/mattbr/branchbox/internal/config"
	"github.com/mattbr/branchbox/internal/env"
	"github.com/mattbr/branchbox/internal/registry"
	"github.com/mattbr/branchbox/internal/worktree"
	"github.com/spf13/cobra"
)

// NewEnvCmd creates the env command group. Every subcommand targets the
// worktree containing the current directory.
func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the current worktree's environment",
		Long: `Lifecycle commands for the containerized services of the worktree you are
currently inside. The worktree is resolved from the working directory.`,
	}

	cmd.AddCommand(newEnvUpCmd())
	cmd.AddCommand(newEnvDownCmd())
	cmd.AddCommand(newEnvRestartCmd())
	cmd.AddCommand(newEnvStatusCmd())
	cmd.AddCommand(newEnvLogsCmd())

	return cmd
}

func newEnvUpCmd() *cobra.Command {
	var build bool

	cmd := &cobra.Command{
		Use:   "up [services...]",
		Short: "Start the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(e *env.Environment, stack *compose.Stack) error {
				return stack.Up(args, build)
			})
		},
	}

	cmd.Flags().BoolVar(&build, "build", false, "Rebuild containers before starting")

	return cmd
}

func newEnvDownCmd() *cobra.Command {
	var removeVolumes bool

	cmd := &cobra.Command{
		Use:   "down [services...]",
		Short: "Stop the environment",
		Long: `Stops the named services, or with no arguments tears down the whole stack.
Data volumes are kept unless --volumes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(e *env.Environment, stack *compose.Stack) error {
				return stack.Stop(args, removeVolumes)
			})
		},
	}

	cmd.Flags().BoolVarP(&removeVolumes, "volumes", "v", false, "Remove data volumes (destructive)")

	return cmd
}

func newEnvRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart [services...]",
		Short: "Restart the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(e *env.Environment, stack *compose.Stack) error {
				return stack.Restart(args)
			})
		},
	}
}

func newEnvStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment status and allocated ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(func(e *env.Environment, stack *compose.Stack) error {
				printAllocation(e)
				return stack.Status()
			})
		},
	}
}

func newEnvLogsCmd() *cobra.Command {
	var (
		follow bool
		tail   int
	)

	cmd := &cobra.Command{
		Use:   "logs [service]",
		Short: "View environment logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := ""
			if len(args) > 0 {
				service = args[0]
			}
			return withStack(func(e *env.Environment, stack *compose.Stack) error {
				return stack.Logs(service, follow, tail)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVar(&tail, "tail", 0, "Number of trailing lines to show")

	return cmd
}

// withStack resolves the active worktree and its document pair, then runs fn.
// A worktree without a configured environment is reported as a plain message,
// not an error.
func withStack(fn func(*env.Environment, *compose.Stack) error) error {
	e, err := resolveEnvironment()
	if err != nil {
		return err
	}

	stack, err := e.Stack()
	if errors.Is(err, env.ErrNotConfigured) {
		fmt.Printf("No environment configured for worktree %q: %v\n", e.Worktree, err)
		return nil
	}
	if err != nil {
		return err
	}

	return fn(e, stack)
}

// resolveEnvironment finds the worktree containing the current directory.
func resolveEnvironment() (*env.Environment, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	wt, err := worktree.Discover(cwd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(wt.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	name, root, ok := env.ActiveWorktree(cwd, wt.BaseDir)
	if !ok {
		return nil, fmt.Errorf("not inside a managed worktree (expected a directory under %s)", wt.BaseDir)
	}

	return &env.Environment{
		RepoAlias:    wt.Alias(),
		Worktree:     name,
		WorktreeRoot: root,
		Config:       cfg,
	}, nil
}

// printAllocation shows the registry's view of this worktree's ports.
func printAllocation(e *env.Environment) {
	reg, err := registry.New()
	if err != nil {
		fmt.Printf("Warning: failed to open registry: %v\n", err)
		return
	}
	defer func() { _ = reg.Close() }()

	alloc, err := reg.Lookup(e.RepoAlias, e.Worktree)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		return
	}
	if alloc == nil {
		fmt.Println("No port allocation recorded for this worktree")
		return
	}

	fmt.Printf("Port offset: %d\n", alloc.PortOffset)
	printPorts(alloc.Ports)
	fmt.Println()
}

package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattbr/branchbox/internal/registry"
	"github.com/mattbr/branchbox/internal/worktree"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List worktrees and their environments",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if len(worktrees) == 0 {
				fmt.Println("No worktrees found")
				fmt.Printf("Worktree directory: %s\n", wt.BaseDir)
				return nil
			}

			reg, err := registry.New()
			if err != nil {
				fmt.Printf("Warning: failed to open registry: %v\n", err)
				reg = nil
			} else {
				defer func() { _ = reg.Close() }()
			}

			green := color.New(color.FgGreen).SprintFunc()
			bold := color.New(color.Bold).SprintFunc()

			fmt.Printf("%s\n", bold("Worktrees"))
			fmt.Printf("Location: %s\n\n", wt.BaseDir)

			names := make([]string, 0, len(worktrees))
			for name := range worktrees {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Printf("  %s %s\n", green("✓"), bold(name))
				fmt.Printf("    Branch: %s\n", worktrees[name])
				fmt.Printf("    Path:   %s\n", wt.Path(name))

				if reg != nil {
					alloc, err := reg.Lookup(wt.Alias(), name)
					if err != nil {
						fmt.Printf("    Env:    warning: %v\n", err)
					} else if alloc != nil {
						fmt.Printf("    Env:    offset %d, %s\n", alloc.PortOffset, formatPorts(alloc.Ports))
					}
				}

				fmt.Println()
			}

			return nil
		},
	}
}

func formatPorts(ports map[string]int) string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s:%d", name, ports[name])
	}
	if out == "" {
		return "no ports"
	}
	return out
}

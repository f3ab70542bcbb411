package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattbr/branchbox/internal/worktree"
	"github.com/spf13/cobra"
)

// NewSelectCmd creates the select command
func NewSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <name>",
		Short: "Show how to switch to a worktree",
		Args:  cobra.ExactArgs(1),
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
				fmt.Fprintf(os.Stderr, "Worktree %q not found\n\nAvailable worktrees:\n", name)
				names := make([]string, 0, len(worktrees))
				for n := range worktrees {
					names = append(names, n)
				}
				sort.Strings(names)
				for _, n := range names {
					fmt.Fprintf(os.Stderr, "  - %s\n", n)
				}
				return fmt.Errorf("worktree %q not found", name)
			}

			green := color.New(color.FgGreen).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()

			fmt.Printf("%s\n", green(fmt.Sprintf("Switching to worktree %q", name)))
			fmt.Printf("Path:   %s\n", wt.Path(name))
			fmt.Printf("Branch: %s\n", branch)
			fmt.Printf("\n%s\n", yellow("Run the following command:"))
			fmt.Printf("  cd %s\n", wt.Path(name))

			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/mattbr/branchbox/internal/cmd"
	"github.com/spf13/cobra"
)

var version = "0.2.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "branchbox",
		Short: "Per-worktree development environments",
		Long: `Branchbox manages git worktrees with isolated Docker Compose environments.
Each worktree gets its own containers, ports and data volumes, so any number
of branches of the same repository can run side by side.`,
		Version: version,
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewNewCmd())
	rootCmd.AddCommand(cmd.NewRmCmd())
	rootCmd.AddCommand(cmd.NewListCmd())
	rootCmd.AddCommand(cmd.NewSelectCmd())
	rootCmd.AddCommand(cmd.NewEnvCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

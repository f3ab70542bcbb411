package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/mattbr/branchbox/internal/compose"
	"github.com/mattbr/branchbox/internal/config"
	"github.com/mattbr/branchbox/internal/lockfile"
	"github.com/mattbr/branchbox/internal/ports"
	"github.com/mattbr/branchbox/internal/registry"
	"github.com/mattbr/branchbox/internal/setup"
	"github.com/mattbr/branchbox/internal/worktree"
	"github.com/spf13/cobra"
)

// NewNewCmd creates the new command
func NewNewCmd() *cobra.Command {
	var (
		baseRef   string
		skipSetup bool
		noEnv     bool
	)

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a worktree with its own environment",
		Long: `Creates a git worktree and branch of the given name, provisions an isolated
Docker Compose environment for it (unique ports, renamed containers and data
volumes), and runs the configured setup steps.`,
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

			cfg, err := config.Load(wt.RepoRoot)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if baseRef == "" {
				baseRef = cfg.BaseBranch
			}

			worktreePath := wt.Path(name)
			if _, err := os.Stat(worktreePath); err == nil {
				return fmt.Errorf("worktree %q already exists at %s", name, worktreePath)
			}

			fmt.Printf("🌱 Creating worktree %q from %s\n", name, baseRef)
			if err := wt.Add(name, baseRef); err != nil {
				return err
			}

			if !noEnv && len(cfg.Services) > 0 {
				if err := provisionEnvironment(wt, cfg, name); err != nil {
					return err
				}
			}

			if !skipSetup && len(cfg.SetupSteps) > 0 {
				fmt.Println("\nRunning setup steps...")
				setup.Run(worktreePath, cfg.SetupSteps)
			}

			green := color.New(color.FgGreen, color.Bold).SprintFunc()
			fmt.Printf("\n%s Worktree %q is ready!\n", green("✓"), name)
			fmt.Printf("\nLocation: %s\n", worktreePath)
			fmt.Println("\nTo start working:")
			fmt.Printf("  cd %s\n", worktreePath)

			return nil
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "", "Base ref to create the worktree from (default from config, else origin/main)")
	cmd.Flags().BoolVar(&skipSetup, "skip-setup", false, "Skip setup steps")
	cmd.Flags().BoolVar(&noEnv, "no-env", false, "Skip environment provisioning")

	return cmd
}

// provisionEnvironment allocates ports and writes the compose overlay for a
// new worktree. The ordering is deliberate: the allocation is committed to
// the registry only after the overlay exists on disk, so a record never
// points at an environment that was never synthesized.
func provisionEnvironment(wt *worktree.Manager, cfg *config.Config, name string) error {
	worktreePath := wt.Path(name)

	composeDir := filepath.Join(worktreePath, cfg.ComposeDir)
	if _, err := os.Stat(composeDir); err != nil {
		return fmt.Errorf("compose directory %s does not exist: check compose_dir in %s", composeDir, config.ConfigFileName)
	}

	baseFile := filepath.Join(composeDir, cfg.ComposeFile)
	baseVolumes, err := compose.BaseVolumes(baseFile)
	if err != nil {
		return err
	}

	// Serialize allocate->commit across concurrent invocations.
	lock, err := lockfile.Acquire()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	alias := wt.Alias()

	used, err := reg.UsedOffsets(alias)
	if err != nil {
		return err
	}

	offset, err := ports.Allocate(used, ports.BasePorts(cfg.Services))
	if errors.Is(err, ports.ErrExhausted) {
		fmt.Printf("Warning: %v, proceeding with offset %d (ports may collide)\n", err, offset)
	} else if err != nil {
		return err
	}

	project := fmt.Sprintf("%s-%s", alias, name)
	overlay, portMap := compose.Synthesize(project, name, offset, cfg.Services, baseVolumes)

	overlayPath := compose.OverlayPath(worktreePath, cfg.ComposeDir, name)
	if err := compose.WriteOverlay(overlayPath, overlay); err != nil {
		return err
	}

	if err := compose.NeutralizeBasePorts(baseFile, cfg.Services); err != nil {
		return err
	}

	if err := reg.Commit(alias, name, offset, portMap); err != nil {
		return err
	}

	fmt.Printf("📍 Allocated port offset %d\n", offset)
	printPorts(portMap)

	return nil
}

func printPorts(portMap map[string]int) {
	names := make([]string, 0, len(portMap))
	for name := range portMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("   %-12s localhost:%d\n", name, portMap[name])
	}
}

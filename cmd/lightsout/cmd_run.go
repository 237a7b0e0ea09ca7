package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/orchestrator"
	"github.com/yairfalse/lightsout/types"
)

var (
	runGroups   []string
	runDryRun   bool
	runStrategy string
)

// runCmd executes one action against every discovered resource
var runCmd = &cobra.Command{
	Use:   "run <start|stop|status>",
	Short: "Start, stop or report on managed resources",
	Long: `Discover managed resources and apply one action to them.

Start brings resources up in ascending priority, stop takes them down in
descending priority. Resources sharing a priority form a group; each group
finishes before the next one begins.`,
	Example: `  lightsout run stop                          # Stop everything in the config
  lightsout run start --group web             # Start only the web group
  lightsout run stop --dry-run                # Show what would be stopped
  lightsout run status -o json                # Current state as JSON
  lightsout run start --strategy sequential   # One resource at a time`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "stop", "status"},
	RunE:      runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runGroups, "group", "g", nil, "Only act on these groups (lights-out:group tag)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Report what would change without changing it")
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "Execution strategy: sequential, parallel, grouped-parallel (default from config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	action, err := parseRunAction(args[0])
	if err != nil {
		return err
	}
	if err := validateStrategy(runStrategy); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	shutdown, err := a.initTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdown(ctx) }()

	reporter, err := a.emitters()
	if err != nil {
		return err
	}
	defer func() { _ = reporter.Close() }()

	opts, err := a.baseOptions(ctx, reporter)
	if err != nil {
		return err
	}
	opts = append(opts,
		orchestrator.WithGroups(runGroups...),
		orchestrator.WithStrategy(runStrategy),
	)
	if cmd.Flags().Changed("dry-run") {
		opts = append(opts, orchestrator.WithDryRun(runDryRun))
	}

	result, err := orchestrator.New(a.cfg, a.discoverer(), a.handlers(), opts...).Run(ctx, action)
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), result, outputFormat); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d operations failed", result.Failed, result.Total)
	}
	return nil
}

func parseRunAction(s string) (types.Action, error) {
	action, err := types.ParseAction(s)
	if err != nil {
		return "", err
	}
	if action == types.ActionDiscover {
		return "", errors.New("use 'lightsout discover' to list resources")
	}
	return action, nil
}

func validateStrategy(s string) error {
	switch s {
	case "", config.StrategySequential, config.StrategyParallel, config.StrategyGroupedParallel:
		return nil
	default:
		return fmt.Errorf("invalid strategy %q (valid: sequential, parallel, grouped-parallel)", s)
	}
}

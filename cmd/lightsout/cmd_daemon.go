package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lightsout/internal/daemon"
	"github.com/yairfalse/lightsout/orchestrator"
	"github.com/yairfalse/lightsout/types"
)

var (
	daemonInterval    time.Duration
	daemonMetricsAddr string
)

// daemonCmd applies the configured schedules continuously
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Apply work-hours schedules continuously",
	Long: `Run lightsout as a long-lived process.

Every interval the daemon evaluates each group's schedule and runs start or
stop for the group when its desired state changes. Groups without a schedule
are left alone.

Endpoints:
- /metrics  Prometheus metrics
- /healthz  liveness and last applied action per group
- /readyz   ready once the first evaluation completed

Shuts down gracefully on SIGTERM or SIGINT.`,
	Example: `  lightsout daemon                           # Evaluate every minute
  lightsout daemon --interval 5m             # Evaluate every 5 minutes
  lightsout daemon --metrics-addr :9090      # Custom listen address
  lightsout daemon --metrics-addr ""         # No HTTP listener`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", daemon.DefaultInterval, "Schedule evaluation interval")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":2112", "Metrics and health listen address")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if len(a.cfg.Schedules) == 0 {
		return errors.New("no schedules configured; add a schedules section to run the daemon")
	}

	shutdown, err := a.initTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	reporter, err := a.emitters()
	if err != nil {
		return err
	}
	defer func() { _ = reporter.Close() }()

	opts, err := a.baseOptions(ctx, reporter)
	if err != nil {
		return err
	}

	discoverer, provider := a.discoverer(), a.handlers()
	runner := daemon.RunnerFunc(func(ctx context.Context, group string, action types.Action) (*types.OrchestrationResult, error) {
		groupOpts := append(slices.Clip(opts), orchestrator.WithGroups(group))
		return orchestrator.New(a.cfg, discoverer, provider, groupOpts...).Run(ctx, action)
	})

	d, err := daemon.NewDaemon(daemon.Config{
		Interval:    daemonInterval,
		MetricsAddr: daemonMetricsAddr,
		Schedules:   a.cfg.Schedules,
	}, runner)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	return d.Run(ctx)
}

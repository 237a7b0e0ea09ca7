package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/lightsout/telemetry"
)

// ConfigParameterEnv names the SSM parameter holding the configuration
const ConfigParameterEnv = "LIGHTS_OUT_CONFIG_PARAMETER"

var (
	version = "dev"

	configPath   string
	ssmParameter string
	logLevel     string
	outputFormat string

	rootCmd = &cobra.Command{
		Use:   "lightsout",
		Short: "Scheduled start and stop of tagged AWS resources",
		Long: `Lightsout - lights out for non-production AWS environments

Lightsout discovers resources by tag and starts or stops them in priority
order: databases come up before the services that use them and go down after.
Supports ECS services, RDS instances, EC2 instances and Auto Scaling groups.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Lightsout {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "lightsout.yaml", "Configuration file")
	flags.StringVar(&ssmParameter, "ssm-parameter", os.Getenv(ConfigParameterEnv), "Load configuration from this SSM parameter instead of a file")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	flags.StringVarP(&outputFormat, "output", "o", outputTable, "Output format: table, json")
}

func setup(cmd *cobra.Command, args []string) error {
	if err := validateOutput(outputFormat); err != nil {
		return err
	}
	if logLevel != "" {
		return telemetry.SetLevel(logLevel)
	}
	return nil
}

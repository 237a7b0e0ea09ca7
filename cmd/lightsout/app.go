package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/discovery"
	"github.com/yairfalse/lightsout/handlers"
	"github.com/yairfalse/lightsout/internal/emitter"
	"github.com/yairfalse/lightsout/orchestrator"
	"github.com/yairfalse/lightsout/policy"
	"github.com/yairfalse/lightsout/storage"
	"github.com/yairfalse/lightsout/telemetry"
)

// app holds what every command needs: the loaded configuration and AWS credentials
type app struct {
	cfg    *config.Config
	awsCfg aws.Config
}

func newApp(ctx context.Context) (*app, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfg, err := loadConfig(ctx, func() config.SSMAPI { return ssm.NewFromConfig(awsCfg) })
	if err != nil {
		return nil, err
	}

	if logLevel == "" && cfg.Settings.LogLevel != "" {
		if err := telemetry.SetLevel(cfg.Settings.LogLevel); err != nil {
			return nil, err
		}
	}

	return &app{cfg: cfg, awsCfg: awsCfg}, nil
}

// loadConfig reads the SSM parameter when one is set, the config file otherwise
func loadConfig(ctx context.Context, ssmClient func() config.SSMAPI) (*config.Config, error) {
	if ssmParameter != "" {
		cfg, err := config.NewParameterStoreLoader(ssmClient()).Load(ctx, ssmParameter)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", ssmParameter, err)
		}
		return cfg, nil
	}
	return config.LoadFile(configPath)
}

func (a *app) initTelemetry(ctx context.Context) (func(context.Context) error, error) {
	return telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "lightsout",
		ServiceVersion: version,
		Environment:    a.cfg.Environment,
	})
}

func (a *app) discoverer() *discovery.TagDiscovery {
	return discovery.New(a.cfg, discovery.NewClientFactory(a.awsCfg), discovery.WithDefaultRegion(a.awsCfg.Region))
}

func (a *app) handlers() *handlers.Factory {
	return handlers.NewFactory(handlers.NewAWSClients(a.awsCfg))
}

// guard loads the configured Rego modules. It returns nil when none are configured.
func (a *app) guard(ctx context.Context) (*policy.Guard, error) {
	if len(a.cfg.Policy.Files) == 0 {
		return nil, nil
	}
	g, err := policy.LoadFiles(ctx, a.cfg.Policy.Files, policy.WithEnvironment(a.cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	return g, nil
}

// emitters builds the report backends named in the reporting section.
// Logging and metrics are always on.
func (a *app) emitters() (*emitter.MultiEmitter, error) {
	multi := emitter.NewMultiEmitter(emitter.NewLogEmitter())

	metrics, err := emitter.NewMetricsEmitter(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics emitter: %w", err)
	}
	multi.Add(metrics)

	rep := a.cfg.Reporting
	if rep.HistoryPath != "" {
		store, err := storage.OpenHistoryStore(rep.HistoryPath)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to open run history: %w", err), multi.Close())
		}
		multi.Add(emitter.NewHistoryEmitter(store, rep.HistoryRetention))
	}
	if rep.S3Bucket != "" {
		multi.Add(emitter.NewS3Emitter(s3.NewFromConfig(a.awsCfg), rep.S3Bucket, rep.S3Prefix))
	}
	return multi, nil
}

// baseOptions are the orchestrator options shared by run and daemon
func (a *app) baseOptions(ctx context.Context, reporter orchestrator.Reporter) ([]orchestrator.Option, error) {
	opts := []orchestrator.Option{orchestrator.WithEmitter(reporter)}

	g, err := a.guard(ctx)
	if err != nil {
		return nil, err
	}
	if g != nil {
		opts = append(opts, orchestrator.WithGuard(g))
	}
	return opts, nil
}

// Package orchestrator discovers managed resources and drives their handlers
// in priority order.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/internal/emitter"
	"github.com/yairfalse/lightsout/internal/filter"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// Orchestrator coordinates discover → sort → execute → report
type Orchestrator struct {
	cfg            *config.Config
	discoverer     Discoverer
	handlers       HandlerProvider
	guard          Guard
	reporter       Reporter
	groups         []string
	filter         *filter.Filter
	strategy       string
	maxConcurrency int
	dryRun         bool

	logger   *telemetry.Logger
	tracer   trace.Tracer
	newRunID func() string
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithGuard vets every mutating action through a policy guard
func WithGuard(g Guard) Option {
	return func(o *Orchestrator) {
		o.guard = g
	}
}

// WithGroups restricts runs to resources in the named groups
func WithGroups(groups ...string) Option {
	return func(o *Orchestrator) {
		o.groups = groups
	}
}

// WithStrategy overrides settings.execution_strategy
func WithStrategy(strategy string) Option {
	return func(o *Orchestrator) {
		if strategy != "" {
			o.strategy = strategy
		}
	}
}

// WithEmitter sends every finished run to r
func WithEmitter(r Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithMaxConcurrency bounds in-flight operations; 0 is unbounded
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrency = n
	}
}

// WithDryRun reports what would change without calling start or stop
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) {
		o.dryRun = dryRun
	}
}

// WithTracer replaces the package tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// New creates an orchestrator. Strategy, concurrency and dry run default
// to the config's settings.
func New(cfg *config.Config, discoverer Discoverer, handlers HandlerProvider, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = &config.Config{}
	}

	o := &Orchestrator{
		cfg:            cfg,
		discoverer:     discoverer,
		handlers:       handlers,
		strategy:       cfg.Settings.ExecutionStrategy,
		maxConcurrency: cfg.Settings.MaxConcurrency,
		dryRun:         cfg.Settings.DryRun,
		logger:         telemetry.NewLogger("orchestrator"),
		tracer:         telemetry.Tracer,
		newRunID:       uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.strategy == "" {
		o.strategy = config.StrategyGroupedParallel
	}
	o.filter = filter.New(o.groups, nil, nil)
	return o
}

// Strategy returns the execution strategy in effect
func (o *Orchestrator) Strategy() string {
	return o.strategy
}

// DiscoverResources returns the managed resources in discovery order,
// narrowed to the configured groups.
func (o *Orchestrator) DiscoverResources(ctx context.Context) ([]types.DiscoveredResource, error) {
	resources, err := o.discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}

	filtered := o.filter.FilterResources(resources)
	o.logger.WithContext(ctx).Info().
		Int("discovered", len(resources)).
		Int("selected", len(filtered)).
		Strs("groups", o.groups).
		Msg("resources discovered")

	return filtered, nil
}

// Run discovers resources and applies action to each of them.
// Only a discovery failure is returned as an error; per-resource failures
// are reported in the result.
func (o *Orchestrator) Run(ctx context.Context, action types.Action) (*types.OrchestrationResult, error) {
	switch action {
	case types.ActionStart, types.ActionStop, types.ActionStatus:
	default:
		return nil, fmt.Errorf("action %q cannot be run; use start, stop or status", action)
	}

	runID := o.newRunID()
	started := o.now()

	ctx, span := telemetry.StartRun(ctx, o.tracer, runID, action, o.strategy)
	defer span.End()

	logger := o.logger.WithContext(ctx)
	logger.Info().
		Str("run_id", runID).
		Str("action", string(action)).
		Str("strategy", o.strategy).
		Bool("dry_run", o.dryRun).
		Msg("run started")

	resources, err := o.DiscoverResources(ctx)
	if err != nil {
		span.Fail(err)
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	sorted := SortForAction(resources, action)
	results := o.execute(ctx, action, sorted)

	result := types.NewOrchestrationResult(action, results)
	result.RunID = runID
	result.StartedAt = started
	result.Duration = o.now().Sub(started)
	span.SetResult(result)

	logger.Info().
		Str("run_id", runID).
		Str("action", string(action)).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("run finished")

	o.report(ctx, result)
	return result, nil
}

func (o *Orchestrator) report(ctx context.Context, result *types.OrchestrationResult) {
	if o.reporter == nil {
		return
	}

	err := o.reporter.Emit(ctx, emitter.Report{
		Environment: o.cfg.Environment,
		Group:       strings.Join(o.groups, ","),
		Strategy:    o.strategy,
		DryRun:      o.dryRun,
		Result:      result,
	})
	if err != nil {
		o.logger.WithContext(ctx).Warn().
			Err(err).
			Str("run_id", result.RunID).
			Msg("failed to emit run report")
	}
}

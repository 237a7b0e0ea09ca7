package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/lightsout/types"
)

// RunMetrics holds the instruments recorded once per orchestration run
type RunMetrics struct {
	RunsTotal       metric.Int64Counter
	OperationsTotal metric.Int64Counter
	RunDuration     metric.Float64Histogram
	ResourcesInRun  metric.Int64Gauge
}

// InitRunMetrics creates the run instruments on the given meter
func InitRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	m := &RunMetrics{}
	var err error

	m.RunsTotal, err = meter.Int64Counter(
		"lightsout.runs.total",
		metric.WithDescription("Total number of orchestration runs"),
		metric.WithUnit("runs"),
	)
	if err != nil {
		return nil, err
	}

	m.OperationsTotal, err = meter.Int64Counter(
		"lightsout.operations.total",
		metric.WithDescription("Total number of per-resource operations by outcome"),
		metric.WithUnit("operations"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"lightsout.run.duration.seconds",
		metric.WithDescription("Time taken to complete an orchestration run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ResourcesInRun, err = meter.Int64Gauge(
		"lightsout.run.resources",
		metric.WithDescription("Number of resources processed by the latest run"),
		metric.WithUnit("resources"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRun records the totals and per-resource outcomes of one run
func (m *RunMetrics) RecordRun(ctx context.Context, result *types.OrchestrationResult) {
	outcome := "success"
	if result.Failed > 0 {
		outcome = "partial_failure"
	}
	runAttrs := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("action", string(result.Action)),
		attribute.String("outcome", outcome),
	))

	m.RunsTotal.Add(ctx, 1, runAttrs)
	m.RunDuration.Record(ctx, result.Duration.Seconds(), runAttrs)
	m.ResourcesInRun.Record(ctx, int64(result.Total),
		metric.WithAttributes(attribute.String("action", string(result.Action))))

	for _, r := range result.Results {
		m.RecordOperation(ctx, r)
	}
}

// RecordOperation records one per-resource outcome
func (m *RunMetrics) RecordOperation(ctx context.Context, r types.HandlerResult) {
	m.OperationsTotal.Add(ctx, 1,
		metric.WithAttributeSet(attribute.NewSet(
			attribute.String("action", string(r.Action)),
			attribute.String("resource_type", r.ResourceType),
			attribute.String("outcome", operationOutcome(r)),
		)),
	)
}

func operationOutcome(r types.HandlerResult) string {
	switch {
	case !r.Success:
		return "failed"
	case r.DryRun:
		return "dry_run"
	case r.Idempotent:
		return "noop"
	default:
		return "changed"
	}
}

// RecordDiscovery records a completed discovery call
func RecordDiscovery(ctx context.Context, count int, elapsed time.Duration) {
	ResourcesDiscovered.Add(ctx, int64(count))
	DiscoveryDuration.Record(ctx, elapsed.Seconds())
}

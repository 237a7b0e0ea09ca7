package daemon

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/lightsout/types"
)

// DaemonMetrics holds schedule loop metrics using OTEL semantic conventions
type DaemonMetrics struct {
	ticks          metric.Int64Counter
	groupRuns      metric.Int64Counter
	groupDuration  metric.Float64Histogram
	groupResources metric.Int64Gauge
}

// NewDaemonMetrics creates the daemon's instruments on meter
func NewDaemonMetrics(meter metric.Meter) (*DaemonMetrics, error) {
	ticks, err := meter.Int64Counter(
		"lightsout.daemon.ticks",
		metric.WithDescription("Number of schedule evaluations"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	groupRuns, err := meter.Int64Counter(
		"lightsout.daemon.group_runs",
		metric.WithDescription("Number of runs triggered by a schedule transition"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	groupDuration, err := meter.Float64Histogram(
		"lightsout.daemon.group_run.duration",
		metric.WithDescription("Duration of schedule triggered runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	groupResources, err := meter.Int64Gauge(
		"lightsout.daemon.group.resources",
		metric.WithDescription("Resources handled by the last run of a group"),
		metric.WithUnit("{resource}"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		ticks:          ticks,
		groupRuns:      groupRuns,
		groupDuration:  groupDuration,
		groupResources: groupResources,
	}, nil
}

// RecordTick counts one schedule evaluation
func (m *DaemonMetrics) RecordTick(ctx context.Context) {
	m.ticks.Add(ctx, 1)
}

// RecordGroupRun records a triggered run. status is success, partial or error.
func (m *DaemonMetrics) RecordGroupRun(ctx context.Context, group string, action types.Action, status string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("action", string(action)),
		attribute.String("status", status),
	)
	m.groupRuns.Add(ctx, 1, attrs)
	m.groupDuration.Record(ctx, durationSeconds, attrs)
}

// RecordGroupResources sets the resource count seen by a group's last run
func (m *DaemonMetrics) RecordGroupResources(ctx context.Context, group string, count int) {
	m.groupResources.Record(ctx, int64(count),
		metric.WithAttributes(attribute.String("group", group)),
	)
}

func runStatus(result *types.OrchestrationResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result.Failed > 0:
		return "partial"
	default:
		return "success"
	}
}

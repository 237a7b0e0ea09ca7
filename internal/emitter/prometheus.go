package emitter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/lightsout/telemetry"
)

// MetricsEmitter records run reports as OTEL metrics. With the Prometheus
// reader installed by telemetry.InitOTEL they are scraped from /metrics.
type MetricsEmitter struct {
	runs *telemetry.RunMetrics

	resourceStopped  metric.Int64ObservableGauge
	transitionsTotal metric.Int64Counter
	registration     metric.Registration
	tracker          *StateTracker
}

// NewMetricsEmitter creates the run instruments on meter.
func NewMetricsEmitter(meter metric.Meter) (*MetricsEmitter, error) {
	runs, err := telemetry.InitRunMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("init run metrics: %w", err)
	}

	e := &MetricsEmitter{
		runs:    runs,
		tracker: NewStateTracker(),
	}

	e.transitionsTotal, err = meter.Int64Counter(
		"lightsout.resource.transitions.total",
		metric.WithDescription("Observed resource state changes between runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}

	e.resourceStopped, err = meter.Int64ObservableGauge(
		"lightsout.resource.stopped",
		metric.WithDescription("1 when the resource was last observed stopped, 0 when running"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource_stopped gauge: %w", err)
	}

	e.registration, err = meter.RegisterCallback(e.observeResources, e.resourceStopped)
	if err != nil {
		return nil, fmt.Errorf("register resource_stopped callback: %w", err)
	}

	return e, nil
}

// Emit records run totals, per-resource outcomes and state transitions.
func (e *MetricsEmitter) Emit(ctx context.Context, report Report) error {
	e.runs.RecordRun(ctx, report.Result)

	for _, tr := range e.tracker.Update(report.Result.Results) {
		e.transitionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource_type", tr.ResourceType),
			attribute.String("from", tr.From),
			attribute.String("to", tr.To),
		))
	}
	return nil
}

// observeResources is the callback for the resource_stopped gauge.
func (e *MetricsEmitter) observeResources(_ context.Context, o metric.Observer) error {
	e.tracker.each(func(s trackedState) {
		var v int64
		if s.state == StateStopped {
			v = 1
		}
		o.ObserveInt64(e.resourceStopped, v, metric.WithAttributes(
			attribute.String("resource_type", s.resourceType),
			attribute.String("resource_id", s.resourceID),
			attribute.String("region", s.region),
		))
	})
	return nil
}

// Close unregisters the gauge callback.
func (e *MetricsEmitter) Close() error {
	return e.registration.Unregister()
}

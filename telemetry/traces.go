package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/lightsout/types"
)

// RunSpan represents one orchestration run
type RunSpan struct {
	span trace.Span
}

// StartRun starts the root span of an orchestration run
func StartRun(ctx context.Context, tracer trace.Tracer, runID string, action types.Action, strategy string) (context.Context, *RunSpan) {
	ctx, span := tracer.Start(ctx, "orchestration.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.action", string(action)),
			attribute.String("run.strategy", strategy),
		),
	)
	return ctx, &RunSpan{span: span}
}

// SetResult records the run totals on the span
func (r *RunSpan) SetResult(result *types.OrchestrationResult) {
	r.span.SetAttributes(
		attribute.Int("resources.total", result.Total),
		attribute.Int("resources.succeeded", result.Succeeded),
		attribute.Int("resources.failed", result.Failed),
	)
	if result.Failed > 0 {
		r.span.SetStatus(codes.Error, "one or more resources failed")
	}
}

// Fail marks the run as failed before any result existed
func (r *RunSpan) Fail(err error) {
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
}

// End ends the run span
func (r *RunSpan) End() {
	r.span.End()
}

// StartPriorityGroup starts a span covering one priority group
func StartPriorityGroup(ctx context.Context, tracer trace.Tracer, index, priority, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestration.group",
		trace.WithAttributes(
			attribute.Int("group.index", index),
			attribute.Int("group.priority", priority),
			attribute.Int("group.size", size),
		),
	)
}

// StartResourceOperation starts a span for one handler call
func StartResourceOperation(ctx context.Context, tracer trace.Tracer, action types.Action, r types.DiscoveredResource) (context.Context, trace.Span) {
	return tracer.Start(ctx, "resource."+string(action),
		trace.WithAttributes(
			attribute.String("resource.type", r.ResourceType),
			attribute.String("resource.id", r.ResourceID),
			attribute.String("resource.region", r.Region),
			attribute.Int("resource.priority", r.Priority),
			attribute.String("resource.group", r.Group),
		),
	)
}

// EndResourceOperation records the outcome on the span and ends it
func EndResourceOperation(span trace.Span, result types.HandlerResult) {
	RecordResourceActionEvent(span, result)
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	span.End()
}

// RecordResourceActionEvent adds a structured event describing a handler result
func RecordResourceActionEvent(span trace.Span, result types.HandlerResult) {
	if span == nil {
		return
	}

	span.AddEvent("resource.action.completed", trace.WithAttributes(
		attribute.String("event.type", "resource.action.completed"),
		attribute.String("action", string(result.Action)),
		attribute.String("resource.id", result.ResourceID),
		attribute.String("resource.type", result.ResourceType),
		attribute.Bool("success", result.Success),
		attribute.Bool("idempotent", result.Idempotent),
		attribute.Bool("dry_run", result.DryRun),
		attribute.String("error", result.Error),
		attribute.String("message", result.Message),
	))
}

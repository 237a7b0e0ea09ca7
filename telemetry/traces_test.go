package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yairfalse/lightsout/types"
)

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(exporter),
	)
	return exporter, provider
}

func TestTraces_RunHierarchy(t *testing.T) {
	exporter, provider := newTestTracer()
	tracer := provider.Tracer("test")

	ctx, run := StartRun(context.Background(), tracer, "run-1", types.ActionStart, "grouped-parallel")

	groupCtx, group := StartPriorityGroup(ctx, tracer, 0, 10, 1)
	res := types.DiscoveredResource{ResourceType: "ecs-service", ResourceID: "web/api", Priority: 10}
	_, op := StartResourceOperation(groupCtx, tracer, types.ActionStart, res)
	EndResourceOperation(op, types.HandlerResult{Success: false, Action: types.ActionStart, Message: "boom"})
	group.End()

	run.SetResult(types.NewOrchestrationResult(types.ActionStart, []types.HandlerResult{{Success: false}}))
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}

	root := byName["orchestration.run"]
	grp := byName["orchestration.group"]
	opSpan := byName["resource.start"]

	assert.Equal(t, root.SpanContext.SpanID(), grp.Parent.SpanID())
	assert.Equal(t, grp.SpanContext.SpanID(), opSpan.Parent.SpanID())
	assert.Equal(t, codes.Error, opSpan.Status.Code)
	assert.Equal(t, codes.Error, root.Status.Code)

	require.Len(t, opSpan.Events, 1)
	assert.Equal(t, "resource.action.completed", opSpan.Events[0].Name)
}

func TestRunSpan_Fail(t *testing.T) {
	exporter, provider := newTestTracer()

	_, run := StartRun(context.Background(), provider.Tracer("test"), "run-2", types.ActionStop, "sequential")
	run.Fail(errors.New("discovery failed"))
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "discovery failed", spans[0].Status.Description)
}

func TestRecordResourceActionEvent_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordResourceActionEvent(nil, types.HandlerResult{})
	})
}

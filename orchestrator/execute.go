package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// execute applies the strategy to the sorted resources. Results come back
// in execution order: groups in order, sorted order within a group.
func (o *Orchestrator) execute(ctx context.Context, action types.Action, sorted []types.DiscoveredResource) []types.HandlerResult {
	switch o.strategy {
	case config.StrategySequential:
		results := make([]types.HandlerResult, 0, len(sorted))
		for _, r := range sorted {
			results = append(results, o.process(ctx, action, r))
		}
		return results

	case config.StrategyParallel:
		return o.runConcurrent(ctx, action, sorted)

	case config.StrategyGroupedParallel:
	default:
		o.logger.WithContext(ctx).Warn().
			Str("strategy", o.strategy).
			Msg("unknown execution strategy, using grouped-parallel")
	}

	results := make([]types.HandlerResult, 0, len(sorted))
	for i, group := range GroupByPriority(sorted) {
		gctx, span := telemetry.StartPriorityGroup(ctx, o.tracer, i, group.Priority, len(group.Resources))
		o.logger.WithContext(gctx).Debug().
			Int("group_index", i).
			Int("priority", group.Priority).
			Int("size", len(group.Resources)).
			Msg("priority group started")

		results = append(results, o.runConcurrent(gctx, action, group.Resources)...)
		span.End()
	}
	return results
}

// runConcurrent processes every resource at once, bounded by maxConcurrency,
// and returns only after all of them settled. Each goroutine writes its own index.
func (o *Orchestrator) runConcurrent(ctx context.Context, action types.Action, resources []types.DiscoveredResource) []types.HandlerResult {
	results := make([]types.HandlerResult, len(resources))

	var g errgroup.Group
	if o.maxConcurrency > 0 {
		g.SetLimit(o.maxConcurrency)
	}
	for i, r := range resources {
		g.Go(func() error {
			results[i] = o.process(ctx, action, r)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// process runs one action on one resource. It never returns an error or
// panics; every failure becomes a failed result.
func (o *Orchestrator) process(ctx context.Context, action types.Action, res types.DiscoveredResource) (result types.HandlerResult) {
	ctx, span := telemetry.StartResourceOperation(ctx, o.tracer, action, res)
	defer func() {
		if p := recover(); p != nil {
			result = failed(res, action, "", fmt.Sprintf("panic: %v", p))
		}
		telemetry.EndResourceOperation(span, result)
		o.logResult(ctx, res, result)
	}()

	if o.guard != nil && action.Mutating() {
		decision, err := o.guard.Check(ctx, action, res)
		if err != nil {
			return failed(res, action, "", err.Error())
		}
		if !decision.Allowed {
			return failed(res, action, types.ErrCodePolicyDenied,
				"Denied by policy: "+strings.Join(decision.Reasons, "; "))
		}
	}

	handler, ok := o.handlers.Get(res.ResourceType, res, o.cfg)
	if !ok {
		return failed(res, action, types.ErrCodeHandlerNotFound,
			fmt.Sprintf("No handler for resource type %q", res.ResourceType))
	}

	if o.dryRun && action.Mutating() {
		return types.HandlerResult{
			Success:      true,
			Action:       action,
			ResourceType: res.ResourceType,
			ResourceID:   res.ResourceID,
			Region:       res.Region,
			DryRun:       true,
			Message:      fmt.Sprintf("Dry run: would %s %s", action, res.ResourceID),
		}
	}

	var err error
	switch action {
	case types.ActionStart:
		result, err = handler.Start(ctx)
	case types.ActionStop:
		result, err = handler.Stop(ctx)
	case types.ActionStatus:
		var status types.ResourceStatus
		status, err = handler.Status(ctx)
		if err == nil {
			result = types.HandlerResult{
				Success:       true,
				Action:        action,
				ResourceType:  res.ResourceType,
				ResourceID:    res.ResourceID,
				Region:        res.Region,
				Message:       describeStatus(status),
				PreviousState: &status,
			}
		}
	}
	if err != nil {
		return failed(res, action, "", err.Error())
	}
	return result
}

func (o *Orchestrator) logResult(ctx context.Context, res types.DiscoveredResource, result types.HandlerResult) {
	logger := o.logger.WithContext(ctx)
	event := logger.Info()
	if !result.Success {
		event = logger.Warn().Str("error", result.Error)
	}
	event.
		Str("resource_type", res.ResourceType).
		Str("resource_id", res.ResourceID).
		Str("action", string(result.Action)).
		Int("priority", res.Priority).
		Bool("success", result.Success).
		Bool("idempotent", result.Idempotent).
		Bool("dry_run", result.DryRun).
		Msg(result.Message)
}

// failed builds a failed result. An empty code carries the message as the error.
func failed(res types.DiscoveredResource, action types.Action, code, msg string) types.HandlerResult {
	if code == "" {
		code = msg
	}
	return types.HandlerResult{
		Action:       action,
		ResourceType: res.ResourceType,
		ResourceID:   res.ResourceID,
		Region:       res.Region,
		Message:      msg,
		Error:        code,
	}
}

func describeStatus(s types.ResourceStatus) string {
	var parts []string
	if s.DesiredCount != nil {
		parts = append(parts, fmt.Sprintf("desired %d", *s.DesiredCount))
	}
	if s.RunningCount != nil {
		parts = append(parts, fmt.Sprintf("running %d", *s.RunningCount))
	}
	if len(parts) == 0 {
		return s.State
	}
	return fmt.Sprintf("%s (%s)", s.State, strings.Join(parts, ", "))
}

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	aastypes "github.com/aws/aws-sdk-go-v2/service/applicationautoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

const maxStableWaiterDelay = 120 * time.Second

// ECSServiceHandler scales an ECS service between zero and its working size.
// When an Application Auto Scaling target owns the desired count, the target's
// bounds are moved together with the service.
type ECSServiceHandler struct {
	resource types.DiscoveredResource
	cfg      config.ECSServiceDefaults
	ecs      ECSAPI
	scaling  ApplicationAutoScalingAPI
	cluster  string
	service  string
	logger   *telemetry.Logger
}

// NewECSServiceHandler creates a handler for one ECS service
func NewECSServiceHandler(res types.DiscoveredResource, cfg config.ECSServiceDefaults, ecsClient ECSAPI, scaling ApplicationAutoScalingAPI) *ECSServiceHandler {
	service := res.ResourceID
	if i := strings.LastIndex(service, "/"); i >= 0 {
		service = service[i+1:]
	}
	if cfg.DefaultDesiredCount == nil {
		cfg.DefaultDesiredCount = aws.Int32(1)
	}
	return &ECSServiceHandler{
		resource: res,
		cfg:      cfg,
		ecs:      ecsClient,
		scaling:  scaling,
		cluster:  res.ClusterName(),
		service:  service,
		logger:   telemetry.NewLogger("handlers.ecs"),
	}
}

// Status reads the service's desired and running counts
func (h *ECSServiceHandler) Status(ctx context.Context) (types.ResourceStatus, error) {
	svc, err := h.describe(ctx)
	if err != nil {
		return types.ResourceStatus{}, err
	}
	return types.ResourceStatus{
		State:        aws.ToString(svc.Status),
		Stopped:      svc.DesiredCount == 0,
		DesiredCount: aws.Int32(svc.DesiredCount),
		RunningCount: aws.Int32(svc.RunningCount),
	}, nil
}

// IsReady reports whether every desired task is running
func (h *ECSServiceHandler) IsReady(ctx context.Context) bool {
	status, err := h.Status(ctx)
	if err != nil {
		return false
	}
	return *status.DesiredCount == *status.RunningCount
}

// Stop scales the service down
func (h *ECSServiceHandler) Stop(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	managed, err := h.autoScalingManaged(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	desired := *status.DesiredCount
	if managed {
		if desired == 0 {
			return unchanged(h.resource, types.ActionStop, status, "Service already stopped (desired count 0)"), nil
		}
		if err := h.applyCapacity(ctx, 0, 0, 0); err != nil {
			return types.HandlerResult{}, err
		}
		if err := h.waitStable(ctx); err != nil {
			return types.HandlerResult{}, err
		}
		return succeeded(h.resource, types.ActionStop, status,
			fmt.Sprintf("Service stopped with auto scaling target pinned to 0 (desired %d -> 0)", desired)), nil
	}

	target := h.stopTarget(desired)
	if desired == target {
		return unchanged(h.resource, types.ActionStop, status,
			fmt.Sprintf("Service already at stop target (desired count %d)", desired)), nil
	}
	if err := h.setDesired(ctx, target); err != nil {
		return types.HandlerResult{}, err
	}
	if err := h.waitStable(ctx); err != nil {
		return types.HandlerResult{}, err
	}
	return succeeded(h.resource, types.ActionStop, status,
		fmt.Sprintf("Service scaled down (desired %d -> %d)", desired, target)), nil
}

// Start scales the service back up
func (h *ECSServiceHandler) Start(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	managed, err := h.autoScalingManaged(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	desired := *status.DesiredCount
	if managed {
		as := h.cfg.AutoScaling
		if as == nil {
			h.logger.WithContext(ctx).Error().
				Str("cluster", h.cluster).
				Str("ecs_service", h.service).
				Msg("auto scaling target found but no start capacity configured")
			return refused(h.resource, types.ActionStart, status, types.ErrCodeAutoScalingConfigMissing,
				"Service has an auto scaling target but resource_defaults.ecs-service.auto_scaling is not configured"), nil
		}
		if desired == as.DesiredCount {
			return unchanged(h.resource, types.ActionStart, status,
				fmt.Sprintf("Service already running (desired count %d)", desired)), nil
		}
		if err := h.applyCapacity(ctx, as.MinCapacity, as.MaxCapacity, as.DesiredCount); err != nil {
			return types.HandlerResult{}, err
		}
		if err := h.waitStable(ctx); err != nil {
			return types.HandlerResult{}, err
		}
		return succeeded(h.resource, types.ActionStart, status,
			fmt.Sprintf("Service started with auto scaling target %d-%d (desired %d -> %d)",
				as.MinCapacity, as.MaxCapacity, desired, as.DesiredCount)), nil
	}

	target := *h.cfg.DefaultDesiredCount
	if desired == target {
		return unchanged(h.resource, types.ActionStart, status,
			fmt.Sprintf("Service already running (desired count %d)", desired)), nil
	}
	if err := h.setDesired(ctx, target); err != nil {
		return types.HandlerResult{}, err
	}
	if err := h.waitStable(ctx); err != nil {
		return types.HandlerResult{}, err
	}
	return succeeded(h.resource, types.ActionStart, status,
		fmt.Sprintf("Service started (desired %d -> %d)", desired, target)), nil
}

func (h *ECSServiceHandler) describe(ctx context.Context) (*ecstypes.Service, error) {
	out, err := h.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(h.cluster),
		Services: []string{h.service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s/%s: %w", h.cluster, h.service, err)
	}
	if len(out.Services) == 0 {
		return nil, fmt.Errorf("%w: service %s in cluster %s", ErrResourceNotFound, h.service, h.cluster)
	}
	return &out.Services[0], nil
}

// autoScalingManaged looks up a registered scalable target. A lookup failure
// counts as "not managed" unless strict detection is configured.
func (h *ECSServiceHandler) autoScalingManaged(ctx context.Context) (bool, error) {
	out, err := h.scaling.DescribeScalableTargets(ctx, &applicationautoscaling.DescribeScalableTargetsInput{
		ServiceNamespace:  aastypes.ServiceNamespaceEcs,
		ResourceIds:       []string{h.scalableResourceID()},
		ScalableDimension: aastypes.ScalableDimensionECSServiceDesiredCount,
	})
	if err != nil {
		if h.cfg.StrictAutoScalingDetection {
			return false, fmt.Errorf("failed to detect auto scaling for %s: %w", h.scalableResourceID(), err)
		}
		h.logger.WithContext(ctx).Warn().
			Err(err).
			Str("cluster", h.cluster).
			Str("ecs_service", h.service).
			Msg("auto scaling detection failed, treating service as directly scaled")
		return false, nil
	}
	return len(out.ScalableTargets) > 0, nil
}

func (h *ECSServiceHandler) scalableResourceID() string {
	return fmt.Sprintf("service/%s/%s", h.cluster, h.service)
}

// applyCapacity moves the scalable target bounds and the desired count as one step
func (h *ECSServiceHandler) applyCapacity(ctx context.Context, minCap, maxCap, desired int32) error {
	_, err := h.scaling.RegisterScalableTarget(ctx, &applicationautoscaling.RegisterScalableTargetInput{
		ServiceNamespace:  aastypes.ServiceNamespaceEcs,
		ResourceId:        aws.String(h.scalableResourceID()),
		ScalableDimension: aastypes.ScalableDimensionECSServiceDesiredCount,
		MinCapacity:       aws.Int32(minCap),
		MaxCapacity:       aws.Int32(maxCap),
	})
	if err != nil {
		return fmt.Errorf("failed to register scalable target %s: %w", h.scalableResourceID(), err)
	}
	return h.setDesired(ctx, desired)
}

func (h *ECSServiceHandler) setDesired(ctx context.Context, desired int32) error {
	_, err := h.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(h.cluster),
		Service:      aws.String(h.service),
		DesiredCount: aws.Int32(desired),
	})
	if err != nil {
		return fmt.Errorf("failed to update service %s/%s: %w", h.cluster, h.service, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("cluster", h.cluster).
		Str("ecs_service", h.service).
		Int32("desired_count", desired).
		Msg("service desired count updated")
	return nil
}

func (h *ECSServiceHandler) stopTarget(current int32) int32 {
	sb := h.cfg.StopBehavior
	switch sb.Mode {
	case config.StopModeReduceByCount:
		return max(0, current-sb.Count)
	case config.StopModeReduceToCount:
		return sb.Count
	default:
		return 0
	}
}

func (h *ECSServiceHandler) waitStable(ctx context.Context) error {
	if !h.cfg.WaitForStable {
		return nil
	}

	poll := h.cfg.PollInterval()
	waiter := ecs.NewServicesStableWaiter(h.ecs, func(o *ecs.ServicesStableWaiterOptions) {
		o.MinDelay = poll
		o.MaxDelay = max(poll, maxStableWaiterDelay)
	})

	err := waiter.Wait(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(h.cluster),
		Services: []string{h.service},
	}, h.cfg.StableTimeout())
	if err != nil {
		return fmt.Errorf("service %s/%s did not stabilize: %w", h.cluster, h.service, err)
	}
	return nil
}

package handlers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// AutoScalingGroupHandler parks an EC2 Auto Scaling group at zero capacity
// and restores the configured capacity on start.
type AutoScalingGroupHandler struct {
	resource types.DiscoveredResource
	cfg      config.AutoScalingGroupDefaults
	asg      AutoScalingAPI
	logger   *telemetry.Logger
}

// NewAutoScalingGroupHandler creates a handler for one Auto Scaling group
func NewAutoScalingGroupHandler(res types.DiscoveredResource, cfg config.AutoScalingGroupDefaults, client AutoScalingAPI) *AutoScalingGroupHandler {
	return &AutoScalingGroupHandler{
		resource: res,
		cfg:      cfg,
		asg:      client,
		logger:   telemetry.NewLogger("handlers.autoscaling"),
	}
}

// Status reads the group's capacity settings and in-service count
func (h *AutoScalingGroupHandler) Status(ctx context.Context) (types.ResourceStatus, error) {
	group, err := h.describe(ctx)
	if err != nil {
		return types.ResourceStatus{}, err
	}

	desired := aws.ToInt32(group.DesiredCapacity)
	state := "running"
	if desired == 0 {
		state = "stopped"
	}
	return types.ResourceStatus{
		State:        state,
		Stopped:      desired == 0,
		DesiredCount: aws.Int32(desired),
		RunningCount: aws.Int32(inService(group)),
		MinSize:      aws.Int32(aws.ToInt32(group.MinSize)),
		MaxSize:      aws.Int32(aws.ToInt32(group.MaxSize)),
	}, nil
}

// IsReady reports whether in-service instances match the desired capacity
func (h *AutoScalingGroupHandler) IsReady(ctx context.Context) bool {
	status, err := h.Status(ctx)
	if err != nil {
		return false
	}
	return *status.RunningCount == *status.DesiredCount
}

// Stop sets minimum size and desired capacity to zero
func (h *AutoScalingGroupHandler) Stop(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	if *status.DesiredCount == 0 && *status.MinSize == 0 {
		return unchanged(h.resource, types.ActionStop, status, "Group already at zero capacity"), nil
	}

	if err := h.update(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		MinSize:         aws.Int32(0),
		DesiredCapacity: aws.Int32(0),
	}); err != nil {
		return types.HandlerResult{}, err
	}
	if err := h.waitInService(ctx, 0); err != nil {
		return types.HandlerResult{}, err
	}

	return succeeded(h.resource, types.ActionStop, status,
		fmt.Sprintf("Group scaled to zero (desired %d -> 0, min %d -> 0)", *status.DesiredCount, *status.MinSize)), nil
}

// Start restores the configured capacity
func (h *AutoScalingGroupHandler) Start(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	capacity := h.cfg.StartCapacity
	if capacity == nil {
		return refused(h.resource, types.ActionStart, status, types.ErrCodeCapacityConfigMissing,
			"resource_defaults.autoscaling-group.start_capacity is not configured"), nil
	}

	if *status.DesiredCount == capacity.DesiredCapacity {
		return unchanged(h.resource, types.ActionStart, status,
			fmt.Sprintf("Group already at desired capacity %d", capacity.DesiredCapacity)), nil
	}

	if err := h.update(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		MinSize:         aws.Int32(capacity.MinSize),
		MaxSize:         aws.Int32(capacity.MaxSize),
		DesiredCapacity: aws.Int32(capacity.DesiredCapacity),
	}); err != nil {
		return types.HandlerResult{}, err
	}
	if err := h.waitInService(ctx, capacity.DesiredCapacity); err != nil {
		return types.HandlerResult{}, err
	}

	return succeeded(h.resource, types.ActionStart, status,
		fmt.Sprintf("Group capacity restored (desired %d -> %d)", *status.DesiredCount, capacity.DesiredCapacity)), nil
}

func (h *AutoScalingGroupHandler) describe(ctx context.Context) (*astypes.AutoScalingGroup, error) {
	out, err := h.asg.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{h.resource.ResourceID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe auto scaling group %s: %w", h.resource.ResourceID, err)
	}
	if len(out.AutoScalingGroups) == 0 {
		return nil, fmt.Errorf("%w: auto scaling group %s", ErrResourceNotFound, h.resource.ResourceID)
	}
	return &out.AutoScalingGroups[0], nil
}

func (h *AutoScalingGroupHandler) update(ctx context.Context, input *autoscaling.UpdateAutoScalingGroupInput) error {
	input.AutoScalingGroupName = aws.String(h.resource.ResourceID)
	if _, err := h.asg.UpdateAutoScalingGroup(ctx, input); err != nil {
		return fmt.Errorf("failed to update auto scaling group %s: %w", h.resource.ResourceID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("resource_id", h.resource.ResourceID).
		Int32("desired_capacity", aws.ToInt32(input.DesiredCapacity)).
		Int32("min_size", aws.ToInt32(input.MinSize)).
		Msg("auto scaling group capacity updated")
	return nil
}

func (h *AutoScalingGroupHandler) waitInService(ctx context.Context, want int32) error {
	if !h.cfg.WaitForStable {
		return nil
	}

	err := pollUntil(ctx, h.cfg.PollInterval(), h.cfg.StableTimeout(), func(ctx context.Context) (bool, error) {
		group, err := h.describe(ctx)
		if err != nil {
			return false, err
		}
		return inService(group) == want && int32(len(group.Instances)) == want, nil
	})
	if err != nil {
		return fmt.Errorf("auto scaling group %s did not reach %d instances: %w", h.resource.ResourceID, want, err)
	}
	return nil
}

func inService(group *astypes.AutoScalingGroup) int32 {
	var n int32
	for _, inst := range group.Instances {
		if inst.LifecycleState == astypes.LifecycleStateInService {
			n++
		}
	}
	return n
}

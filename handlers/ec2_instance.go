package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// EC2InstanceHandler stops and starts a single EC2 instance
type EC2InstanceHandler struct {
	resource types.DiscoveredResource
	cfg      config.EC2InstanceDefaults
	ec2      EC2API
	logger   *telemetry.Logger
}

// NewEC2InstanceHandler creates a handler for one EC2 instance
func NewEC2InstanceHandler(res types.DiscoveredResource, cfg config.EC2InstanceDefaults, client EC2API) *EC2InstanceHandler {
	return &EC2InstanceHandler{
		resource: res,
		cfg:      cfg,
		ec2:      client,
		logger:   telemetry.NewLogger("handlers.ec2"),
	}
}

// Status reads the instance state
func (h *EC2InstanceHandler) Status(ctx context.Context) (types.ResourceStatus, error) {
	state, err := h.currentState(ctx)
	if err != nil {
		return types.ResourceStatus{}, err
	}
	return types.ResourceStatus{
		State:   string(state),
		Stopped: state == ec2types.InstanceStateNameStopped,
	}, nil
}

// IsReady is true when the instance is running or stopped
func (h *EC2InstanceHandler) IsReady(ctx context.Context) bool {
	state, err := h.currentState(ctx)
	if err != nil {
		return false
	}
	return state == ec2types.InstanceStateNameRunning || state == ec2types.InstanceStateNameStopped
}

// Stop stops a running instance
func (h *EC2InstanceHandler) Stop(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	switch ec2types.InstanceStateName(status.State) {
	case ec2types.InstanceStateNameStopped, ec2types.InstanceStateNameStopping:
		return unchanged(h.resource, types.ActionStop, status,
			fmt.Sprintf("Instance already %s", status.State)), nil
	case ec2types.InstanceStateNameRunning:
	default:
		return refused(h.resource, types.ActionStop, status, types.ErrCodeInvalidState,
			fmt.Sprintf("Cannot stop instance in state %q (expected %q)", status.State, ec2types.InstanceStateNameRunning)), nil
	}

	if _, err := h.ec2.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{h.resource.ResourceID},
	}); err != nil {
		return types.HandlerResult{}, fmt.Errorf("failed to stop instance %s: %w", h.resource.ResourceID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("resource_id", h.resource.ResourceID).
		Str("previous_state", status.State).
		Msg("instance stop issued")

	if h.cfg.WaitForStable {
		waiter := ec2.NewInstanceStoppedWaiter(h.ec2, func(o *ec2.InstanceStoppedWaiterOptions) {
			o.MinDelay = h.cfg.PollInterval()
			o.MaxDelay = max(h.cfg.PollInterval(), 120*time.Second)
		})
		if err := waiter.Wait(ctx, h.describeInput(), h.cfg.StableTimeout()); err != nil {
			return types.HandlerResult{}, fmt.Errorf("instance %s did not stop: %w", h.resource.ResourceID, err)
		}
		return succeeded(h.resource, types.ActionStop, status,
			fmt.Sprintf("Instance stopped (was %s)", status.State)), nil
	}

	return succeeded(h.resource, types.ActionStop, status,
		fmt.Sprintf("Instance stop initiated (was %s)", status.State)), nil
}

// Start starts a stopped instance
func (h *EC2InstanceHandler) Start(ctx context.Context) (types.HandlerResult, error) {
	status, err := h.Status(ctx)
	if err != nil {
		return types.HandlerResult{}, err
	}

	switch ec2types.InstanceStateName(status.State) {
	case ec2types.InstanceStateNameRunning, ec2types.InstanceStateNamePending:
		return unchanged(h.resource, types.ActionStart, status,
			fmt.Sprintf("Instance already %s", status.State)), nil
	case ec2types.InstanceStateNameStopped:
	default:
		return refused(h.resource, types.ActionStart, status, types.ErrCodeInvalidState,
			fmt.Sprintf("Cannot start instance in state %q (expected %q)", status.State, ec2types.InstanceStateNameStopped)), nil
	}

	if _, err := h.ec2.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{h.resource.ResourceID},
	}); err != nil {
		return types.HandlerResult{}, fmt.Errorf("failed to start instance %s: %w", h.resource.ResourceID, err)
	}

	h.logger.WithContext(ctx).Info().
		Str("resource_id", h.resource.ResourceID).
		Str("previous_state", status.State).
		Msg("instance start issued")

	if h.cfg.WaitForStable {
		waiter := ec2.NewInstanceRunningWaiter(h.ec2, func(o *ec2.InstanceRunningWaiterOptions) {
			o.MinDelay = h.cfg.PollInterval()
			o.MaxDelay = max(h.cfg.PollInterval(), 120*time.Second)
		})
		if err := waiter.Wait(ctx, h.describeInput(), h.cfg.StableTimeout()); err != nil {
			return types.HandlerResult{}, fmt.Errorf("instance %s did not start: %w", h.resource.ResourceID, err)
		}
		return succeeded(h.resource, types.ActionStart, status,
			fmt.Sprintf("Instance running (was %s)", status.State)), nil
	}

	return succeeded(h.resource, types.ActionStart, status,
		fmt.Sprintf("Instance start initiated (was %s)", status.State)), nil
}

func (h *EC2InstanceHandler) describeInput() *ec2.DescribeInstancesInput {
	return &ec2.DescribeInstancesInput{InstanceIds: []string{h.resource.ResourceID}}
}

func (h *EC2InstanceHandler) currentState(ctx context.Context) (ec2types.InstanceStateName, error) {
	out, err := h.ec2.DescribeInstances(ctx, h.describeInput())
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidInstanceID.NotFound" {
			return "", fmt.Errorf("%w: instance %s", ErrResourceNotFound, h.resource.ResourceID)
		}
		return "", fmt.Errorf("failed to describe instance %s: %w", h.resource.ResourceID, err)
	}

	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == h.resource.ResourceID && inst.State != nil {
				return inst.State.Name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: instance %s", ErrResourceNotFound, h.resource.ResourceID)
}

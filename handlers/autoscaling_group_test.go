package handlers

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/types"
)

func asgResource() types.DiscoveredResource {
	return types.DiscoveredResource{ResourceType: types.ResourceTypeAutoScalingGroup, ResourceID: "workers"}
}

// fakeGroup applies capacity updates and reports every desired instance as in service
func fakeGroup(minSize, maxSize, desired int32) *mockAutoScalingClient {
	m := &mockAutoScalingClient{}
	m.DescribeAutoScalingGroupsFunc = func(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
		instances := make([]astypes.Instance, desired)
		for i := range instances {
			instances[i] = astypes.Instance{LifecycleState: astypes.LifecycleStateInService}
		}
		return &autoscaling.DescribeAutoScalingGroupsOutput{
			AutoScalingGroups: []astypes.AutoScalingGroup{{
				AutoScalingGroupName: aws.String(params.AutoScalingGroupNames[0]),
				MinSize:              aws.Int32(minSize),
				MaxSize:              aws.Int32(maxSize),
				DesiredCapacity:      aws.Int32(desired),
				Instances:            instances,
			}},
		}, nil
	}
	m.UpdateAutoScalingGroupFunc = func(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
		if params.MinSize != nil {
			minSize = *params.MinSize
		}
		if params.MaxSize != nil {
			maxSize = *params.MaxSize
		}
		if params.DesiredCapacity != nil {
			desired = *params.DesiredCapacity
		}
		return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
	}
	return m
}

func asgDefaults(d *config.AutoScalingGroupDefaults) config.AutoScalingGroupDefaults {
	return config.ResourceDefaults{AutoScalingGroup: d}.ASG()
}

func TestAutoScalingGroup_Stop(t *testing.T) {
	client := fakeGroup(1, 4, 2)
	cfg := asgDefaults(&config.AutoScalingGroupDefaults{
		WaitOptions: config.WaitOptions{WaitForStable: true, StableTimeoutSeconds: 5, PollIntervalSeconds: 1},
	})
	h := NewAutoScalingGroupHandler(asgResource(), cfg, client)

	result, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(2), *result.PreviousState.DesiredCount)
	assert.Equal(t, int32(1), *result.PreviousState.MinSize)

	require.Len(t, client.updateCalls, 1)
	update := client.updateCalls[0]
	assert.Equal(t, "workers", aws.ToString(update.AutoScalingGroupName))
	assert.Equal(t, int32(0), aws.ToInt32(update.MinSize))
	assert.Equal(t, int32(0), aws.ToInt32(update.DesiredCapacity))
	assert.Nil(t, update.MaxSize)

	again, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Len(t, client.updateCalls, 1)
}

func TestAutoScalingGroup_StartRequiresCapacity(t *testing.T) {
	client := fakeGroup(0, 4, 0)
	h := NewAutoScalingGroupHandler(asgResource(), asgDefaults(nil), client)

	result, err := h.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, types.ErrCodeCapacityConfigMissing, result.Error)
	assert.Empty(t, client.updateCalls)
}

func TestAutoScalingGroup_Start(t *testing.T) {
	client := fakeGroup(0, 4, 0)
	cfg := asgDefaults(&config.AutoScalingGroupDefaults{
		StartCapacity: &config.GroupCapacity{MinSize: 1, MaxSize: 3, DesiredCapacity: 2},
	})
	h := NewAutoScalingGroupHandler(asgResource(), cfg, client)

	result, err := h.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, client.updateCalls, 1)
	assert.Equal(t, int32(3), aws.ToInt32(client.updateCalls[0].MaxSize))

	status, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", status.State)
	assert.Equal(t, int32(2), *status.RunningCount)
	assert.True(t, h.IsReady(context.Background()))

	again, err := h.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
}

func TestAutoScalingGroup_NotFound(t *testing.T) {
	h := NewAutoScalingGroupHandler(asgResource(), asgDefaults(nil), &mockAutoScalingClient{})
	_, err := h.Status(context.Background())
	assert.ErrorIs(t, err, ErrResourceNotFound)
	assert.False(t, h.IsReady(context.Background()))
}

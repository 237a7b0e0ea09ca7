package handlers

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/types"
)

func ec2Resource() types.DiscoveredResource {
	return types.DiscoveredResource{ResourceType: types.ResourceTypeEC2Instance, ResourceID: "i-0abc"}
}

// fakeInstance flips state when start/stop is issued
func fakeInstance(state ec2types.InstanceStateName) *mockEC2Client {
	m := &mockEC2Client{}
	m.DescribeInstancesFunc = func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
		return &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{{
					InstanceId: aws.String("i-0abc"),
					State:      &ec2types.InstanceState{Name: state},
				}},
			}},
		}, nil
	}
	m.StopInstancesFunc = func(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
		state = ec2types.InstanceStateNameStopped
		return &ec2.StopInstancesOutput{}, nil
	}
	m.StartInstancesFunc = func(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
		state = ec2types.InstanceStateNameRunning
		return &ec2.StartInstancesOutput{}, nil
	}
	return m
}

func ec2Defaults(d *config.EC2InstanceDefaults) config.EC2InstanceDefaults {
	return config.ResourceDefaults{EC2Instance: d}.EC2()
}

func TestEC2Instance_StopThenStop(t *testing.T) {
	client := fakeInstance(ec2types.InstanceStateNameRunning)
	h := NewEC2InstanceHandler(ec2Resource(), ec2Defaults(nil), client)

	result, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Instance stop initiated (was running)", result.Message)
	assert.Equal(t, 1, client.stopCalls)

	again, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Idempotent)
	assert.Equal(t, 1, client.stopCalls)
}

func TestEC2Instance_StartWithWait(t *testing.T) {
	client := fakeInstance(ec2types.InstanceStateNameStopped)
	cfg := ec2Defaults(&config.EC2InstanceDefaults{
		WaitOptions: config.WaitOptions{WaitForStable: true, StableTimeoutSeconds: 5, PollIntervalSeconds: 1},
	})
	h := NewEC2InstanceHandler(ec2Resource(), cfg, client)

	result, err := h.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Instance running (was stopped)", result.Message)
	assert.Equal(t, 1, client.startCalls)
	assert.True(t, h.IsReady(context.Background()))
}

func TestEC2Instance_InvalidState(t *testing.T) {
	client := fakeInstance(ec2types.InstanceStateNameShuttingDown)
	h := NewEC2InstanceHandler(ec2Resource(), ec2Defaults(nil), client)

	stop, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, stop.Success)
	assert.Equal(t, types.ErrCodeInvalidState, stop.Error)

	start, err := h.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, start.Success)
	assert.Contains(t, start.Message, "shutting-down")

	assert.Zero(t, client.stopCalls)
	assert.Zero(t, client.startCalls)
	assert.False(t, h.IsReady(context.Background()))
}

func TestEC2Instance_StartPendingIsIdempotent(t *testing.T) {
	client := fakeInstance(ec2types.InstanceStateNamePending)
	result, err := NewEC2InstanceHandler(ec2Resource(), ec2Defaults(nil), client).Start(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.Zero(t, client.startCalls)
}

func TestEC2Instance_NotFound(t *testing.T) {
	client := &mockEC2Client{
		DescribeInstancesFunc: func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "not found"}
		},
	}
	_, err := NewEC2InstanceHandler(ec2Resource(), ec2Defaults(nil), client).Status(context.Background())
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = NewEC2InstanceHandler(ec2Resource(), ec2Defaults(nil), &mockEC2Client{}).Status(context.Background())
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

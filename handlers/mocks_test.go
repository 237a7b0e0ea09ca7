package handlers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// mockECSClient implements ECSAPI for testing.
type mockECSClient struct {
	DescribeServicesFunc func(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	UpdateServiceFunc    func(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)

	updateCalls []*ecs.UpdateServiceInput
}

func (m *mockECSClient) DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	if m.DescribeServicesFunc != nil {
		return m.DescribeServicesFunc(ctx, params, optFns...)
	}
	return &ecs.DescribeServicesOutput{}, nil
}

func (m *mockECSClient) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	m.updateCalls = append(m.updateCalls, params)
	if m.UpdateServiceFunc != nil {
		return m.UpdateServiceFunc(ctx, params, optFns...)
	}
	return &ecs.UpdateServiceOutput{}, nil
}

// mockScalingClient implements ApplicationAutoScalingAPI for testing.
type mockScalingClient struct {
	DescribeScalableTargetsFunc func(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error)
	RegisterScalableTargetFunc  func(ctx context.Context, params *applicationautoscaling.RegisterScalableTargetInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.RegisterScalableTargetOutput, error)

	registerCalls []*applicationautoscaling.RegisterScalableTargetInput
}

func (m *mockScalingClient) DescribeScalableTargets(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error) {
	if m.DescribeScalableTargetsFunc != nil {
		return m.DescribeScalableTargetsFunc(ctx, params, optFns...)
	}
	return &applicationautoscaling.DescribeScalableTargetsOutput{}, nil
}

func (m *mockScalingClient) RegisterScalableTarget(ctx context.Context, params *applicationautoscaling.RegisterScalableTargetInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.RegisterScalableTargetOutput, error) {
	m.registerCalls = append(m.registerCalls, params)
	if m.RegisterScalableTargetFunc != nil {
		return m.RegisterScalableTargetFunc(ctx, params, optFns...)
	}
	return &applicationautoscaling.RegisterScalableTargetOutput{}, nil
}

// mockRDSClient implements RDSAPI for testing.
type mockRDSClient struct {
	DescribeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	StopDBInstanceFunc      func(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	StartDBInstanceFunc     func(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)

	stopCalls  []*rds.StopDBInstanceInput
	startCalls []*rds.StartDBInstanceInput
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if m.DescribeDBInstancesFunc != nil {
		return m.DescribeDBInstancesFunc(ctx, params, optFns...)
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

func (m *mockRDSClient) StopDBInstance(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error) {
	m.stopCalls = append(m.stopCalls, params)
	if m.StopDBInstanceFunc != nil {
		return m.StopDBInstanceFunc(ctx, params, optFns...)
	}
	return &rds.StopDBInstanceOutput{}, nil
}

func (m *mockRDSClient) StartDBInstance(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error) {
	m.startCalls = append(m.startCalls, params)
	if m.StartDBInstanceFunc != nil {
		return m.StartDBInstanceFunc(ctx, params, optFns...)
	}
	return &rds.StartDBInstanceOutput{}, nil
}

// mockEC2Client implements EC2API for testing.
type mockEC2Client struct {
	DescribeInstancesFunc func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstancesFunc    func(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstancesFunc     func(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)

	startCalls int
	stopCalls  int
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	m.startCalls++
	if m.StartInstancesFunc != nil {
		return m.StartInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.StartInstancesOutput{}, nil
}

func (m *mockEC2Client) StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	m.stopCalls++
	if m.StopInstancesFunc != nil {
		return m.StopInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.StopInstancesOutput{}, nil
}

// mockAutoScalingClient implements AutoScalingAPI for testing.
type mockAutoScalingClient struct {
	DescribeAutoScalingGroupsFunc func(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	UpdateAutoScalingGroupFunc    func(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)

	updateCalls []*autoscaling.UpdateAutoScalingGroupInput
}

func (m *mockAutoScalingClient) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	if m.DescribeAutoScalingGroupsFunc != nil {
		return m.DescribeAutoScalingGroupsFunc(ctx, params, optFns...)
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{}, nil
}

func (m *mockAutoScalingClient) UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	m.updateCalls = append(m.updateCalls, params)
	if m.UpdateAutoScalingGroupFunc != nil {
		return m.UpdateAutoScalingGroupFunc(ctx, params, optFns...)
	}
	return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
}

// mockClients implements Clients for testing.
type mockClients struct {
	ecs     *mockECSClient
	scaling *mockScalingClient
	rds     *mockRDSClient
	ec2     *mockEC2Client
	asg     *mockAutoScalingClient
	regions []string
}

func (m *mockClients) ECS(region string) ECSAPI {
	m.regions = append(m.regions, region)
	return m.ecs
}

func (m *mockClients) ApplicationAutoScaling(region string) ApplicationAutoScalingAPI {
	return m.scaling
}

func (m *mockClients) RDS(region string) RDSAPI {
	m.regions = append(m.regions, region)
	return m.rds
}

func (m *mockClients) EC2(region string) EC2API {
	return m.ec2
}

func (m *mockClients) AutoScaling(region string) AutoScalingAPI {
	return m.asg
}

package handlers

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/applicationautoscaling"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// ECSAPI defines the ECS operations used by the service handler
type ECSAPI interface {
	DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

// ApplicationAutoScalingAPI defines the Application Auto Scaling operations used for ECS
type ApplicationAutoScalingAPI interface {
	DescribeScalableTargets(ctx context.Context, params *applicationautoscaling.DescribeScalableTargetsInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.DescribeScalableTargetsOutput, error)
	RegisterScalableTarget(ctx context.Context, params *applicationautoscaling.RegisterScalableTargetInput, optFns ...func(*applicationautoscaling.Options)) (*applicationautoscaling.RegisterScalableTargetOutput, error)
}

// RDSAPI defines the RDS operations used by the instance handler
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	StopDBInstance(ctx context.Context, params *rds.StopDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	StartDBInstance(ctx context.Context, params *rds.StartDBInstanceInput, optFns ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
}

// EC2API defines the EC2 operations used by the instance handler
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// AutoScalingAPI defines the EC2 Auto Scaling operations used by the group handler
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
}

// Clients hands out regional API clients to handlers
type Clients interface {
	ECS(region string) ECSAPI
	ApplicationAutoScaling(region string) ApplicationAutoScalingAPI
	RDS(region string) RDSAPI
	EC2(region string) EC2API
	AutoScaling(region string) AutoScalingAPI
}

// AWSClients builds SDK clients from a shared AWS config.
// An empty region keeps the config's default region.
type AWSClients struct {
	cfg aws.Config
}

// NewAWSClients creates a client provider from an AWS config
func NewAWSClients(cfg aws.Config) *AWSClients {
	return &AWSClients{cfg: cfg}
}

func (c *AWSClients) ECS(region string) ECSAPI {
	return ecs.NewFromConfig(c.cfg, func(o *ecs.Options) { setRegion(&o.Region, region) })
}

func (c *AWSClients) ApplicationAutoScaling(region string) ApplicationAutoScalingAPI {
	return applicationautoscaling.NewFromConfig(c.cfg, func(o *applicationautoscaling.Options) { setRegion(&o.Region, region) })
}

func (c *AWSClients) RDS(region string) RDSAPI {
	return rds.NewFromConfig(c.cfg, func(o *rds.Options) { setRegion(&o.Region, region) })
}

func (c *AWSClients) EC2(region string) EC2API {
	return ec2.NewFromConfig(c.cfg, func(o *ec2.Options) { setRegion(&o.Region, region) })
}

func (c *AWSClients) AutoScaling(region string) AutoScalingAPI {
	return autoscaling.NewFromConfig(c.cfg, func(o *autoscaling.Options) { setRegion(&o.Region, region) })
}

func setRegion(dst *string, region string) {
	if region != "" {
		*dst = region
	}
}

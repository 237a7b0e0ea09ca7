package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Execution strategies
const (
	StrategySequential      = "sequential"
	StrategyParallel        = "parallel"
	StrategyGroupedParallel = "grouped-parallel"
)

// ECS stop modes
const (
	StopModeScaleToZero   = "scale_to_zero"
	StopModeReduceByCount = "reduce_by_count"
	StopModeReduceToCount = "reduce_to_count"
)

// DiscoveryMethodTags is the only supported discovery method
const DiscoveryMethodTags = "tags"

// Config represents the main configuration
type Config struct {
	Version          string                    `yaml:"version"`
	Environment      string                    `yaml:"environment"`
	Regions          []string                  `yaml:"regions" validate:"dive,required"`
	Discovery        Discovery                 `yaml:"discovery"`
	Settings         Settings                  `yaml:"settings"`
	Policy           Policy                    `yaml:"policy,omitempty"`
	Reporting        Reporting                 `yaml:"reporting,omitempty"`
	Schedules        map[string]ScheduleConfig `yaml:"schedules,omitempty" validate:"dive"`
	ResourceDefaults ResourceDefaults          `yaml:"resource_defaults,omitempty"`
}

// Discovery selects which resources are managed
type Discovery struct {
	Method        string            `yaml:"method"`
	Tags          map[string]string `yaml:"tags"`
	ResourceTypes []string          `yaml:"resource_types"`
	ExcludeTags   map[string]string `yaml:"exclude_tags,omitempty"`
}

// Settings control how a run executes
type Settings struct {
	ExecutionStrategy string `yaml:"execution_strategy" validate:"oneof=sequential parallel grouped-parallel"`
	MaxConcurrency    int    `yaml:"max_concurrency" validate:"gte=0"`
	DryRun            bool   `yaml:"dry_run"`
	LogLevel          string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Policy lists Rego modules guarding actions
type Policy struct {
	Files []string `yaml:"files,omitempty" validate:"dive,required"`
}

// Reporting configures where run reports go
type Reporting struct {
	HistoryPath      string `yaml:"history_path,omitempty"`
	// HistoryRetention keeps the newest N runs; 0 keeps everything
	HistoryRetention int    `yaml:"history_retention,omitempty" validate:"gte=0"`
	S3Bucket         string `yaml:"s3_bucket,omitempty"`
	S3Prefix         string `yaml:"s3_prefix,omitempty"`
}

// ScheduleConfig is the work-hours window for one group.
// WorkDays uses 0 = Monday.
type ScheduleConfig struct {
	Timezone string `yaml:"timezone"`
	WorkDays []int  `yaml:"work_days" validate:"dive,gte=0,lte=6"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
}

// ResourceDefaults holds per-type options keyed by resource type.
// A nil entry means the handler uses its built-in defaults.
type ResourceDefaults struct {
	ECSService       *ECSServiceDefaults       `yaml:"ecs-service,omitempty"`
	RDSInstance      *RDSInstanceDefaults      `yaml:"rds-instance,omitempty"`
	EC2Instance      *EC2InstanceDefaults      `yaml:"ec2-instance,omitempty"`
	AutoScalingGroup *AutoScalingGroupDefaults `yaml:"autoscaling-group,omitempty"`
}

// WaitOptions are shared by every handler that can poll for a terminal state
type WaitOptions struct {
	WaitForStable        bool `yaml:"wait_for_stable"`
	StableTimeoutSeconds int  `yaml:"stable_timeout_seconds" validate:"gte=0"`
	PollIntervalSeconds  int  `yaml:"poll_interval_seconds" validate:"gte=0"`
}

// StableTimeout returns the wait bound
func (w WaitOptions) StableTimeout() time.Duration {
	return time.Duration(w.StableTimeoutSeconds) * time.Second
}

// PollInterval returns the delay between polls
func (w WaitOptions) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

func (w WaitOptions) withDefaults(timeout, poll int) WaitOptions {
	if w.StableTimeoutSeconds == 0 {
		w.StableTimeoutSeconds = timeout
	}
	if w.PollIntervalSeconds == 0 {
		w.PollIntervalSeconds = poll
	}
	return w
}

// ECSServiceDefaults configures the ECS service handler
type ECSServiceDefaults struct {
	WaitOptions                `yaml:",inline"`
	DefaultDesiredCount        *int32           `yaml:"default_desired_count,omitempty" validate:"omitempty,gte=0"`
	StrictAutoScalingDetection bool             `yaml:"strict_auto_scaling_detection"`
	StopBehavior               StopBehavior     `yaml:"stop_behavior"`
	AutoScaling                *AutoScalingSpec `yaml:"auto_scaling,omitempty"`
}

// StopBehavior selects how a directly scaled service is stopped
type StopBehavior struct {
	Mode  string `yaml:"mode" validate:"omitempty,oneof=scale_to_zero reduce_by_count reduce_to_count"`
	Count int32  `yaml:"count" validate:"gte=0"`
}

// AutoScalingSpec is the capacity registered on start when auto scaling owns the service
type AutoScalingSpec struct {
	MinCapacity  int32 `yaml:"min_capacity" validate:"gte=0"`
	MaxCapacity  int32 `yaml:"max_capacity" validate:"gtefield=MinCapacity"`
	DesiredCount int32 `yaml:"desired_count" validate:"gtefield=MinCapacity,ltefield=MaxCapacity"`
}

// RDSInstanceDefaults configures the RDS instance handler
type RDSInstanceDefaults struct {
	WaitOptions             `yaml:",inline"`
	SkipSnapshot            *bool `yaml:"skip_snapshot,omitempty"`
	ConfirmInitiatedSeconds int   `yaml:"confirm_initiated_seconds" validate:"gte=0"`
}

// SkipsSnapshot reports whether stop skips the snapshot; unset means skip
func (d RDSInstanceDefaults) SkipsSnapshot() bool {
	return d.SkipSnapshot == nil || *d.SkipSnapshot
}

// ConfirmInitiated returns the fire-and-forget confirmation window
func (d RDSInstanceDefaults) ConfirmInitiated() time.Duration {
	return time.Duration(d.ConfirmInitiatedSeconds) * time.Second
}

// EC2InstanceDefaults configures the EC2 instance handler
type EC2InstanceDefaults struct {
	WaitOptions `yaml:",inline"`
}

// AutoScalingGroupDefaults configures the Auto Scaling group handler
type AutoScalingGroupDefaults struct {
	WaitOptions   `yaml:",inline"`
	StartCapacity *GroupCapacity `yaml:"start_capacity,omitempty"`
}

// GroupCapacity is the size an Auto Scaling group is restored to on start
type GroupCapacity struct {
	MinSize         int32 `yaml:"min_size" validate:"gte=0"`
	MaxSize         int32 `yaml:"max_size" validate:"gtefield=MinSize"`
	DesiredCapacity int32 `yaml:"desired_capacity" validate:"gtefield=MinSize,ltefield=MaxSize"`
}

// ECS returns the ECS defaults with built-in values filled in
func (r ResourceDefaults) ECS() ECSServiceDefaults {
	var d ECSServiceDefaults
	if r.ECSService != nil {
		d = *r.ECSService
	}
	d.WaitOptions = d.WaitOptions.withDefaults(300, 15)
	if d.DefaultDesiredCount == nil {
		one := int32(1)
		d.DefaultDesiredCount = &one
	}
	if d.StopBehavior.Mode == "" {
		d.StopBehavior.Mode = StopModeScaleToZero
	}
	return d
}

// RDS returns the RDS defaults with built-in values filled in
func (r ResourceDefaults) RDS() RDSInstanceDefaults {
	var d RDSInstanceDefaults
	if r.RDSInstance != nil {
		d = *r.RDSInstance
	}
	d.WaitOptions = d.WaitOptions.withDefaults(600, 30)
	return d
}

// EC2 returns the EC2 defaults with built-in values filled in
func (r ResourceDefaults) EC2() EC2InstanceDefaults {
	var d EC2InstanceDefaults
	if r.EC2Instance != nil {
		d = *r.EC2Instance
	}
	d.WaitOptions = d.WaitOptions.withDefaults(300, 15)
	return d
}

// ASG returns the Auto Scaling group defaults with built-in values filled in
func (r ResourceDefaults) ASG() AutoScalingGroupDefaults {
	var d AutoScalingGroupDefaults
	if r.AutoScalingGroup != nil {
		d = *r.AutoScalingGroup
	}
	d.WaitOptions = d.WaitOptions.withDefaults(300, 15)
	return d
}

// LoadFile loads configuration from a YAML or JSON file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a configuration document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills settings left empty by the document
func (c *Config) ApplyDefaults() {
	if c.Discovery.Method == "" {
		c.Discovery.Method = DiscoveryMethodTags
	}
	if c.Settings.ExecutionStrategy == "" {
		c.Settings.ExecutionStrategy = StrategyGroupedParallel
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
	if c.Reporting.S3Bucket != "" && c.Reporting.S3Prefix == "" {
		c.Reporting.S3Prefix = "lightsout/runs"
	}
	for group, s := range c.Schedules {
		c.Schedules[group] = s.withDefaults()
	}
}

func (s ScheduleConfig) withDefaults() ScheduleConfig {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if len(s.WorkDays) == 0 {
		s.WorkDays = []int{0, 1, 2, 3, 4}
	}
	if s.Start == "" {
		s.Start = "09:00"
	}
	if s.End == "" {
		s.End = "17:00"
	}
	return s
}

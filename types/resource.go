package types

import (
	"strconv"
	"strings"
)

// Tag keys read from managed resources
const (
	TagPriority = "lights-out:priority"
	TagGroup    = "lights-out:group"
)

// Defaults applied when a resource carries no (or an unusable) tag
const (
	DefaultPriority = 50
	DefaultGroup    = "default"
	DefaultCluster  = "default"
)

// Canonical resource type identifiers
const (
	ResourceTypeECSService       = "ecs-service"
	ResourceTypeRDSInstance      = "rds-instance"
	ResourceTypeRDSCluster       = "rds-cluster"
	ResourceTypeEC2Instance      = "ec2-instance"
	ResourceTypeAutoScalingGroup = "autoscaling-group"
)

// DiscoveredResource is one managed unit found by discovery.
// It is built once per discovery call and never mutated afterwards.
type DiscoveredResource struct {
	ResourceType string            `json:"resource_type"`
	ARN          string            `json:"arn"`
	ResourceID   string            `json:"resource_id"`
	Priority     int               `json:"priority"`
	Group        string            `json:"group"`
	Region       string            `json:"region,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Metadata     ResourceMetadata  `json:"metadata"`
}

// ResourceMetadata holds the fields a handler extracts from the ARN.
// Only the variant matching the resource type is set.
type ResourceMetadata struct {
	Service *ServiceMetadata `json:"service,omitempty"`
}

// ServiceMetadata is set for ECS services
type ServiceMetadata struct {
	ClusterName string `json:"cluster_name"`
}

// ClusterName returns the ECS cluster, or "default" when none was parsed
func (r DiscoveredResource) ClusterName() string {
	if r.Metadata.Service == nil || r.Metadata.Service.ClusterName == "" {
		return DefaultCluster
	}
	return r.Metadata.Service.ClusterName
}

// PriorityFromTags reads the priority tag. ok is false when the tag is
// present but not an integer; the default is returned in that case.
func PriorityFromTags(tags map[string]string) (priority int, ok bool) {
	raw, exists := tags[TagPriority]
	if !exists {
		return DefaultPriority, true
	}
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPriority, false
	}
	return p, true
}

// GroupFromTags reads the group tag
func GroupFromTags(tags map[string]string) string {
	if g, ok := tags[TagGroup]; ok && g != "" {
		return g
	}
	return DefaultGroup
}

// ResourceStatus is the snapshot of a resource's state taken before an operation
type ResourceStatus struct {
	State        string `json:"state"`
	Stopped      bool   `json:"is_stopped"`
	DesiredCount *int32 `json:"desired_count,omitempty"`
	RunningCount *int32 `json:"running_count,omitempty"`
	MinSize      *int32 `json:"min_size,omitempty"`
	MaxSize      *int32 `json:"max_size,omitempty"`
}

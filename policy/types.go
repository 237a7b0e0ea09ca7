package policy

import "github.com/yairfalse/lightsout/types"

// Decision is the guard's verdict for one action on one resource
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// Input is the document passed to Rego as `input`
type Input struct {
	Action      string        `json:"action"`
	Environment string        `json:"environment,omitempty"`
	Resource    ResourceInput `json:"resource"`
}

// ResourceInput is the policy-facing view of a discovered resource
type ResourceInput struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	ARN      string            `json:"arn"`
	Priority int               `json:"priority"`
	Group    string            `json:"group"`
	Region   string            `json:"region"`
	Tags     map[string]string `json:"tags"`
}

// NewInput builds the policy input for an action on a resource
func NewInput(action types.Action, environment string, res types.DiscoveredResource) Input {
	tags := res.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return Input{
		Action:      string(action),
		Environment: environment,
		Resource: ResourceInput{
			Type:     res.ResourceType,
			ID:       res.ResourceID,
			ARN:      res.ARN,
			Priority: res.Priority,
			Group:    res.Group,
			Region:   res.Region,
			Tags:     tags,
		},
	}
}

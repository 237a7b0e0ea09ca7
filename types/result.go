package types

import (
	"fmt"
	"time"
)

// Action is an operation requested of the orchestrator
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionStatus   Action = "status"
	ActionDiscover Action = "discover"
)

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionStatus, ActionDiscover:
		return a, nil
	default:
		return "", fmt.Errorf("invalid action %q (valid: start, stop, status, discover)", s)
	}
}

// Mutating reports whether the action changes resource state
func (a Action) Mutating() bool {
	return a == ActionStart || a == ActionStop
}

// Error codes carried in HandlerResult.Error
const (
	ErrCodeHandlerNotFound          = "HANDLER_NOT_FOUND"
	ErrCodeInvalidState             = "INVALID_STATE"
	ErrCodeAutoScalingConfigMissing = "AUTOSCALING_CONFIG_MISSING"
	ErrCodeCapacityConfigMissing    = "CAPACITY_CONFIG_MISSING"
	ErrCodePolicyDenied             = "POLICY_DENIED"
)

// HandlerResult is the outcome of one operation on one resource
type HandlerResult struct {
	Success       bool            `json:"success"`
	Action        Action          `json:"action"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	Message       string          `json:"message"`
	PreviousState *ResourceStatus `json:"previous_state,omitempty"`
	Error         string          `json:"error,omitempty"`
	Idempotent    bool            `json:"idempotent,omitempty"`
	DryRun        bool            `json:"dry_run,omitempty"`
	Region        string          `json:"region,omitempty"`
}

// OrchestrationResult summarizes one run
type OrchestrationResult struct {
	RunID     string          `json:"run_id"`
	Action    Action          `json:"action"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []HandlerResult `json:"results"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// NewOrchestrationResult derives the totals from the flattened results
func NewOrchestrationResult(action Action, results []HandlerResult) *OrchestrationResult {
	out := &OrchestrationResult{
		Action:  action,
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out
}

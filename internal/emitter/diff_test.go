package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lightsout/types"
)

func result(action types.Action, id string, success bool) types.HandlerResult {
	return types.HandlerResult{
		Success:      success,
		Action:       action,
		ResourceType: "ecs-service",
		ResourceID:   id,
		Region:       "us-east-1",
	}
}

func TestObservedState(t *testing.T) {
	tests := []struct {
		name   string
		result types.HandlerResult
		want   string
		ok     bool
	}{
		{"stop", result(types.ActionStop, "a", true), StateStopped, true},
		{"start", result(types.ActionStart, "a", true), StateRunning, true},
		{"failed", result(types.ActionStop, "a", false), "", false},
		{"dry run", types.HandlerResult{Success: true, Action: types.ActionStop, DryRun: true}, "", false},
		{"status without state", result(types.ActionStatus, "a", true), "", false},
		{
			"status stopped",
			types.HandlerResult{Success: true, Action: types.ActionStatus, PreviousState: &types.ResourceStatus{Stopped: true}},
			StateStopped, true,
		},
		{
			"status running",
			types.HandlerResult{Success: true, Action: types.ActionStatus, PreviousState: &types.ResourceStatus{State: "available"}},
			StateRunning, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ObservedState(tt.result)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateTracker_FirstRunIsBaseline(t *testing.T) {
	tracker := NewStateTracker()

	transitions := tracker.Update([]types.HandlerResult{
		result(types.ActionStart, "a", true),
		result(types.ActionStart, "b", true),
	})

	assert.Empty(t, transitions)
	state, ok := tracker.State("us-east-1/ecs-service/a")
	require.True(t, ok)
	assert.Equal(t, StateRunning, state)
}

func TestStateTracker_DetectsTransitions(t *testing.T) {
	tracker := NewStateTracker()
	tracker.Update([]types.HandlerResult{
		result(types.ActionStart, "a", true),
		result(types.ActionStart, "b", true),
	})

	transitions := tracker.Update([]types.HandlerResult{
		result(types.ActionStop, "a", true),
		result(types.ActionStop, "b", false),
		result(types.ActionStop, "c", true),
	})

	require.Len(t, transitions, 1)
	assert.Equal(t, "a", transitions[0].ResourceID)
	assert.Equal(t, StateRunning, transitions[0].From)
	assert.Equal(t, StateStopped, transitions[0].To)

	state, _ := tracker.State("us-east-1/ecs-service/b")
	assert.Equal(t, StateRunning, state, "failed stop keeps the last known state")
}

func TestStateTracker_SameStateNoTransition(t *testing.T) {
	tracker := NewStateTracker()
	tracker.Update([]types.HandlerResult{result(types.ActionStop, "a", true)})

	transitions := tracker.Update([]types.HandlerResult{result(types.ActionStop, "a", true)})
	assert.Empty(t, transitions)
}

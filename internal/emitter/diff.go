package emitter

import (
	"sync"

	"github.com/yairfalse/lightsout/types"
)

// Observed resource states
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// Transition is a change in a resource's observed state between runs.
type Transition struct {
	Key          string
	ResourceType string
	ResourceID   string
	Region       string
	From         string
	To           string
}

// StateTracker remembers the last observed state of each resource across
// reports and detects transitions.
type StateTracker struct {
	mu     sync.RWMutex
	states map[string]trackedState
}

type trackedState struct {
	resourceType string
	resourceID   string
	region       string
	state        string
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[string]trackedState)}
}

// ResultKey identifies a resource across runs.
func ResultKey(r types.HandlerResult) string {
	return r.Region + "/" + r.ResourceType + "/" + r.ResourceID
}

// ObservedState derives the state a result leaves the resource in.
// Failed and dry-run results say nothing about the resource.
func ObservedState(r types.HandlerResult) (string, bool) {
	if !r.Success || r.DryRun {
		return "", false
	}

	switch r.Action {
	case types.ActionStop:
		return StateStopped, true
	case types.ActionStart:
		return StateRunning, true
	case types.ActionStatus:
		if r.PreviousState == nil {
			return "", false
		}
		if r.PreviousState.Stopped {
			return StateStopped, true
		}
		return StateRunning, true
	}
	return "", false
}

// Update applies a run's results and returns the transitions it caused.
// Resources seen for the first time establish a baseline and are not
// reported as transitions.
func (t *StateTracker) Update(results []types.HandlerResult) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var transitions []Transition
	for _, r := range results {
		state, ok := ObservedState(r)
		if !ok {
			continue
		}

		key := ResultKey(r)
		prev, seen := t.states[key]
		if seen && prev.state != state {
			transitions = append(transitions, Transition{
				Key:          key,
				ResourceType: r.ResourceType,
				ResourceID:   r.ResourceID,
				Region:       r.Region,
				From:         prev.state,
				To:           state,
			})
		}

		t.states[key] = trackedState{
			resourceType: r.ResourceType,
			resourceID:   r.ResourceID,
			region:       r.Region,
			state:        state,
		}
	}
	return transitions
}

// State returns the last observed state for a key.
func (t *StateTracker) State(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.states[key]
	return s.state, ok
}

// each calls fn for every tracked resource.
func (t *StateTracker) each(fn func(s trackedState)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.states {
		fn(s)
	}
}

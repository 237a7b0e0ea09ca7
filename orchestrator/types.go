package orchestrator

import (
	"context"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/handlers"
	"github.com/yairfalse/lightsout/internal/emitter"
	"github.com/yairfalse/lightsout/policy"
	"github.com/yairfalse/lightsout/types"
)

// Discoverer finds the resources a run acts on
type Discoverer interface {
	Discover(ctx context.Context) ([]types.DiscoveredResource, error)
}

// HandlerProvider resolves a handler for a discovered resource
type HandlerProvider interface {
	Get(resourceType string, res types.DiscoveredResource, cfg *config.Config) (handlers.Handler, bool)
}

// Guard can veto a mutating action on a resource
type Guard interface {
	Check(ctx context.Context, action types.Action, res types.DiscoveredResource) (policy.Decision, error)
}

// Reporter receives the finished run
type Reporter interface {
	Emit(ctx context.Context, report emitter.Report) error
}

// PriorityGroup is a contiguous run of resources sharing one priority
type PriorityGroup struct {
	Priority  int
	Resources []types.DiscoveredResource
}

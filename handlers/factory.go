package handlers

import (
	"sort"
	"sync"

	"github.com/yairfalse/lightsout/config"
	"github.com/yairfalse/lightsout/types"
)

// Constructor builds a handler for one discovered resource
type Constructor func(res types.DiscoveredResource, cfg *config.Config, clients Clients) Handler

// Factory maps resource types to handler constructors
type Factory struct {
	mu           sync.RWMutex
	clients      Clients
	constructors map[string]Constructor
}

// NewFactory creates a factory with every built-in handler registered
func NewFactory(clients Clients) *Factory {
	f := &Factory{
		clients:      clients,
		constructors: make(map[string]Constructor),
	}

	f.Register(types.ResourceTypeECSService, func(res types.DiscoveredResource, cfg *config.Config, c Clients) Handler {
		return NewECSServiceHandler(res, cfg.ResourceDefaults.ECS(), c.ECS(res.Region), c.ApplicationAutoScaling(res.Region))
	})
	f.Register(types.ResourceTypeRDSInstance, func(res types.DiscoveredResource, cfg *config.Config, c Clients) Handler {
		return NewRDSInstanceHandler(res, cfg.ResourceDefaults.RDS(), c.RDS(res.Region))
	})
	f.Register(types.ResourceTypeEC2Instance, func(res types.DiscoveredResource, cfg *config.Config, c Clients) Handler {
		return NewEC2InstanceHandler(res, cfg.ResourceDefaults.EC2(), c.EC2(res.Region))
	})
	f.Register(types.ResourceTypeAutoScalingGroup, func(res types.DiscoveredResource, cfg *config.Config, c Clients) Handler {
		return NewAutoScalingGroupHandler(res, cfg.ResourceDefaults.ASG(), c.AutoScaling(res.Region))
	})

	return f
}

// Register adds or replaces the constructor for a resource type
func (f *Factory) Register(resourceType string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[resourceType] = c
}

// Get returns a handler for the resource, or false when the type is unsupported
func (f *Factory) Get(resourceType string, res types.DiscoveredResource, cfg *config.Config) (Handler, bool) {
	f.mu.RLock()
	c, ok := f.constructors[resourceType]
	f.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return c(res, cfg, f.clients), true
}

// Types lists the registered resource types in sorted order
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.constructors))
	for t := range f.constructors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

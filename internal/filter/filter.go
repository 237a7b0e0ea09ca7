// Package filter narrows discovered resources on the client side.
package filter

import (
	"github.com/yairfalse/lightsout/types"
)

// Filter controls which groups are acted on and which tagged resources are skipped.
type Filter struct {
	groups      map[string]bool
	includeTags map[string]string
	excludeTags map[string]string
}

// New creates a new Filter. An empty groups list admits every group.
func New(groups []string, includeTags, excludeTags map[string]string) *Filter {
	groupSet := make(map[string]bool)
	for _, g := range groups {
		groupSet[g] = true
	}

	return &Filter{
		groups:      groupSet,
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// ShouldIncludeGroup returns true if resources in the group should be acted on.
func (f *Filter) ShouldIncludeGroup(group string) bool {
	return len(f.groups) == 0 || f.groups[group]
}

// ShouldIncludeResource returns true if the resource passes group and tag filters.
func (f *Filter) ShouldIncludeResource(r types.DiscoveredResource) bool {
	if !f.ShouldIncludeGroup(r.Group) {
		return false
	}

	// ALL include tags must match
	for k, v := range f.includeTags {
		if r.Tags == nil || r.Tags[k] != v {
			return false
		}
	}

	// ANY exclude tag match excludes
	for k, v := range f.excludeTags {
		if r.Tags != nil && r.Tags[k] == v {
			return false
		}
	}

	return true
}

// FilterResources returns only resources that pass the filter, in their original order.
func (f *Filter) FilterResources(resources []types.DiscoveredResource) []types.DiscoveredResource {
	if f.IsEmpty() {
		return resources
	}

	filtered := make([]types.DiscoveredResource, 0, len(resources))
	for _, r := range resources {
		if f.ShouldIncludeResource(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// IsEmpty returns true if no filters are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.groups) == 0 && len(f.includeTags) == 0 && len(f.excludeTags) == 0
}

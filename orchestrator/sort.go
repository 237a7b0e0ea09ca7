package orchestrator

import (
	"sort"

	"github.com/yairfalse/lightsout/types"
)

// SortForAction orders resources for an action. start runs low priority
// values first, stop runs them last, anything else keeps discovery order.
// Ties keep their discovery order. The input slice is not modified.
func SortForAction(resources []types.DiscoveredResource, action types.Action) []types.DiscoveredResource {
	sorted := make([]types.DiscoveredResource, len(resources))
	copy(sorted, resources)

	switch action {
	case types.ActionStart:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority < sorted[j].Priority
		})
	case types.ActionStop:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Priority > sorted[j].Priority
		})
	}
	return sorted
}

// GroupByPriority partitions an already sorted list into contiguous runs of
// equal priority. It never reorders.
func GroupByPriority(sorted []types.DiscoveredResource) []PriorityGroup {
	var groups []PriorityGroup
	for _, r := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Priority == r.Priority {
			groups[n-1].Resources = append(groups[n-1].Resources, r)
			continue
		}
		groups = append(groups, PriorityGroup{
			Priority:  r.Priority,
			Resources: []types.DiscoveredResource{r},
		})
	}
	return groups
}

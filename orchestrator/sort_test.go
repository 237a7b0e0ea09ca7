package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/lightsout/types"
)

func ids(resources []types.DiscoveredResource) []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = r.ResourceID
	}
	return out
}

func TestSortForAction(t *testing.T) {
	resources := []types.DiscoveredResource{
		service("c50", 50),
		service("a10", 10),
		service("d50", 50),
		service("b30", 30),
		service("e10", 10),
	}

	tests := []struct {
		action types.Action
		want   []string
	}{
		{types.ActionStart, []string{"a10", "e10", "b30", "c50", "d50"}},
		{types.ActionStop, []string{"c50", "d50", "b30", "a10", "e10"}},
		{types.ActionStatus, []string{"c50", "a10", "d50", "b30", "e10"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(SortForAction(resources, tt.action)))
		})
	}

	assert.Equal(t, "c50", resources[0].ResourceID, "input is not modified")
}

func TestGroupByPriority(t *testing.T) {
	sorted := SortForAction([]types.DiscoveredResource{
		service("x", 50),
		service("y", 10),
		service("z", 50),
	}, types.ActionStop)

	groups := GroupByPriority(sorted)
	assert.Len(t, groups, 2)
	assert.Equal(t, 50, groups[0].Priority)
	assert.Equal(t, []string{"x", "z"}, ids(groups[0].Resources))
	assert.Equal(t, 10, groups[1].Priority)
	assert.Equal(t, []string{"y"}, ids(groups[1].Resources))

	assert.Empty(t, GroupByPriority(nil))
}

func TestGroupByPriority_ContiguousOnly(t *testing.T) {
	// groups partition contiguous runs and never re-sort
	groups := GroupByPriority([]types.DiscoveredResource{
		service("a", 10),
		service("b", 20),
		service("c", 10),
	})
	assert.Len(t, groups, 3)
}

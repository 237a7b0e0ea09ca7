package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/lightsout/types"
)

func openTestStore(t *testing.T) (*HistoryStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history", "lightsout.db")
	store, err := OpenHistoryStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func testRun(id string, action types.Action, started time.Time) RunRecord {
	result := types.NewOrchestrationResult(action, []types.HandlerResult{
		{Success: true, Action: action, ResourceType: "ecs-service", ResourceID: "main/api"},
		{Success: false, Action: action, ResourceType: "rds-instance", ResourceID: "orders", Error: "INVALID_STATE"},
	})
	result.RunID = id
	result.StartedAt = started
	result.Duration = 3 * time.Second
	return RunRecord{Group: "default", Strategy: "grouped-parallel", Result: *result}
}

func TestHistoryStore_RecordAndGet(t *testing.T) {
	store, _ := openTestStore(t)
	started := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

	rev, err := store.RecordRun(testRun("run-1", types.ActionStart, started))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	rec, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Revision)
	assert.Equal(t, "default", rec.Group)
	assert.Equal(t, types.ActionStart, rec.Result.Action)
	assert.Equal(t, 2, rec.Result.Total)
	assert.Equal(t, 1, rec.Result.Failed)
	assert.True(t, started.Equal(rec.Result.StartedAt))
	require.Len(t, rec.Result.Results, 2)
	assert.Equal(t, "INVALID_STATE", rec.Result.Results[1].Error)
}

func TestHistoryStore_Errors(t *testing.T) {
	store, _ := openTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.RecordRun(RunRecord{})
	assert.Error(t, err)

	_, err = store.RecordRun(testRun("dup", types.ActionStop, time.Now()))
	require.NoError(t, err)
	_, err = store.RecordRun(testRun("dup", types.ActionStop, time.Now()))
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestHistoryStore_ListNewestFirst(t *testing.T) {
	store, _ := openTestStore(t)
	base := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		_, err := store.RecordRun(testRun(fmt.Sprintf("run-%d", i), types.ActionStop, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-5", runs[0].Result.RunID)
	assert.Equal(t, "run-4", runs[1].Result.RunID)
	assert.Equal(t, "run-3", runs[2].Result.RunID)

	all, err := store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "run-1", all[4].Result.RunID)
}

func TestHistoryStore_ReopenRebuildsIndex(t *testing.T) {
	store, path := openTestStore(t)

	for i := 1; i <= 3; i++ {
		_, err := store.RecordRun(testRun(fmt.Sprintf("run-%d", i), types.ActionStart, time.Now()))
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())

	reopened, err := OpenHistoryStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, 3, reopened.Len())
	assert.Equal(t, int64(3), reopened.CurrentRevision())

	rev, err := reopened.RecordRun(testRun("run-4", types.ActionStop, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(4), rev)

	rec, err := reopened.GetRun("run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Revision)
}

func TestHistoryStore_Compact(t *testing.T) {
	store, _ := openTestStore(t)

	for i := 1; i <= 6; i++ {
		_, err := store.RecordRun(testRun(fmt.Sprintf("run-%d", i), types.ActionStart, time.Now()))
		require.NoError(t, err)
	}

	removed, err := store.Compact(4)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 4, store.Len())

	_, err = store.GetRun("run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.GetRun("run-3")
	assert.NoError(t, err)

	removed, err = store.Compact(10)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.Compact(0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// revisions keep counting after compaction
	rev, err := store.RecordRun(testRun("run-7", types.ActionStart, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(7), rev)
}

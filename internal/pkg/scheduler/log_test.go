package scheduler

import (
	"testing"
	"time"

	"github.com/philippgille/gokv/syncmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestLogWriteAndQuery(t *testing.T) {
	store := syncmap.NewStore(syncmap.DefaultOptions)
	defer store.Close()

	hl, err := OpenHarvestLog(store)
	require.NoError(t, err)

	base := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	require.NoError(t, hl.Write(&LogEntry{ID: "a", ScheduleUID: "u1", StartTime: base, Status: StatusCompletedOK}))
	require.NoError(t, hl.Write(&LogEntry{ID: "b", ScheduleUID: "u2", StartTime: base.Add(time.Hour), Status: StatusCompletedOK}))
	require.NoError(t, hl.Write(&LogEntry{ID: "c", ScheduleUID: "u1", StartTime: base.Add(2 * time.Hour), Status: StatusCompletedSeriousError}))

	entry, found, err := hl.Get("b")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u2", entry.ScheduleUID)

	_, found, err = hl.Get("nope")
	require.NoError(t, err)
	assert.False(t, found)

	all, err := hl.Query("")
	require.NoError(t, err)
	require.Len(t, all, 3)

	// Newest first.
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	u1, err := hl.Query("u1")
	require.NoError(t, err)
	require.Len(t, u1, 2)
	assert.Equal(t, "c", u1[0].ID)
}

func TestHarvestLogRewriteUpdatesEntry(t *testing.T) {
	store := syncmap.NewStore(syncmap.DefaultOptions)
	defer store.Close()

	hl, err := OpenHarvestLog(store)
	require.NoError(t, err)

	entry := &LogEntry{ID: "a", StartTime: time.Now(), Status: StatusInProgress}
	require.NoError(t, hl.Write(entry))

	entry.Status = StatusCompletedOK
	entry.RecordCount = 7
	require.NoError(t, hl.Write(entry))

	all, err := hl.Query("")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, StatusCompletedOK, all[0].Status)
	assert.Equal(t, 7, all[0].RecordCount)
}

func TestHarvestLogCrashRecovery(t *testing.T) {
	store := syncmap.NewStore(syncmap.DefaultOptions)
	defer store.Close()

	hl, err := OpenHarvestLog(store)
	require.NoError(t, err)
	require.NoError(t, hl.Write(&LogEntry{ID: "done", StartTime: time.Now(), Status: StatusCompletedOK}))
	require.NoError(t, hl.Write(&LogEntry{ID: "stuck", StartTime: time.Now(), Status: StatusInProgress}))

	// Reopening the log simulates a restart: the entry still in
	// progress can never complete and must be marked failed.
	hl2, err := OpenHarvestLog(store)
	require.NoError(t, err)

	entry, found, err := hl2.Get("stuck")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompletedSeriousError, entry.Status)
	assert.NotEmpty(t, entry.Message)

	entry, found, err = hl2.Get("done")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusCompletedOK, entry.Status)
}

package plugin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/interceptor"
)

func initTest(t *testing.T) {
	t.Helper()
	require.NoError(t, Init(backupcoord.DefaultConfig(), interceptor.Config{
		Enabled:        true,
		BufferCapacity: 64,
		WorkerCount:    2,
		DequeueTimeout: 20 * time.Millisecond,
	}, nil))
	t.Cleanup(func() { _ = Cleanup() })
}

func TestNameAndVersion(t *testing.T) {
	require.Equal(t, "incremental_bitmap_backup", Name())
	require.Equal(t, "1.0.0", Version())
}

func TestInitRejectsDoubleInit(t *testing.T) {
	initTest(t)
	err := Init(backupcoord.DefaultConfig(), interceptor.Config{BufferCapacity: 4}, nil)
	require.Error(t, err)
}

func TestOperationsBeforeInitFail(t *testing.T) {
	_, err := GetDirtyBlocks(0, 100, make([]uint64, 10), 10)
	require.Error(t, err)
}

func TestFullLifecycleThroughEventsToBackup(t *testing.T) {
	initTest(t)

	require.NoError(t, OnBlockUpdate(1, 100, 1000))
	require.NoError(t, OnBlockUpdate(2, 200, 2000))

	require.Eventually(t, func() bool {
		n, err := GetDirtyBlocks(0, 10000, make([]uint64, 10), 10)
		return err == nil && n == 2
	}, time.Second, time.Millisecond)

	handle, err := CreateIncrementalCursor(backupcoord.CursorWAL, 0, 0, 0, 10000)
	require.NoError(t, err)

	out := make([]uint64, 10)
	n, err := GetNextBatch(handle, out, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, DestroyCursor(handle))

	blocks, bytes, err := EstimateBackupSize(0, 10000, 512)
	require.NoError(t, err)
	require.EqualValues(t, 2, blocks)
	require.EqualValues(t, 1024, bytes)

	require.NoError(t, ValidateBackup(0, 10000, []uint64{1, 2}))

	meta, err := GenerateMetadata(0, 10000, 512)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(meta, &decoded))
	require.EqualValues(t, 2, decoded["block_count"])
}

func TestErrorStatsAndClear(t *testing.T) {
	initTest(t)
	require.Equal(t, "", GetLastError())
	n, retries := GetErrorStats()
	require.Equal(t, 0, n)
	require.EqualValues(t, 0, retries)
	ClearError() // must not panic with a nil log
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

func newEngine() *Engine { return New(Config{}) }

func TestMaxBlocksRejectsAdmissionPastCapacity(t *testing.T) {
	e := New(Config{MaxBlocks: 2})
	require.NoError(t, e.MarkNew(1, 100, 1))
	require.NoError(t, e.MarkNew(2, 101, 2))

	err := e.MarkNew(3, 102, 3)
	require.Error(t, err)
	ee, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.OutOfMemory, ee.Kind)

	// Re-marking an already-tracked block stays under the cap.
	require.NoError(t, e.MarkDirty(1, 103, 4))
}

// Seed scenario 1: basic lifecycle.
func TestBasicLifecycle(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkDirty(1001, 1000, 1_000_000))
	require.Equal(t, Dirty, e.GetState(1001))

	require.NoError(t, e.MarkDeleted(1001, 1001, 2_000_000))
	require.Equal(t, Deleted, e.GetState(1001))

	err := e.MarkDirty(1001, 1002, 3_000_000)
	require.Error(t, err)
	ee, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.InvalidStateTransition, ee.Kind)
}

// Seed scenario 2: range query by WAL offset.
func TestRangeQueryByWAL(t *testing.T) {
	e := newEngine()
	ids := []uint64{1001, 1002, 1003, 1004}
	wals := []uint64{1000, 2000, 3000, 4000}
	for i, id := range ids {
		require.NoError(t, e.MarkDirty(id, wals[i], int64(i)))
	}
	out := make([]uint64, 10)
	n := e.GetDirtyBlocksByWAL(1500, 3500, out, 10)
	require.Equal(t, 2, n)
	require.Equal(t, []uint64{1002, 1003}, out[:n])
}

func TestRangeQueryByTime(t *testing.T) {
	e := newEngine()
	for i, id := range []uint64{1, 2, 3, 4} {
		require.NoError(t, e.MarkDirty(id, uint64(i), int64(i)*1000))
	}
	out := make([]uint64, 10)
	n := e.GetDirtyBlocksByTime(500, 2500, out, 10)
	require.Equal(t, 2, n)
	require.Equal(t, []uint64{2, 3}, out[:n])
}

func TestRangeQueryExcludesStalePostings(t *testing.T) {
	// Old (wal, ts) postings are never eagerly purged; a re-marked block
	// must still be excluded from a query over its old wal range once its
	// current state bitmap no longer contains it at that key.
	e := newEngine()
	require.NoError(t, e.MarkDirty(1, 100, 0))
	require.NoError(t, e.MarkDeleted(1, 200, 1))

	out := make([]uint64, 10)
	n := e.GetDirtyBlocksByWAL(0, 150, out, 10)
	require.Equal(t, 0, n, "block 1 is DELETED now, must not appear as dirty at its old wal posting")
}

func TestClearBlock(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkNew(1, 10, 0))
	require.NoError(t, e.ClearBlock(1))
	require.Equal(t, Clean, e.GetState(1))
	_, ok := e.GetMetadata(1)
	require.False(t, ok)
}

func TestClearBlockNotPermittedFromDeleted(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkDeleted(1, 10, 0))
	err := e.ClearBlock(1)
	require.Error(t, err)
}

func TestGetStats(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkDirty(1, 1, 1))
	require.NoError(t, e.MarkNew(2, 1, 1))
	require.NoError(t, e.MarkDeleted(3, 1, 1))

	st := e.GetStats()
	require.EqualValues(t, 3, st.TotalBlocks)
	require.EqualValues(t, 1, st.Dirty)
	require.EqualValues(t, 1, st.New)
	require.EqualValues(t, 1, st.Deleted)
}

// TestTransitionMatrixExhaustive checks transitionAllowed against an
// explicit table of every (from,to) state pair.
func TestTransitionMatrixExhaustive(t *testing.T) {
	allowed := map[[2]State]bool{
		{Clean, Clean}:   false,
		{Clean, Dirty}:   true,
		{Clean, Created}: true,
		{Clean, Deleted}: true,
		{Dirty, Clean}:   true,
		{Dirty, Dirty}:   false,
		{Dirty, Created}: false,
		{Dirty, Deleted}: true,
		{Created, Clean}: false,
		{Created, Dirty}: true,
		{Created, Created}: false,
		{Created, Deleted}: true,
		{Deleted, Clean}: false,
		{Deleted, Dirty}: false,
		{Deleted, Created}: false,
		{Deleted, Deleted}: false,
	}
	for pair, want := range allowed {
		from, to := pair[0], pair[1]
		got := transitionAllowed(from, to)
		require.Equalf(t, want, got, "transition %s->%s", from, to)
	}
}

func TestInvariantExactlyOneBitmapPerBlock(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkDirty(1, 1, 1))
	require.True(t, e.dirty.Contains(1))
	require.False(t, e.newBm.Contains(1))
	require.False(t, e.deleted.Contains(1))

	require.NoError(t, e.MarkDeleted(1, 2, 2))
	require.False(t, e.dirty.Contains(1))
	require.False(t, e.newBm.Contains(1))
	require.True(t, e.deleted.Contains(1))
}

func TestInvariantMetadataMapSizeEqualsSumOfCardinalities(t *testing.T) {
	e := newEngine()
	for i := uint64(0); i < 20; i++ {
		switch i % 3 {
		case 0:
			require.NoError(t, e.MarkDirty(i, i, int64(i)))
		case 1:
			require.NoError(t, e.MarkNew(i, i, int64(i)))
		case 2:
			require.NoError(t, e.MarkDeleted(i, i, int64(i)))
		}
	}
	st := e.GetStats()
	require.EqualValues(t, st.Dirty+st.New+st.Deleted, st.TotalBlocks)
}

func TestCleanCacheNeverShadowsNonCleanTruth(t *testing.T) {
	e := New(Config{CleanCacheCapacity: 4})
	require.Equal(t, Clean, e.GetState(1)) // populates clean cache
	require.NoError(t, e.MarkDirty(1, 1, 1))
	require.Equal(t, Dirty, e.GetState(1), "mark must invalidate any stale clean-cache entry")
}

package engine

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadSnapshotRoundTrip(t *testing.T) {
	e := newEngine()
	require.NoError(t, e.MarkDirty(1, 100, 10))
	require.NoError(t, e.MarkNew(2, 200, 20))
	require.NoError(t, e.MarkDeleted(3, 300, 30))

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	fs := afero.NewOsFs()
	require.NoError(t, e.SaveSnapshot(fs, path))

	e2 := newEngine()
	require.NoError(t, e2.LoadSnapshot(path))

	require.Equal(t, Dirty, e2.GetState(1))
	require.Equal(t, Created, e2.GetState(2))
	require.Equal(t, Deleted, e2.GetState(3))

	st := e2.GetStats()
	require.EqualValues(t, 3, st.TotalBlocks)

	out := make([]uint64, 10)
	n := e2.GetDirtyBlocksByWAL(50, 150, out, 10)
	require.Equal(t, 1, n)
	require.Equal(t, uint64(1), out[0])
}

func TestLoadSnapshotRejectsBadSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	fs := afero.NewOsFs()
	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e := newEngine()
	err = e.LoadSnapshot(path)
	require.Error(t, err)
}

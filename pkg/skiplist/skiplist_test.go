package skiplist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/bitmap"
)

func TestInsertFind(t *testing.T) {
	s := NewSeeded(1)
	bm := s.Insert(10)
	bm.Add(100)

	got, ok := s.Find(10)
	require.True(t, ok)
	require.True(t, got.Contains(100))

	_, ok = s.Find(11)
	require.False(t, ok)
}

func TestInsertIsIdempotentOnKey(t *testing.T) {
	s := NewSeeded(1)
	bm1 := s.Insert(5)
	bm1.Add(1)
	bm2 := s.Insert(5)
	bm2.Add(2)
	require.Equal(t, 1, s.Len())
	require.True(t, bm1.Contains(1))
	require.True(t, bm1.Contains(2))
}

func TestRemove(t *testing.T) {
	s := NewSeeded(1)
	s.Insert(1)
	s.Insert(2)
	s.Insert(3)
	require.Equal(t, 3, s.Len())
	s.Remove(2)
	require.Equal(t, 2, s.Len())
	_, ok := s.Find(2)
	require.False(t, ok)
	_, ok = s.Find(1)
	require.True(t, ok)
}

func TestForEachOrderingAndBounds(t *testing.T) {
	s := NewSeeded(7)
	for _, k := range []int64{100, 200, 300, 400, 500} {
		s.Insert(k)
	}
	var keys []int64
	s.ForEach(150, 450, false, func(key int64, bm *bitmap.Bitmap) { keys = append(keys, key) })
	require.Equal(t, []int64{200, 300, 400}, keys)

	var rev []int64
	s.ForEach(150, 450, true, func(key int64, bm *bitmap.Bitmap) { rev = append(rev, key) })
	require.Equal(t, []int64{400, 300, 200}, rev)
}

func TestForEachInclusiveBounds(t *testing.T) {
	s := NewSeeded(9)
	for _, k := range []int64{1, 2, 3} {
		s.Insert(k)
	}
	var keys []int64
	s.ForEach(1, 3, false, func(key int64, bm *bitmap.Bitmap) { keys = append(keys, key) })
	require.Equal(t, []int64{1, 2, 3}, keys)
}

func TestNodePoolReuseAfterRemove(t *testing.T) {
	s := NewSeeded(3)
	s.Insert(1)
	s.Remove(1)
	s.Insert(2)
	require.Equal(t, 1, s.Len())
	_, ok := s.Find(2)
	require.True(t, ok)
}

func TestManyInsertsMaintainOrder(t *testing.T) {
	s := NewSeeded(123)
	want := []int64{}
	for i := int64(0); i < 500; i++ {
		k := (i * 37) % 500
		s.Insert(k)
	}
	for i := int64(0); i < 500; i++ {
		want = append(want, i)
	}
	var got []int64
	s.ForEach(0, 499, false, func(key int64, bm *bitmap.Bitmap) { got = append(got, key) })
	require.Equal(t, want, got)
}

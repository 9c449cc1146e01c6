package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLinearizabilityPerKeyDisjointRanges: N producers each mark a
// disjoint id range dirty; after join, totals must equal the sum of each
// producer's expected set (spec §8).
func TestLinearizabilityPerKeyDisjointRanges(t *testing.T) {
	e := newEngine()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			base := uint64(p * perProducer)
			for i := uint64(0); i < perProducer; i++ {
				require.NoError(t, e.MarkDirty(base+i, base+i, int64(base+i)))
			}
		}()
	}
	wg.Wait()

	st := e.GetStats()
	require.EqualValues(t, producers*perProducer, st.Dirty)
	require.EqualValues(t, producers*perProducer, st.TotalBlocks)
}

// TestNoLostMarkUnderContention: C threads issue M mark_dirty calls each
// on overlapping ids; the final dirty cardinality must equal the number of
// distinct ids that ended up DIRTY (spec §8).
func TestNoLostMarkUnderContention(t *testing.T) {
	e := newEngine()
	const threads = 16
	const idsSpace = 50
	const itersPerThread = 200

	var wg sync.WaitGroup
	for th := 0; th < threads; th++ {
		th := th
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < itersPerThread; i++ {
				id := uint64((i*7 + th) % idsSpace)
				_ = e.MarkDirty(id, uint64(i), int64(i))
			}
		}()
	}
	wg.Wait()

	st := e.GetStats()
	require.EqualValues(t, idsSpace, st.Dirty)
	require.EqualValues(t, idsSpace, st.TotalBlocks)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	e := newEngine()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < 2000; i++ {
			_ = e.MarkDirty(i%100, i, int64(i))
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		out := make([]uint64, 100)
		for {
			select {
			case <-stop:
				return
			default:
				e.GetDirtyBlocksByWAL(0, 1<<62, out, 100)
			}
		}
	}()

	wg.Wait()
}

package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
)

func newStarted(t *testing.T, cfg Config) (*Interceptor, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Config{})
	ic := New(eng)
	require.NoError(t, ic.Init(cfg))
	require.NoError(t, ic.Start(context.Background()))
	t.Cleanup(func() { _ = ic.Destroy() })
	return ic, eng
}

func TestCreateAppliedToEngine(t *testing.T) {
	ic, eng := newStarted(t, Config{
		Enabled:        true,
		BufferCapacity: 16,
		WorkerCount:    2,
		DequeueTimeout: 20 * time.Millisecond,
	})

	require.NoError(t, ic.OnBlockCreate(1, 10, 100))
	require.Eventually(t, func() bool {
		return eng.GetState(1) == engine.Created
	}, time.Second, time.Millisecond)
}

func TestFlushClearsByDefault(t *testing.T) {
	ic, eng := newStarted(t, Config{
		Enabled:        true,
		BufferCapacity: 16,
		WorkerCount:    1,
		DequeueTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, ic.OnBlockCreate(1, 10, 100))
	require.Eventually(t, func() bool { return eng.GetState(1) == engine.Created }, time.Second, time.Millisecond)

	require.NoError(t, ic.OnBlockFlush(1, 11, 101))
	require.Eventually(t, func() bool { return eng.GetState(1) == engine.Clean }, time.Second, time.Millisecond)
}

func TestFlushHintOnlyLeavesStateUntouched(t *testing.T) {
	ic, eng := newStarted(t, Config{
		Enabled:        true,
		BufferCapacity: 16,
		WorkerCount:    1,
		Flush:          FlushHintOnly,
		DequeueTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, ic.OnBlockCreate(1, 10, 100))
	require.Eventually(t, func() bool { return eng.GetState(1) == engine.Created }, time.Second, time.Millisecond)

	require.NoError(t, ic.OnBlockFlush(1, 11, 101))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, engine.Created, eng.GetState(1))
}

func TestDisabledInterceptorIsNoop(t *testing.T) {
	eng := engine.New(engine.Config{})
	ic := New(eng)
	require.NoError(t, ic.Init(Config{Enabled: false, BufferCapacity: 4}))
	require.NoError(t, ic.Start(context.Background()))
	require.NoError(t, ic.OnBlockCreate(1, 1, 1))
	require.Equal(t, engine.Clean, eng.GetState(1))
}

func TestDropsWhenBufferFull(t *testing.T) {
	eng := engine.New(engine.Config{})
	ic := New(eng)
	require.NoError(t, ic.Init(Config{Enabled: true, BufferCapacity: 1, WorkerCount: 1, DequeueTimeout: time.Hour}))
	// Intentionally do not Start: nothing drains the buffer, so the second
	// submit must observe it full and report a drop.
	require.NoError(t, ic.OnBlockCreate(1, 1, 1))
	err := ic.OnBlockCreate(2, 1, 1)
	require.Error(t, err)
	require.EqualValues(t, 1, ic.GetStats().Dropped)
}

func TestRejectedTransitionIsCountedSeparatelyFromProcessed(t *testing.T) {
	ic, eng := newStarted(t, Config{
		Enabled:        true,
		BufferCapacity: 16,
		WorkerCount:    1,
		DequeueTimeout: 20 * time.Millisecond,
	})

	require.NoError(t, ic.OnBlockCreate(1, 10, 100))
	require.Eventually(t, func() bool { return eng.GetState(1) == engine.Created }, time.Second, time.Millisecond)

	require.NoError(t, ic.OnBlockDelete(1, 11, 101))
	require.Eventually(t, func() bool { return eng.GetState(1) == engine.Deleted }, time.Second, time.Millisecond)

	// Deleted is terminal: a second DELETE after the first must be rejected
	// by the engine, not crash the worker, and counted apart from processed.
	require.NoError(t, ic.OnBlockDelete(1, 12, 102))
	require.Eventually(t, func() bool { return ic.GetStats().Rejected == 1 }, time.Second, time.Millisecond)

	require.Equal(t, engine.Deleted, eng.GetState(1))
	stats := ic.GetStats()
	require.EqualValues(t, 2, stats.Processed)
	require.EqualValues(t, 1, stats.Rejected)
}

func TestStopDrainsQueuedEventsBeforeExit(t *testing.T) {
	eng := engine.New(engine.Config{})
	ic := New(eng)
	require.NoError(t, ic.Init(Config{Enabled: true, BufferCapacity: 8, WorkerCount: 1, DequeueTimeout: 10 * time.Millisecond}))
	require.NoError(t, ic.Start(context.Background()))

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, ic.OnBlockCreate(i, i, int64(i)))
	}
	require.NoError(t, ic.Stop())

	for i := uint64(1); i <= 5; i++ {
		require.Equal(t, engine.Created, eng.GetState(i))
	}
}

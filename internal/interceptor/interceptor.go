// Copyright 2026 The tdengine-backup-engine Authors
// This file is part of tdengine-backup-engine.
//
// tdengine-backup-engine is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// tdengine-backup-engine is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tdengine-backup-engine. If not, see <http://www.gnu.org/licenses/>.

// Package interceptor sits between storage engine write-path events and the
// Bitmap Engine: it buffers incoming events in a bounded ring buffer and
// drains them with a pool of workers that translate each event into the
// corresponding engine transition (spec §4.E).
package interceptor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/event"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/ringbuffer"
)

// FlushPolicy decides what a FLUSH event does to the target block's
// metadata, an Open Question spec.md left unresolved (see SPEC_FULL.md §9).
type FlushPolicy int

const (
	// FlushClears transitions the block back to CLEAN, as if the flush
	// had fully persisted it (the default).
	FlushClears FlushPolicy = iota
	// FlushHintOnly leaves the block's state untouched; FLUSH is recorded
	// only in event counters, for callers who persist out of band.
	FlushHintOnly
)

// Config configures the interceptor (spec §6.4).
type Config struct {
	Enabled        bool
	BufferCapacity int
	WorkerCount    int
	Flush          FlushPolicy
	DequeueTimeout time.Duration

	// Callback, when non-nil, is invoked once per dequeued event, applied or
	// rejected, with the engine's error (nil on success), outside the
	// engine's write lock.
	Callback func(e *event.Event, err error)
}

// Stats reports interceptor-wide counters (spec §4.E).
type Stats struct {
	Processed uint64
	Rejected  uint64
	Dropped   uint64
}

// Interceptor owns the ring buffer and worker pool that drain it into an
// *engine.Engine.
type Interceptor struct {
	cfg Config
	eng *engine.Engine
	rb  *ringbuffer.RingBuffer

	processed atomic.Uint64
	rejected  atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs an Interceptor wired to eng. The ring buffer is not created
// until Init.
func New(eng *engine.Engine) *Interceptor {
	return &Interceptor{eng: eng}
}

// Init validates cfg and allocates the ring buffer. Must be called before
// Start.
func (ic *Interceptor) Init(cfg Config) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.running {
		return errs.New(errs.InvalidParam, "interceptor already started")
	}
	if cfg.BufferCapacity <= 0 {
		return errs.New(errs.InvalidParam, "buffer_capacity must be > 0")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = time.Second
	}
	ic.cfg = cfg
	ic.rb = ringbuffer.New(cfg.BufferCapacity)
	return nil
}

// Start spawns the worker pool. A no-op (returns nil) if !cfg.Enabled.
func (ic *Interceptor) Start(ctx context.Context) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if !ic.cfg.Enabled {
		return nil
	}
	if ic.running {
		return errs.New(errs.InvalidParam, "interceptor already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	ic.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	ic.group = g
	for i := 0; i < ic.cfg.WorkerCount; i++ {
		g.Go(func() error {
			return ic.workerLoop(gctx)
		})
	}
	ic.running = true
	return nil
}

// Stop signals workers to exit, drains any events already admitted into the
// ring buffer, and waits for the pool to finish.
func (ic *Interceptor) Stop() error {
	ic.mu.Lock()
	if !ic.running {
		ic.mu.Unlock()
		return nil
	}
	ic.rb.Shutdown()
	cancel := ic.cancel
	g := ic.group
	ic.running = false
	ic.mu.Unlock()

	cancel()
	return g.Wait()
}

func (ic *Interceptor) workerLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil && ic.rb.Len() == 0 {
			return nil
		}
		dctx, cancel := context.WithTimeout(ctx, ic.cfg.DequeueTimeout)
		e, res := ic.rb.DequeueBlocking(dctx)
		cancel()
		switch res {
		case ringbuffer.OK:
			err := ic.dispatch(e)
			if err != nil {
				ic.rejected.Add(1)
			} else {
				ic.processed.Add(1)
			}
			if ic.cfg.Callback != nil {
				ic.cfg.Callback(e, err)
			}
			event.Release(e)
		case ringbuffer.Shutdown:
			return nil
		case ringbuffer.Timeout:
			// nothing queued within the poll window; loop and re-check ctx
		}
	}
}

func (ic *Interceptor) dispatch(e *event.Event) error {
	switch e.Kind {
	case event.Create:
		return ic.eng.MarkNew(e.BlockID, e.WALOffset, e.Timestamp)
	case event.Update:
		return ic.eng.MarkDirty(e.BlockID, e.WALOffset, e.Timestamp)
	case event.Delete:
		return ic.eng.MarkDeleted(e.BlockID, e.WALOffset, e.Timestamp)
	case event.Flush:
		if ic.cfg.Flush == FlushHintOnly {
			return nil
		}
		return ic.eng.ClearBlock(e.BlockID)
	default:
		return errs.New(errs.InvalidParam, "unknown event kind")
	}
}

// submit is the common path for every on_block_* entry point: it acquires a
// pooled event, tries a non-blocking enqueue, and drops the event (counted
// in Dropped, never blocking the caller's write path) if the ring is full or
// shut down.
func (ic *Interceptor) submit(kind event.Kind, blockID, walOffset uint64, ts int64) error {
	ic.mu.Lock()
	enabled := ic.cfg.Enabled
	ic.mu.Unlock()
	if !enabled {
		return nil
	}

	e := event.Get(kind, blockID, walOffset, ts)
	res := ic.rb.TryEnqueue(e)
	if res != ringbuffer.OK {
		event.Release(e)
		ic.dropped.Add(1)
		return errs.New(errs.OutOfMemory, "event buffer full, event dropped")
	}
	return nil
}

// OnBlockCreate submits a CREATE event.
func (ic *Interceptor) OnBlockCreate(blockID, walOffset uint64, ts int64) error {
	return ic.submit(event.Create, blockID, walOffset, ts)
}

// OnBlockUpdate submits an UPDATE event.
func (ic *Interceptor) OnBlockUpdate(blockID, walOffset uint64, ts int64) error {
	return ic.submit(event.Update, blockID, walOffset, ts)
}

// OnBlockFlush submits a FLUSH event.
func (ic *Interceptor) OnBlockFlush(blockID, walOffset uint64, ts int64) error {
	return ic.submit(event.Flush, blockID, walOffset, ts)
}

// OnBlockDelete submits a DELETE event.
func (ic *Interceptor) OnBlockDelete(blockID, walOffset uint64, ts int64) error {
	return ic.submit(event.Delete, blockID, walOffset, ts)
}

// GetStats returns event counters (spec §4.E).
func (ic *Interceptor) GetStats() Stats {
	return Stats{
		Processed: ic.processed.Load(),
		Rejected:  ic.rejected.Load(),
		Dropped:   ic.dropped.Load(),
	}
}

// Destroy stops the interceptor if running and releases its ring buffer.
func (ic *Interceptor) Destroy() error {
	if err := ic.Stop(); err != nil {
		return err
	}
	ic.mu.Lock()
	ic.rb = nil
	ic.mu.Unlock()
	return nil
}

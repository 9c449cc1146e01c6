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

// Package ringbuffer implements the Ring Buffer component: a bounded,
// blocking, multi-producer/multi-consumer queue of *event.Event, backed by
// a mutex and two condition variables (not-empty, not-full) independent of
// the Bitmap Engine's lock, per spec §4.C and §5.
package ringbuffer

import (
	"context"
	"sync"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/event"
)

// Result is the outcome of a blocking ring-buffer operation.
type Result int

const (
	OK Result = iota
	Full
	Timeout
	Shutdown
)

// RingBuffer is a bounded FIFO of *event.Event.
type RingBuffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf   []*event.Event
	head  int
	count int

	shutdown bool
}

// New returns a ring buffer with a fixed capacity N.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	rb := &RingBuffer{buf: make([]*event.Event, capacity)}
	rb.notEmpty = sync.NewCond(&rb.mu)
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

func (rb *RingBuffer) cap() int { return len(rb.buf) }

// TryEnqueue adds e without blocking, returning Full if the buffer has no
// room, or Shutdown if the buffer has already been shut down.
func (rb *RingBuffer) TryEnqueue(e *event.Event) Result {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.shutdown {
		return Shutdown
	}
	if rb.count == rb.cap() {
		return Full
	}
	rb.pushLocked(e)
	rb.notEmpty.Signal()
	return OK
}

// EnqueueBlocking adds e, waiting for room if the buffer is full, until
// ctx is done or the buffer shuts down.
func (rb *RingBuffer) EnqueueBlocking(ctx context.Context, e *event.Event) Result {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	done := rb.watchCtx(ctx, rb.notFull)
	defer done()

	for rb.count == rb.cap() && !rb.shutdown {
		if ctx.Err() != nil {
			return Timeout
		}
		rb.notFull.Wait()
	}
	if rb.shutdown {
		return Shutdown
	}
	if ctx.Err() != nil {
		return Timeout
	}
	rb.pushLocked(e)
	rb.notEmpty.Signal()
	return OK
}

// DequeueBlocking removes and returns the oldest event, waiting if the
// buffer is empty, until ctx is done or the buffer shuts down. On
// Shutdown, the returned event is nil only once the buffer has also been
// fully drained; otherwise remaining items are still handed out first, so
// in-flight accepted work is never silently lost.
func (rb *RingBuffer) DequeueBlocking(ctx context.Context) (*event.Event, Result) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	done := rb.watchCtx(ctx, rb.notEmpty)
	defer done()

	for rb.count == 0 && !rb.shutdown {
		if ctx.Err() != nil {
			return nil, Timeout
		}
		rb.notEmpty.Wait()
	}
	if rb.count > 0 {
		e := rb.popLocked()
		rb.notFull.Signal()
		return e, OK
	}
	if rb.shutdown {
		return nil, Shutdown
	}
	return nil, Timeout
}

// Shutdown wakes all waiters. Already-queued items remain available to
// DequeueBlocking until drained; further EnqueueBlocking/TryEnqueue calls
// return Shutdown. Idempotent.
func (rb *RingBuffer) Shutdown() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.shutdown {
		return
	}
	rb.shutdown = true
	rb.notEmpty.Broadcast()
	rb.notFull.Broadcast()
}

// Len returns the number of items currently queued.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

func (rb *RingBuffer) pushLocked(e *event.Event) {
	tail := (rb.head + rb.count) % rb.cap()
	rb.buf[tail] = e
	rb.count++
}

func (rb *RingBuffer) popLocked() *event.Event {
	e := rb.buf[rb.head]
	rb.buf[rb.head] = nil
	rb.head = (rb.head + 1) % rb.cap()
	rb.count--
	return e
}

// watchCtx spawns a goroutine that broadcasts on cond when ctx is done, so
// a blocked Wait() wakes up to observe ctx.Err(). Returns a cleanup func
// that must be deferred to stop the goroutine once the caller is done
// waiting, whether or not ctx ever fired.
func (rb *RingBuffer) watchCtx(ctx context.Context, cond *sync.Cond) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			rb.mu.Lock()
			cond.Broadcast()
			rb.mu.Unlock()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

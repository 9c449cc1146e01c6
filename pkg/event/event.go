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

// Package event defines the block-mutation record passed from the
// storage-engine side of the boundary through the ring buffer to the
// engine-applying workers.
package event

import "sync"

// Kind is the mutation kind reported by the host storage engine.
type Kind uint8

const (
	Create Kind = iota + 1
	Update
	Flush
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "CREATE"
	case Update:
		return "UPDATE"
	case Flush:
		return "FLUSH"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is a single block-mutation notification. Owned by the ring buffer
// from enqueue to dequeue; workers return it to the pool once applied.
type Event struct {
	Kind      Kind
	BlockID   uint64
	WALOffset uint64
	Timestamp int64 // nanoseconds
}

// pool bounds allocation under high event rates: the interceptor's
// on_block_* submission path must not allocate on every call, since
// storage latency must not grow with backup lag (spec §9).
var pool = sync.Pool{New: func() any { return new(Event) }}

// Get returns an Event from the pool with its fields set to the arguments.
func Get(kind Kind, blockID, walOffset uint64, ts int64) *Event {
	e := pool.Get().(*Event)
	e.Kind = kind
	e.BlockID = blockID
	e.WALOffset = walOffset
	e.Timestamp = ts
	return e
}

// Release returns e to the pool. Callers must not touch e afterwards.
func Release(e *Event) {
	*e = Event{}
	pool.Put(e)
}

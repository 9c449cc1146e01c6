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

// Package engine implements the Bitmap Engine, the heart of the module
// (spec §4.D): three bitmaps (dirty/new/deleted), a block-id -> metadata
// map, and two ordered indices (by timestamp, by WAL offset), under a
// single read-write lock that is the sole gatekeeper for every invariant.
package engine

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/bitmap"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/skiplist"
)

// Stats is a snapshot of engine-wide counters, consistent as of the
// instant the read lock was released (spec §4.D).
type Stats struct {
	TotalBlocks uint64
	Dirty       uint64
	New         uint64
	Deleted     uint64
}

// Engine is the Bitmap Engine. The zero value is not usable; construct
// with New.
type Engine struct {
	mu sync.RWMutex

	dirty   *bitmap.Bitmap
	newBm   *bitmap.Bitmap
	deleted *bitmap.Bitmap

	meta map[uint64]Metadata

	timeIndex *skiplist.SkipList
	walIndex  *skiplist.SkipList

	// cleanCache accelerates repeated CLEAN-state lookups; it never holds
	// the source of truth for dirty/new/deleted blocks, so every
	// correctness invariant in spec §8 holds regardless of its contents
	// or absence (memory_limit_mb == 0 disables it entirely).
	cleanCache *lru.Cache[uint64, Metadata]
	maxBlocks  uint64
}

// Config configures the optional bounded accelerator cache (Capacity <= 0
// disables it) and the engine's admission limit (spec §6.4: max_blocks).
type Config struct {
	CleanCacheCapacity int
	MaxBlocks          uint64 // 0 disables the limit
}

// New constructs an empty Bitmap Engine.
func New(cfg Config) *Engine {
	e := &Engine{
		dirty:     bitmap.New(),
		newBm:     bitmap.New(),
		deleted:   bitmap.New(),
		meta:      make(map[uint64]Metadata),
		timeIndex: skiplist.New(),
		walIndex:  skiplist.New(),
		maxBlocks: cfg.MaxBlocks,
	}
	if cfg.CleanCacheCapacity > 0 {
		c, err := lru.New[uint64, Metadata](cfg.CleanCacheCapacity)
		if err == nil {
			e.cleanCache = c
		}
	}
	return e
}

func (e *Engine) bitmapFor(s State) *bitmap.Bitmap {
	switch s {
	case Dirty:
		return e.dirty
	case Created:
		return e.newBm
	case Deleted:
		return e.deleted
	default:
		return nil
	}
}

// currentStateLocked returns the block's current state, assuming the
// caller already holds e.mu.
func (e *Engine) currentStateLocked(id uint64) State {
	if m, ok := e.meta[id]; ok {
		return m.State
	}
	return Clean
}

func (e *Engine) markLocked(id, wal uint64, ts int64, target State) error {
	from := e.currentStateLocked(id)
	if !transitionAllowed(from, target) {
		return errs.InvalidTransition(from.String(), target.String())
	}

	if e.maxBlocks > 0 && from == Clean {
		if _, tracked := e.meta[id]; !tracked && uint64(len(e.meta)) >= e.maxBlocks {
			return errs.New(errs.OutOfMemory, "engine at max_blocks capacity")
		}
	}

	if fromBm := e.bitmapFor(from); fromBm != nil {
		fromBm.Remove(id)
	}
	e.bitmapFor(target).Add(id)

	e.meta[id] = Metadata{BlockID: id, WALOffset: wal, Timestamp: ts, State: target}
	if e.cleanCache != nil {
		e.cleanCache.Remove(id)
	}

	e.timeIndex.Insert(ts).Add(id)
	e.walIndex.Insert(int64(wal)).Add(id)
	return nil
}

// MarkDirty validates the transition from the block's current state (CLEAN
// if absent) to DIRTY and, on success, records wal/ts and posts id into
// both ordered indices.
func (e *Engine) MarkDirty(id, wal uint64, ts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markLocked(id, wal, ts, Dirty)
}

// MarkNew is the CREATE transition.
func (e *Engine) MarkNew(id, wal uint64, ts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markLocked(id, wal, ts, Created)
}

// MarkDeleted is the DELETE transition.
func (e *Engine) MarkDeleted(id, wal uint64, ts int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markLocked(id, wal, ts, Deleted)
}

// ClearBlock transitions id to CLEAN: removes it from all three bitmaps
// and erases its metadata. Not permitted from DELETED.
func (e *Engine) ClearBlock(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.currentStateLocked(id)
	if from == Deleted {
		return errs.InvalidTransition(from.String(), Clean.String())
	}
	if from == Clean {
		return nil
	}
	e.bitmapFor(from).Remove(id)
	delete(e.meta, id)
	if e.cleanCache != nil {
		e.cleanCache.Remove(id)
	}
	return nil
}

// GetMetadata returns the block's metadata, if it has any (i.e. if it is
// not CLEAN).
func (e *Engine) GetMetadata(id uint64) (Metadata, bool) {
	e.mu.RLock()
	m, ok := e.meta[id]
	e.mu.RUnlock()
	return m, ok
}

// GetState returns the block's current state, CLEAN if it has no
// metadata.
func (e *Engine) GetState(id uint64) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cleanCache != nil {
		if m, ok := e.cleanCache.Get(id); ok {
			return m.State
		}
	}
	if m, ok := e.meta[id]; ok {
		return m.State
	}
	if e.cleanCache != nil {
		e.cleanCache.Add(id, Metadata{BlockID: id, State: Clean})
	}
	return Clean
}

// rangeQueryLocked unions the skip list's bitmaps over [lo, hi], intersects
// with the current-state bitmap (since old (wal, ts) postings are never
// eagerly purged — spec §9), and writes up to max ids ascending into out.
func rangeQueryLocked(idx *skiplist.SkipList, stateBm *bitmap.Bitmap, lo, hi int64, max int) []uint64 {
	union := bitmap.New()
	idx.ForEach(lo, hi, false, func(_ int64, bm *bitmap.Bitmap) {
		union.Or(bm)
	})
	union.And(stateBm)
	return union.ToArray(max)
}

// GetDirtyBlocksByTime computes the union of time_index[k] for
// k in [tLo, tHi], intersects with the current dirty bitmap, and writes up
// to max ids ascending into out, returning the count written.
func (e *Engine) GetDirtyBlocksByTime(tLo, tHi int64, out []uint64, max int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := rangeQueryLocked(e.timeIndex, e.dirty, tLo, tHi, max)
	return copy(out, ids)
}

// GetDirtyBlocksByWAL is the symmetric query over wal_index.
func (e *Engine) GetDirtyBlocksByWAL(wLo, wHi int64, out []uint64, max int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := rangeQueryLocked(e.walIndex, e.dirty, wLo, wHi, max)
	return copy(out, ids)
}

// GetStats returns counters consistent as of lock release.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		TotalBlocks: uint64(len(e.meta)),
		Dirty:       e.dirty.Cardinality(),
		New:         e.newBm.Cardinality(),
		Deleted:     e.deleted.Cardinality(),
	}
}

// Snapshot exposes read-only access to the engine's internals for the
// persistence writer; it does not leak mutable bitmaps to callers outside
// the lock (spec §5's shared-resource policy) — it returns clones.
func (e *Engine) Snapshot() (dirty, newBm, deleted *bitmap.Bitmap, meta map[uint64]Metadata) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	metaCopy := make(map[uint64]Metadata, len(e.meta))
	for k, v := range e.meta {
		metaCopy[k] = v
	}
	return e.dirty.Clone(), e.newBm.Clone(), e.deleted.Clone(), metaCopy
}

// Restore replaces the engine's entire state from a previously-captured
// Snapshot, rebuilding both ordered indices from the metadata map. Used by
// the persistence loader on process restart.
func (e *Engine) Restore(dirty, newBm, deleted *bitmap.Bitmap, meta map[uint64]Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirty = dirty
	e.newBm = newBm
	e.deleted = deleted
	e.meta = meta
	e.timeIndex = skiplist.New()
	e.walIndex = skiplist.New()
	for id, m := range meta {
		e.timeIndex.Insert(m.Timestamp).Add(id)
		e.walIndex.Insert(int64(m.WALOffset)).Add(id)
	}
	if e.cleanCache != nil {
		e.cleanCache.Purge()
	}
}

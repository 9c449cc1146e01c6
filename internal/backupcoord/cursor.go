// Copyright 2024 The Erigon Authors (original work)
// Copyright 2026 The tdengine-backup-engine Authors (modifications)
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

package backupcoord

import (
	"errors"
	"fmt"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
)

// ErrCursorExhausted is returned once a cursor has no more blocks to yield.
var ErrCursorExhausted = errors.New("cursor exhausted: no more blocks available")

// CursorType selects which ordered index a Cursor walks.
type CursorType uint8

const (
	CursorTime CursorType = iota
	CursorWAL
	CursorHybrid
)

func (t CursorType) String() string {
	switch t {
	case CursorTime:
		return "TIME"
	case CursorWAL:
		return "WAL"
	case CursorHybrid:
		return "HYBRID"
	default:
		return "UNKNOWN"
	}
}

// Cursor is a read-only position over the engine's dirty-block index. It
// does not snapshot the engine: GetNextBatch always observes the current
// index state, so blocks cleared or re-marked between batches are reflected
// immediately rather than replayed from a frozen view.
type Cursor struct {
	handle string
	typ    CursorType
	tLo, tHi int64
	wLo, wHi uint64

	consumed uint64
	hasMore  bool

	// timePos/walPos track the next lower bound to resume from after each
	// batch, so repeated GetNextBatch calls walk forward through the range
	// instead of re-yielding the same prefix.
	timePos int64
	walPos  uint64
}

func newCursor(handle string, typ CursorType, tLo, tHi int64, wLo, wHi uint64) *Cursor {
	return &Cursor{
		handle:  handle,
		typ:     typ,
		tLo:     tLo,
		tHi:     tHi,
		wLo:     wLo,
		wHi:     wHi,
		hasMore: true,
		timePos: tLo,
		walPos:  wLo,
	}
}

func (c *Cursor) String() string {
	return fmt.Sprintf("cursor{handle:%s type:%s consumed:%d has_more:%t}", c.handle, c.typ, c.consumed, c.hasMore)
}

// Handle returns the cursor's opaque external identifier.
func (c *Cursor) Handle() string { return c.handle }

// Consumed returns the number of blocks this cursor has yielded so far.
func (c *Cursor) Consumed() uint64 { return c.consumed }

// HasMore reports whether a subsequent GetNextBatch call could still yield
// blocks, as of the last call.
func (c *Cursor) HasMore() bool { return c.hasMore }

// nextBatchLocked fills out with up to max dirty block ids from eng,
// starting at the cursor's current position, and advances that position
// past the highest index key (timestamp or WAL offset) among the ids
// written. Caller must already hold any lock the coordinator
// requires around eng access; the engine itself is safe for concurrent
// range queries regardless.
func (c *Cursor) nextBatchLocked(eng *engine.Engine, out []uint64, max int) (int, error) {
	if !c.hasMore {
		return 0, ErrCursorExhausted
	}

	var n, rawN int
	var raw []uint64
	switch c.typ {
	case CursorTime:
		n = eng.GetDirtyBlocksByTime(c.timePos, c.tHi, out, max)
		rawN = n
	case CursorWAL:
		n = eng.GetDirtyBlocksByWAL(int64(c.walPos), int64(c.wHi), out, max)
		rawN = n
	case CursorHybrid:
		// HYBRID is the intersection of the WAL and time ranges: walk the
		// WAL index (it drives pagination) and keep only ids whose
		// timestamp also falls within [tLo, tHi].
		raw = make([]uint64, max)
		rawN = eng.GetDirtyBlocksByWAL(int64(c.walPos), int64(c.wHi), raw, max)
		for _, id := range raw[:rawN] {
			if m, ok := eng.GetMetadata(id); ok && m.Timestamp >= c.tLo && m.Timestamp <= c.tHi {
				out[n] = id
				n++
			}
		}
	default:
		return 0, fmt.Errorf("unknown cursor type %v", c.typ)
	}

	// rawN, not n, decides exhaustion: a HYBRID batch can filter every id
	// out of the time bound while the WAL range still has more to give.
	if rawN == 0 {
		c.hasMore = false
		return 0, nil
	}

	c.consumed += uint64(n)
	// Advance past the highest index key actually observed in this batch
	// (not the block id), so the next call resumes past it rather than
	// re-yielding the same blocks. For HYBRID this walks every id the WAL
	// query returned, not just the ones that passed the time filter.
	ids := out[:n]
	if c.typ == CursorHybrid {
		ids = raw[:rawN]
	}
	var maxTime int64 = c.timePos
	var maxWAL uint64 = c.walPos
	for _, id := range ids {
		if m, ok := eng.GetMetadata(id); ok {
			if m.Timestamp > maxTime {
				maxTime = m.Timestamp
			}
			if m.WALOffset > maxWAL {
				maxWAL = m.WALOffset
			}
		}
	}
	switch c.typ {
	case CursorTime:
		c.timePos = maxTime + 1
	case CursorWAL, CursorHybrid:
		c.walPos = maxWAL + 1
	}

	if rawN < max {
		c.hasMore = false
	}
	return n, nil
}

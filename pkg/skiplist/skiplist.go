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

// Package skiplist implements the Ordered Index component: an ordered
// mapping from int64 key to *bitmap.Bitmap with O(log n) expected
// find/insert/remove and an ordered range-iteration callback. It is a
// probabilistic multi-level skip list with a node pool for allocation
// reuse, per spec §4.B. Thread-safety is delegated to the owning engine;
// SkipList itself is not safe for concurrent use.
package skiplist

import (
	"math/rand"
	"time"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/bitmap"
)

const (
	maxLevel    = 32
	probability = 0.25
)

type node struct {
	key     int64
	value   *bitmap.Bitmap
	forward []*node
	inUse   bool
}

// SkipList is an ordered int64 -> *bitmap.Bitmap map.
type SkipList struct {
	head   *node
	level  int
	length int
	rnd    *rand.Rand
	pool   []*node // free list for node reuse, avoids the GC churn of one
	// allocation per insert/remove under the mark-rate this index sees.
}

// New returns an empty skip list.
func New() *SkipList {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns an empty skip list using the given PRNG seed,
// primarily for deterministic tests of level distribution.
func NewSeeded(seed int64) *SkipList {
	return &SkipList{
		head:  &node{forward: make([]*node, maxLevel)},
		level: 1,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rnd.Float64() < probability {
		lvl++
	}
	return lvl
}

// acquire returns a reusable node from the pool, or allocates a new one.
func (s *SkipList) acquire(key int64, value *bitmap.Bitmap, lvl int) *node {
	for i, n := range s.pool {
		if n != nil && cap(n.forward) >= lvl {
			s.pool[i] = nil
			n.key = key
			n.value = value
			n.forward = n.forward[:lvl]
			for j := range n.forward {
				n.forward[j] = nil
			}
			n.inUse = true
			return n
		}
	}
	return &node{key: key, value: value, forward: make([]*node, lvl), inUse: true}
}

// release returns n to the pool for reuse by a future Insert.
func (s *SkipList) release(n *node) {
	n.inUse = false
	n.value = nil
	s.pool = append(s.pool, n)
}

// Find returns the bitmap stored at key, if any.
func (s *SkipList) Find(key int64) (*bitmap.Bitmap, bool) {
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && cur.forward[i].key < key {
			cur = cur.forward[i]
		}
	}
	cur = cur.forward[0]
	if cur != nil && cur.key == key {
		return cur.value, true
	}
	return nil, false
}

// Insert ensures a bitmap is stored at key and returns it: the existing
// bitmap, unchanged, if key is present, otherwise a newly created empty one.
func (s *SkipList) Insert(key int64) *bitmap.Bitmap {
	update := make([]*node, maxLevel)
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && cur.forward[i].key < key {
			cur = cur.forward[i]
		}
		update[i] = cur
	}
	cur = cur.forward[0]
	if cur != nil && cur.key == key {
		return cur.value
	}

	lvl := s.randomLevel()
	if lvl > s.level {
		for i := s.level; i < lvl; i++ {
			update[i] = s.head
		}
		s.level = lvl
	}
	n := s.acquire(key, bitmap.New(), lvl)
	for i := 0; i < lvl; i++ {
		n.forward[i] = update[i].forward[i]
		update[i].forward[i] = n
	}
	s.length++
	return n.value
}

// Remove deletes key from the index, if present.
func (s *SkipList) Remove(key int64) {
	update := make([]*node, maxLevel)
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && cur.forward[i].key < key {
			cur = cur.forward[i]
		}
		update[i] = cur
	}
	target := cur.forward[0]
	if target == nil || target.key != key {
		return
	}
	for i := 0; i < s.level; i++ {
		if update[i].forward[i] != target {
			continue
		}
		update[i].forward[i] = target.forward[i]
	}
	for s.level > 1 && s.head.forward[s.level-1] == nil {
		s.level--
	}
	s.length--
	s.release(target)
}

// Len returns the number of distinct keys currently stored.
func (s *SkipList) Len() int { return s.length }

// ForEach invokes fn(key, bitmap) for every key in [lo, hi], in ascending
// order, or descending order if reverse is true. fn must not mutate the
// skip list.
func (s *SkipList) ForEach(lo, hi int64, reverse bool, fn func(key int64, bm *bitmap.Bitmap)) {
	if reverse {
		s.forEachReverse(lo, hi, fn)
		return
	}
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && cur.forward[i].key < lo {
			cur = cur.forward[i]
		}
	}
	cur = cur.forward[0]
	for cur != nil && cur.key <= hi {
		fn(cur.key, cur.value)
		cur = cur.forward[0]
	}
}

func (s *SkipList) forEachReverse(lo, hi int64, fn func(key int64, bm *bitmap.Bitmap)) {
	var keys []int64
	var vals []*bitmap.Bitmap
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && cur.forward[i].key < lo {
			cur = cur.forward[i]
		}
	}
	cur = cur.forward[0]
	for cur != nil && cur.key <= hi {
		keys = append(keys, cur.key)
		vals = append(vals, cur.value)
		cur = cur.forward[0]
	}
	for i := len(keys) - 1; i >= 0; i-- {
		fn(keys[i], vals[i])
	}
}

// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// Copyright 2026 The tdengine-backup-engine Authors
// (further modifications)
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

// Package mathutil holds small overflow-aware integer helpers shared by
// the engine's size-estimation and batching code.
package mathutil

import "math/bits"

// Integer limit values.
const (
	MaxInt64  = 1<<63 - 1
	MinInt64  = -1 << 63
	MaxUint64 = 1<<64 - 1
)

// AbsoluteDifference returns |x-y| for two uint64, without risking
// underflow from a naive subtraction.
func AbsoluteDifference(x, y uint64) uint64 {
	if x > y {
		return x - y
	}
	return y - x
}

// SafeMul returns x*y and reports whether the multiplication overflowed
// 64 bits. Used by estimate_size to multiply a bitmap cardinality by a
// configured average block size without silently wrapping.
func SafeMul(x, y uint64) (product uint64, overflow bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// SafeAdd returns x+y and reports whether the addition overflowed.
func SafeAdd(x, y uint64) (sum uint64, overflow bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// CeilDiv returns ceil(x/y), or 0 if y is 0 (for example, a block count and
// a per-batch limit give a number of batches).
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

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

// adjustBatchSize caps a requested batch size at maxBlocksPerBatch (itself
// at least 1); a non-positive request yields maxBlocksPerBatch.
func adjustBatchSize(requested, maxBlocksPerBatch int) int {
	if maxBlocksPerBatch <= 0 {
		maxBlocksPerBatch = 1
	}
	if requested <= 0 || requested > maxBlocksPerBatch {
		return maxBlocksPerBatch
	}
	return requested
}

// isArchiveSizeWithinLimit reports whether estimatedBytes fits under the
// configured backup_max_size. A zero limit means unlimited.
func isArchiveSizeWithinLimit(estimatedBytes uint64, maxBytes uint64) bool {
	if maxBytes == 0 {
		return true
	}
	return estimatedBytes <= maxBytes
}

// BlockType is a backup archive body block's on-wire block_type tag
// (spec §6.3).
type BlockType uint8

const (
	BlockTypeHeader  BlockType = 1
	BlockTypeData    BlockType = 2
	BlockTypeTrailer BlockType = 3
)

func (b BlockType) valid() bool {
	return b == BlockTypeHeader || b == BlockTypeData || b == BlockTypeTrailer
}

// Copyright 2021 The Erigon Authors
// (original work)
// Copyright 2026 The tdengine-backup-engine Authors
// (modifications)
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

// Package persist names the on-disk layout of the engine's optional
// restart-recovery snapshot (persistence_enabled / persistence_path).
package persist

// SchemaVersion guards against loading a snapshot written by an
// incompatible build on restart.
// 1 - initial layout: dirty/new/deleted bitmaps + metadata map, portable
//     Roaring encoding, no compaction of stale index postings.
const SchemaVersion = 1

// Section names for the snapshot's contents. The engine's snapshot writer
// does not write these names: it writes unnamed sections in the fixed
// order version, dirty, new, deleted, meta.
const (
	SectionDirty   = "dirty"
	SectionNew     = "new"
	SectionDeleted = "deleted"
	SectionMeta    = "meta"
)

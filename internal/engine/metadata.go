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

package engine

// State is a block's tracked state relative to the last backup
// checkpoint. A block with no Metadata record is implicitly Clean.
type State uint8

const (
	Clean State = iota
	Dirty
	Created
	Deleted
)

func (s State) String() string {
	switch s {
	case Clean:
		return "CLEAN"
	case Dirty:
		return "DIRTY"
	case Created:
		return "NEW"
	case Deleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Metadata is the per-block record the engine maintains for every
// non-CLEAN block.
type Metadata struct {
	BlockID   uint64
	WALOffset uint64
	Timestamp int64
	State     State
}

// transitionAllowed implements the matrix from spec §3 exactly.
func transitionAllowed(from, to State) bool {
	if from == to {
		return false
	}
	switch from {
	case Clean:
		return true // CLEAN -> DIRTY|NEW|DELETED all allowed
	case Dirty:
		return to == Clean || to == Deleted
	case Created:
		return to == Dirty || to == Deleted
	case Deleted:
		return false // terminal
	default:
		return false
	}
}

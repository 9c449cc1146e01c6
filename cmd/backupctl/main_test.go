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

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBlockIDs(t *testing.T) {
	ids, err := parseBlockIDs("1, 2,3")
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestParseBlockIDsEmpty(t *testing.T) {
	ids, err := parseBlockIDs("")
	require.NoError(t, err)
	require.Nil(t, ids)
}

func TestParseBlockIDsRejectsNonNumeric(t *testing.T) {
	_, err := parseBlockIDs("1,x,3")
	require.Error(t, err)
}

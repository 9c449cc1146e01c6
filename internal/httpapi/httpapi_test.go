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

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
)

func TestHealthzReturnsOK(t *testing.T) {
	eng := engine.New(engine.Config{})
	coord := backupcoord.New(eng, backupcoord.DefaultConfig(), nil)
	s := New(eng, nil, coord)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestStatsReflectsEngineState(t *testing.T) {
	eng := engine.New(engine.Config{})
	require.NoError(t, eng.MarkDirty(1, 10, 100))
	require.NoError(t, eng.MarkNew(2, 20, 200))
	coord := backupcoord.New(eng, backupcoord.DefaultConfig(), nil)
	s := New(eng, nil, coord)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp.Engine.Dirty)
	require.EqualValues(t, 1, resp.Engine.New)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	eng := engine.New(engine.Config{})
	coord := backupcoord.New(eng, backupcoord.DefaultConfig(), nil)
	s := New(eng, nil, coord)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

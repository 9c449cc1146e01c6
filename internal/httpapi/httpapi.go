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

// Package httpapi exposes a minimal debug surface over the engine,
// interceptor and backup coordinator: /healthz for liveness and /stats for
// the counters spec §6.2's get_stats/get_error_stats report, plus
// /metrics for Prometheus scraping.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/interceptor"
)

// StatsResponse is the /stats JSON payload.
type StatsResponse struct {
	Engine struct {
		TotalBlocks uint64 `json:"total_blocks"`
		Dirty       uint64 `json:"dirty"`
		New         uint64 `json:"new"`
		Deleted     uint64 `json:"deleted"`
	} `json:"engine"`
	Interceptor struct {
		Processed uint64 `json:"processed"`
		Rejected  uint64 `json:"rejected"`
		Dropped   uint64 `json:"dropped"`
	} `json:"interceptor"`
	Coordinator struct {
		Blocks     uint64 `json:"blocks"`
		Bytes      uint64 `json:"bytes"`
		DurationMs int64  `json:"duration_ms"`
		Errors     int    `json:"errors"`
		Retries    uint64 `json:"retries"`
		LastError  string `json:"last_error,omitempty"`
	} `json:"coordinator"`
}

// Server bundles the debug HTTP handlers over a fixed engine/interceptor/
// coordinator triple.
type Server struct {
	eng   *engine.Engine
	ic    *interceptor.Interceptor
	coord *backupcoord.Coordinator
}

// New constructs a Server. ic may be nil (interceptor disabled).
func New(eng *engine.Engine, ic *interceptor.Interceptor, coord *backupcoord.Coordinator) *Server {
	return &Server{eng: eng, ic: ic, coord: coord}
}

// Router builds the chi router serving /healthz, /stats and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse

	st := s.eng.GetStats()
	resp.Engine.TotalBlocks = st.TotalBlocks
	resp.Engine.Dirty = st.Dirty
	resp.Engine.New = st.New
	resp.Engine.Deleted = st.Deleted

	if s.ic != nil {
		icStats := s.ic.GetStats()
		resp.Interceptor.Processed = icStats.Processed
		resp.Interceptor.Rejected = icStats.Rejected
		resp.Interceptor.Dropped = icStats.Dropped
	}

	blocks, bytes, durationMs := s.coord.GetStats()
	resp.Coordinator.Blocks = blocks
	resp.Coordinator.Bytes = bytes
	resp.Coordinator.DurationMs = durationMs
	resp.Coordinator.Errors, resp.Coordinator.Retries = s.coord.GetErrorStats()
	resp.Coordinator.LastError = s.coord.GetLastError()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

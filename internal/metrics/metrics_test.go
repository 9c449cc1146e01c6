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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveBatchAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBatch(10, 4096, 0.5)
	m.ObserveBatch(5, 2048, 0.25)

	require.Equal(t, float64(15), counterValue(t, m.CoordinatorBatchBlocks))
	require.Equal(t, float64(6144), counterValue(t, m.CoordinatorBatchBytes))
}

func TestObserveInterceptorStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveInterceptorStats(3, 2, 1)
	require.Equal(t, float64(3), counterValue(t, m.InterceptorEventsProcessed))
	require.Equal(t, float64(2), counterValue(t, m.InterceptorEventsRejected))
	require.Equal(t, float64(1), counterValue(t, m.InterceptorEventsDropped))
}

func TestNewRegistersAllCollectorsOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { New(reg) })
}

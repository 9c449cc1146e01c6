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

package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDocumentedDefaults(t *testing.T) {
	d := Default()
	require.Equal(t, 10, d.Coordinator.ErrorRetryMax)
	require.Equal(t, 5, d.Coordinator.ErrorRetryIntervalS)
	require.EqualValues(t, 1<<30, d.Coordinator.BackupMaxSize.Bytes())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `
coordinator:
  max_blocks_per_batch: 256
  backup_max_size: 512MB
  enable_compression: true
  compression_level: 2
engine:
  max_blocks: 100000
  memory_limit_mb: 64MB
interceptor:
  enabled: true
  event_buffer_size: 8192
`
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(doc), 0o644))

	cfg, err := Load(fs, "/cfg.yaml")
	require.NoError(t, err)
	require.Equal(t, 256, cfg.Coordinator.MaxBlocksPerBatch)
	require.EqualValues(t, 512*1024*1024, cfg.Coordinator.BackupMaxSize.Bytes())
	require.Equal(t, 2, cfg.Coordinator.CompressionLevel)
	require.EqualValues(t, 100000, cfg.Engine.MaxBlocks)
	require.EqualValues(t, 8192, cfg.Interceptor.EventBufferSize)
	// Fields not present in the document keep their spec-documented default.
	require.Equal(t, 10, cfg.Coordinator.ErrorRetryMax)
}

func TestLoadJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{"coordinator": {"max_blocks_per_batch": 99, "backup_max_size": "2GB"}}`
	require.NoError(t, afero.WriteFile(fs, "/cfg.json", []byte(doc), 0o644))

	cfg, err := Load(fs, "/cfg.json")
	require.NoError(t, err)
	require.Equal(t, 99, cfg.Coordinator.MaxBlocksPerBatch)
	require.EqualValues(t, 2*1024*1024*1024, cfg.Coordinator.BackupMaxSize.Bytes())
}

func TestLoadRejectsBadCompressionLevel(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `
coordinator:
  enable_compression: true
  compression_level: 7
`
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(doc), 0o644))
	_, err := Load(fs, "/cfg.yaml")
	require.Error(t, err)
}

func TestLoadRejectsShortEncryptionKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `
coordinator:
  enable_encryption: true
  encryption_key: "deadbeef"
`
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(doc), 0o644))
	_, err := Load(fs, "/cfg.yaml")
	require.Error(t, err)
}

func TestToCoordinatorConfigDecodesHexKey(t *testing.T) {
	cc := CoordinatorConfig{EnableEncryption: true, EncryptionKeyHex: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"}
	out, err := cc.ToCoordinatorConfig()
	require.NoError(t, err)
	require.Len(t, out.EncryptionKey, 32)
}

func TestToEngineConfigDerivesCacheCapacityFromMemoryLimit(t *testing.T) {
	ec := EngineConfig{MemoryLimit: 64 * 1024 * 1024, LRUCleanupThresholdPct: 50, MaxBlocks: 1000}
	out := ec.ToEngineConfig()
	require.Greater(t, out.CleanCacheCapacity, 0)
	require.EqualValues(t, 1000, out.MaxBlocks)
}

func TestToInterceptorConfigDefaultsWorkerCountToOne(t *testing.T) {
	ic := InterceptorConfig{Enabled: true, EventBufferSize: 10}
	out := ic.ToInterceptorConfig(0)
	require.Equal(t, 1, out.WorkerCount)
}

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

// Package config loads the recognized configuration options (spec §6.4)
// for the engine, interceptor and backup coordinator from YAML or JSON,
// and adapts them into the Config types each component actually takes.
package config

import (
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/interceptor"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

// EngineConfig is the Engine group of spec §6.4.
type EngineConfig struct {
	MaxBlocks              uint64            `yaml:"max_blocks" json:"max_blocks"`
	MemoryLimit            datasize.ByteSize `yaml:"memory_limit_mb" json:"memory_limit_mb"`
	PersistenceEnabled     bool              `yaml:"persistence_enabled" json:"persistence_enabled"`
	PersistencePath        string            `yaml:"persistence_path" json:"persistence_path"`
	LRUCleanupThresholdPct int               `yaml:"lru_cleanup_threshold_pct" json:"lru_cleanup_threshold_pct"`
	MemoryMonitorEnabled   bool              `yaml:"memory_monitor_enabled" json:"memory_monitor_enabled"`
}

// InterceptorConfig is the Interceptor group of spec §6.4.
type InterceptorConfig struct {
	Enabled         bool `yaml:"enabled" json:"enabled"`
	EventBufferSize int  `yaml:"event_buffer_size" json:"event_buffer_size"`
	CallbackThreads int  `yaml:"callback_threads" json:"callback_threads"`
}

// CoordinatorConfig is the Coordinator group of spec §6.4. EncryptionKey is
// hex-encoded in the config file (a raw chacha20poly1305.KeySize-byte key
// does not round-trip through YAML/JSON text safely).
type CoordinatorConfig struct {
	MaxBlocksPerBatch    int               `yaml:"max_blocks_per_batch" json:"max_blocks_per_batch"`
	BatchTimeoutMs       int               `yaml:"batch_timeout_ms" json:"batch_timeout_ms"`
	EnableCompression    bool              `yaml:"enable_compression" json:"enable_compression"`
	EnableEncryption     bool              `yaml:"enable_encryption" json:"enable_encryption"`
	EncryptionKeyHex     string            `yaml:"encryption_key" json:"encryption_key"`
	ErrorRetryMax        int               `yaml:"error_retry_max" json:"error_retry_max"`
	ErrorRetryIntervalS  int               `yaml:"error_retry_interval_s" json:"error_retry_interval_s"`
	ErrorStorePath       string            `yaml:"error_store_path" json:"error_store_path"`
	EnableErrorLogging   bool              `yaml:"enable_error_logging" json:"enable_error_logging"`
	ErrorBufferSize      int               `yaml:"error_buffer_size" json:"error_buffer_size"`
	BackupPath           string            `yaml:"backup_path" json:"backup_path"`
	BackupMaxSize        datasize.ByteSize `yaml:"backup_max_size" json:"backup_max_size"`
	CompressionLevel     int               `yaml:"compression_level" json:"compression_level"`
	AvgBlockBytes        uint64            `yaml:"avg_block_bytes" json:"avg_block_bytes"`
}

// Config is the full recognized configuration document (spec §6.4).
type Config struct {
	Engine      EngineConfig      `yaml:"engine" json:"engine"`
	Interceptor InterceptorConfig `yaml:"interceptor" json:"interceptor"`
	Coordinator CoordinatorConfig `yaml:"coordinator" json:"coordinator"`
}

// Default returns the spec-documented defaults (spec §6.4):
// error_retry_max=10, error_retry_interval_s=5, backup_max_size=1GiB.
func Default() Config {
	return Config{
		Coordinator: CoordinatorConfig{
			MaxBlocksPerBatch:   1024,
			BatchTimeoutMs:      1000,
			ErrorRetryMax:       10,
			ErrorRetryIntervalS: 5,
			ErrorBufferSize:     256,
			BackupMaxSize:       datasize.GB,
			AvgBlockBytes:       4096,
		},
		Interceptor: InterceptorConfig{
			Enabled:         true,
			EventBufferSize: 4096,
			CallbackThreads: 4,
		},
		Engine: EngineConfig{
			LRUCleanupThresholdPct: 80,
		},
	}
}

// Load reads path from fs, decodes it as YAML (or JSON, by extension) on
// top of Default(), and validates the documented constraints (spec §6.4:
// compression_level ∈ {0,1,2,3} when compression is enabled, 0 selecting
// the package default; an encryption key when encryption is enabled).
func Load(fs afero.Fs, path string) (*Config, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errs.Wrap(errs.FileIO, err, "read config file")
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errs.Wrap(errs.InvalidParam, err, "parse config as json")
		}
	} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errs.Wrap(errs.InvalidParam, err, "parse config as yaml")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if c.Coordinator.EnableCompression {
		switch c.Coordinator.CompressionLevel {
		case 0, 1, 2, 3:
		default:
			return errs.New(errs.InvalidParam, "compression_level must be 1, 2 or 3")
		}
	}
	if c.Coordinator.EnableEncryption {
		key, err := c.Coordinator.encryptionKey()
		if err != nil {
			return err
		}
		if len(key) != 32 {
			return errs.New(errs.InvalidParam, "encryption_key must decode to 32 bytes")
		}
	}
	return nil
}

func (c CoordinatorConfig) encryptionKey() ([]byte, error) {
	if c.EncryptionKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKeyHex)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidParam, err, "decode encryption_key as hex")
	}
	return key, nil
}

// ToEngineConfig adapts the Engine group into engine.Config.
func (c EngineConfig) ToEngineConfig() engine.Config {
	cacheCap := 0
	if c.MemoryLimit > 0 {
		entryBytes := uint64(64) // Metadata struct size plus map/bucket overhead
		cacheCap = int(uint64(c.MemoryLimit.Bytes()) * uint64(c.LRUCleanupThresholdOrDefault()) / 100 / entryBytes)
	}
	return engine.Config{
		CleanCacheCapacity: cacheCap,
		MaxBlocks:          c.MaxBlocks,
	}
}

// LRUCleanupThresholdOrDefault returns the configured threshold, or 100
// (no shrinkage) when unset.
func (c EngineConfig) LRUCleanupThresholdOrDefault() int {
	if c.LRUCleanupThresholdPct <= 0 {
		return 100
	}
	return c.LRUCleanupThresholdPct
}

// ToInterceptorConfig adapts the Interceptor group into interceptor.Config.
// Callback is left nil; callers wire their own via the returned struct.
func (c InterceptorConfig) ToInterceptorConfig(dequeueTimeout time.Duration) interceptor.Config {
	workers := c.CallbackThreads
	if workers <= 0 {
		workers = 1
	}
	return interceptor.Config{
		Enabled:        c.Enabled,
		BufferCapacity: c.EventBufferSize,
		WorkerCount:    workers,
		DequeueTimeout: dequeueTimeout,
	}
}

// ToCoordinatorConfig adapts the Coordinator group into backupcoord.Config.
func (c CoordinatorConfig) ToCoordinatorConfig() (backupcoord.Config, error) {
	key, err := c.encryptionKey()
	if err != nil {
		return backupcoord.Config{}, err
	}
	return backupcoord.Config{
		MaxBlocksPerBatch:  c.MaxBlocksPerBatch,
		BatchTimeout:       time.Duration(c.BatchTimeoutMs) * time.Millisecond,
		EnableCompression:  c.EnableCompression,
		EnableEncryption:   c.EnableEncryption,
		EncryptionKey:      key,
		ErrorRetryMax:      c.ErrorRetryMax,
		ErrorRetryInterval: time.Duration(c.ErrorRetryIntervalS) * time.Second,
		ErrorStorePath:     c.ErrorStorePath,
		EnableErrorLogging: c.EnableErrorLogging,
		ErrorBufferSize:    c.ErrorBufferSize,
		BackupPath:         c.BackupPath,
		BackupMaxSize:      uint64(c.BackupMaxSize.Bytes()),
		CompressionLevel:   c.CompressionLevel,
		AvgBlockBytes:      c.AvgBlockBytes,
	}, nil
}

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

// Package plugin exposes the backup driver's C-ABI-shaped entry points
// (spec §6.2) as plain Go functions over one process-wide, mutex-guarded
// singleton, so a cgo or RPC shim can adapt them to whatever calling
// convention a host process needs without this package knowing about it.
package plugin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/backupcoord"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/internal/interceptor"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

const (
	pluginName    = "incremental_bitmap_backup"
	pluginVersion = "1.0.0"
)

// state holds the single process-wide plugin instance, guarded by mu per
// spec §6.2's "plugin guards global state with a single mutex".
type state struct {
	mu sync.Mutex

	initialized bool
	eng         *engine.Engine
	ic          *interceptor.Interceptor
	coord       *backupcoord.Coordinator
	log         *backupcoord.ErrorLog
}

var global state

// Name returns the plugin's stable identifier (spec §6.2: name()).
func Name() string { return pluginName }

// Version returns the plugin's semantic version (spec §6.2: version()).
func Version() string { return pluginVersion }

// Init constructs the engine/interceptor/coordinator from cfg and starts
// the interceptor (spec §6.2: init(config_blob, len)).
func Init(cfg backupcoord.Config, icCfg interceptor.Config, log *backupcoord.ErrorLog) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.initialized {
		return errs.New(errs.InvalidParam, "plugin already initialized")
	}

	eng := engine.New(engine.Config{})
	ic := interceptor.New(eng)
	if err := ic.Init(icCfg); err != nil {
		return err
	}
	if err := ic.Start(context.Background()); err != nil {
		return err
	}

	global.eng = eng
	global.ic = ic
	global.coord = backupcoord.New(eng, cfg, log)
	global.log = log
	global.initialized = true
	return nil
}

// Cleanup stops the interceptor and releases the plugin's global state
// (spec §6.2: cleanup()).
func Cleanup() error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return nil
	}
	err := global.ic.Destroy()
	global.initialized = false
	global.eng = nil
	global.ic = nil
	global.coord = nil
	global.log = nil
	return err
}

func requireInit() error {
	if !global.initialized {
		return errs.New(errs.NotInitialized, "plugin not initialized")
	}
	return nil
}

// GetDirtyBlocks fills out with up to max dirty block ids in [wLo, wHi]
// (spec §6.2: get_dirty_blocks).
func GetDirtyBlocks(wLo, wHi uint64, out []uint64, max int) (int, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return 0, err
	}
	return global.coord.GetDirtyBlocks(wLo, wHi, out, max), nil
}

// CreateIncrementalCursor allocates a cursor and returns its opaque handle
// (spec §6.2: create_incremental_cursor).
func CreateIncrementalCursor(typ backupcoord.CursorType, tLo, tHi int64, wLo, wHi uint64) (string, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return "", err
	}
	return global.coord.CreateIncrementalCursor(typ, tLo, tHi, wLo, wHi), nil
}

// DestroyCursor releases handle (spec §6.2: destroy_cursor).
func DestroyCursor(handle string) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return err
	}
	global.coord.DestroyCursor(handle)
	return nil
}

// GetNextBatch fills out with up to max block ids from handle's cursor
// (spec §6.2: get_next_batch).
func GetNextBatch(handle string, out []uint64, max int) (int, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return 0, err
	}
	return global.coord.GetNextBatch(handle, out, max)
}

// EstimateBackupSize reports block count and estimated bytes for [wLo, wHi]
// (spec §6.2: estimate_backup_size).
func EstimateBackupSize(wLo, wHi uint64, avgBlockBytes uint64) (blocks, bytes uint64, err error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return 0, 0, err
	}
	return global.coord.EstimateSize(wLo, wHi, avgBlockBytes)
}

// ValidateBackup checks that blocks all fall within [wLo, wHi] per the
// engine's current metadata (spec §6.2: validate_backup).
func ValidateBackup(wLo, wHi uint64, blocks []uint64) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return err
	}
	return global.coord.ValidateBackup(wLo, wHi, blocks)
}

// archiveMetadata is the JSON document produced by GenerateMetadata,
// written alongside an archive so a restore tool can identify it without
// reparsing the binary header.
type archiveMetadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	WALLo       uint64 `json:"wal_lo"`
	WALHi       uint64 `json:"wal_hi"`
	BlockCount  uint64 `json:"block_count"`
	ByteSize    uint64 `json:"byte_size"`
}

// GenerateMetadata builds the JSON sidecar document describing a backup
// covering [wLo, wHi] (spec §6.2: generate_metadata).
func GenerateMetadata(wLo, wHi uint64, avgBlockBytes uint64) ([]byte, error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return nil, err
	}
	blocks, bytes, err := global.coord.EstimateSize(wLo, wHi, avgBlockBytes)
	if err != nil {
		return nil, err
	}
	meta := archiveMetadata{
		Name:       pluginName,
		Version:    pluginVersion,
		WALLo:      wLo,
		WALHi:      wHi,
		BlockCount: blocks,
		ByteSize:   bytes,
	}
	buf, err := json.Marshal(meta)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidParam, err, "marshal archive metadata")
	}
	return buf, nil
}

// GetStats reports cumulative backup stats (spec §6.2: get_stats).
func GetStats() (blocks, bytes uint64, durationMs int64, err error) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if err := requireInit(); err != nil {
		return 0, 0, 0, err
	}
	b, by, d := global.coord.GetStats()
	return b, by, d, nil
}

// GetLastError returns the most recently recorded error message (spec
// §6.2: get_last_error).
func GetLastError() string {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return ""
	}
	return global.coord.GetLastError()
}

// GetErrorStats reports error count and retry count (spec §6.2:
// get_error_stats).
func GetErrorStats() (errCount int, retries uint64) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if !global.initialized {
		return 0, 0
	}
	return global.coord.GetErrorStats()
}

// ClearError clears the in-memory error buffer (spec §6.2: clear_error).
func ClearError() {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.initialized {
		global.coord.ClearError()
	}
}

// OnBlockCreate/Update/Flush/Delete submit the host storage engine's
// on_block_* events through the plugin's interceptor, failing with
// NotInitialized before Init like the other entry points.
func OnBlockCreate(blockID, walOffset uint64, ts int64) error {
	global.mu.Lock()
	ic := global.ic
	global.mu.Unlock()
	if ic == nil {
		return errs.New(errs.NotInitialized, "plugin not initialized")
	}
	return ic.OnBlockCreate(blockID, walOffset, ts)
}

func OnBlockUpdate(blockID, walOffset uint64, ts int64) error {
	global.mu.Lock()
	ic := global.ic
	global.mu.Unlock()
	if ic == nil {
		return errs.New(errs.NotInitialized, "plugin not initialized")
	}
	return ic.OnBlockUpdate(blockID, walOffset, ts)
}

func OnBlockFlush(blockID, walOffset uint64, ts int64) error {
	global.mu.Lock()
	ic := global.ic
	global.mu.Unlock()
	if ic == nil {
		return errs.New(errs.NotInitialized, "plugin not initialized")
	}
	return ic.OnBlockFlush(blockID, walOffset, ts)
}

func OnBlockDelete(blockID, walOffset uint64, ts int64) error {
	global.mu.Lock()
	ic := global.ic
	global.mu.Unlock()
	if ic == nil {
		return errs.New(errs.NotInitialized, "plugin not initialized")
	}
	return ic.OnBlockDelete(blockID, walOffset, ts)
}

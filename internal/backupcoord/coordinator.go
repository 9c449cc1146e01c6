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

// Package backupcoord implements the Backup Coordinator: it walks the
// engine's dirty-block index through cursors, packages batches into the
// archive file format, and retries transient failures (spec §4.F, §6.2,
// §6.3).
package backupcoord

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ZhangZui123/tdengine-backup-engine/internal/engine"
	"github.com/ZhangZui123/tdengine-backup-engine/pkg/errs"
)

// Config configures the coordinator (spec §6.4).
type Config struct {
	MaxBlocksPerBatch   int
	BatchTimeout        time.Duration
	EnableCompression   bool
	EnableEncryption    bool
	EncryptionKey       []byte // must be chacha20poly1305.KeySize bytes when EnableEncryption
	ErrorRetryMax       int
	ErrorRetryInterval  time.Duration
	ErrorStorePath      string
	EnableErrorLogging  bool
	ErrorBufferSize     int
	BackupPath          string
	BackupMaxSize       uint64
	AvgBlockBytes       uint64
	CompressionLevel    int // 1=fastest, 2=balanced, 3=best; 0 uses the package default
}

// DefaultConfig returns the spec-documented defaults for the fields that
// have one (spec §6.4): error_retry_max=10, error_retry_interval_s=5,
// backup_max_size=1GiB.
func DefaultConfig() Config {
	return Config{
		MaxBlocksPerBatch:  1024,
		BatchTimeout:       time.Second,
		ErrorRetryMax:      10,
		ErrorRetryInterval: 5 * time.Second,
		BackupMaxSize:      1 << 30,
	}
}

// Coordinator is the Backup Coordinator component.
type Coordinator struct {
	cfg Config
	eng *engine.Engine
	log *ErrorLog

	mu      sync.Mutex
	cursors map[string]*Cursor

	statsBlocks   uint64
	statsBytes    uint64
	statsDuration time.Duration
}

// New constructs a Coordinator over eng. log may be nil to disable error
// recording.
func New(eng *engine.Engine, cfg Config, log *ErrorLog) *Coordinator {
	return &Coordinator{
		eng:     eng,
		cfg:     cfg,
		log:     log,
		cursors: make(map[string]*Cursor),
	}
}

// GetDirtyBlocks is the one-shot (non-cursor) query entry point (spec
// §6.2: get_dirty_blocks).
func (c *Coordinator) GetDirtyBlocks(wLo, wHi uint64, out []uint64, max int) int {
	return c.eng.GetDirtyBlocksByWAL(int64(wLo), int64(wHi), out, max)
}

// CreateIncrementalCursor allocates a new cursor and returns its opaque
// handle (spec §6.2: create_incremental_cursor).
func (c *Coordinator) CreateIncrementalCursor(typ CursorType, tLo, tHi int64, wLo, wHi uint64) string {
	handle := uuid.NewString()
	cur := newCursor(handle, typ, tLo, tHi, wLo, wHi)
	c.mu.Lock()
	c.cursors[handle] = cur
	c.mu.Unlock()
	return handle
}

// DestroyCursor releases a cursor's handle (spec §6.2: destroy_cursor).
func (c *Coordinator) DestroyCursor(handle string) {
	c.mu.Lock()
	delete(c.cursors, handle)
	c.mu.Unlock()
}

// GetNextBatch fills out with up to max block ids from the cursor
// identified by handle (spec §6.2: get_next_batch). The batch size is
// clamped to max_blocks_per_batch regardless of what the caller requests.
func (c *Coordinator) GetNextBatch(handle string, out []uint64, max int) (int, error) {
	c.mu.Lock()
	cur, ok := c.cursors[handle]
	c.mu.Unlock()
	if !ok {
		return 0, errs.New(errs.InvalidParam, "unknown cursor handle")
	}

	batch := adjustBatchSize(max, c.cfg.MaxBlocksPerBatch)
	if batch < len(out) {
		out = out[:batch]
	}

	if !cur.HasMore() {
		return 0, ErrCursorExhausted
	}

	var n int
	// error_retry_max counts retries, so the attempt budget is one more.
	retryErr := withRetry(RetryConfig{MaxAttempts: c.cfg.ErrorRetryMax + 1, Interval: c.cfg.ErrorRetryInterval}, func() error {
		var err error
		n, err = cur.nextBatchLocked(c.eng, out, len(out))
		if err != nil && c.log != nil {
			c.log.Record(err)
			c.log.RecordRetry()
		}
		return err
	})
	if retryErr != nil {
		return 0, retryErr
	}
	return n, nil
}

// RecordBatch updates the coordinator's running stats (get_stats: blocks,
// bytes, duration_ms) after a caller has written a batch to the archive.
func (c *Coordinator) RecordBatch(blocks uint64, bytes uint64, elapsed time.Duration) {
	c.mu.Lock()
	c.statsBlocks += blocks
	c.statsBytes += bytes
	c.statsDuration += elapsed
	c.mu.Unlock()
}

// GetStats returns cumulative backup stats (spec §6.2: get_stats).
func (c *Coordinator) GetStats() (blocks, bytes uint64, durationMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsBlocks, c.statsBytes, c.statsDuration.Milliseconds()
}

// GetLastError returns the most recent error recorded by this coordinator,
// or "" if none (spec §6.2: get_last_error).
func (c *Coordinator) GetLastError() string {
	if c.log == nil {
		return ""
	}
	return c.log.LastError()
}

// GetErrorStats returns the error taxonomy counters (spec §6.2:
// get_error_stats).
func (c *Coordinator) GetErrorStats() (errCount int, retries uint64) {
	if c.log == nil {
		return 0, 0
	}
	return c.log.Stats()
}

// ClearError clears the in-memory error buffer (spec §6.2: clear_error).
func (c *Coordinator) ClearError() {
	if c.log != nil {
		c.log.Clear()
	}
}

// OpenArchive opens an ArchiveWriter at path under fs using this
// coordinator's compression/encryption settings (spec §6.3/§6.4).
func (c *Coordinator) OpenArchive(fs afero.Fs, path string) (*ArchiveWriter, error) {
	var key []byte
	if c.cfg.EnableEncryption {
		key = c.cfg.EncryptionKey
	}
	return OpenArchiveWriter(fs, path, c.cfg.EnableCompression, c.cfg.CompressionLevel, key)
}

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

package backupcoord

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ErrorLog is an append-only, bounded-ring error log backing
// get_last_error/get_error_stats/clear_error (spec §6.2, error_buffer_size).
type ErrorLog struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	enabled bool

	capacity int
	entries  []string
	retries  uint64
}

// NewErrorLog constructs a bounded in-memory error log that also appends
// each entry, when enabled is true, to backup_error_<epoch_ms>.log inside
// the error store directory dir on fs (epoch_ms is the construction time).
func NewErrorLog(fs afero.Fs, dir string, capacity int, enabled bool) *ErrorLog {
	if capacity <= 0 {
		capacity = 64
	}
	path := ""
	if dir != "" {
		path = filepath.Join(dir, fmt.Sprintf("backup_error_%d.log", time.Now().UnixMilli()))
	}
	return &ErrorLog{fs: fs, path: path, capacity: capacity, enabled: enabled}
}

// Record appends err's message, trimming the oldest entry if the log is at
// capacity, and mirrors the entry to the on-disk log file when enabled.
func (l *ErrorLog) Record(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, err.Error())
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
	if l.enabled && l.fs != nil && l.path != "" {
		l.appendLocked(err)
	}
}

// RecordRetry increments the retry counter exposed by get_error_stats.
func (l *ErrorLog) RecordRetry() {
	l.mu.Lock()
	l.retries++
	l.mu.Unlock()
}

func (l *ErrorLog) appendLocked(err error) {
	_ = l.fs.MkdirAll(filepath.Dir(l.path), 0o755)
	f, openErr := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		return
	}
	defer f.Close()
	line := fmt.Sprintf("%s\t%s\n", time.Now().UTC().Format(time.RFC3339Nano), err.Error())
	_, _ = f.Write([]byte(line))
}

// LastError returns the most recently recorded error message, or "" if none.
func (l *ErrorLog) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1]
}

// Stats returns the number of errors currently retained and total retries
// recorded since construction.
func (l *ErrorLog) Stats() (errCount int, retries uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries), l.retries
}

// Clear empties the in-memory error buffer (the on-disk log, if any, is
// left intact as an audit trail).
func (l *ErrorLog) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

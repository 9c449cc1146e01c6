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

// Package storageengine defines the pluggable interface the host database
// exposes to this module (spec §6.1): it is the external collaborator that
// emits block_create/update/flush/delete events and serves raw block
// bytes on demand. The interface, a registry and the FileWatchSource
// reference implementation live here; any real host implementation is out
// of scope.
package storageengine

import (
	"context"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/event"
)

// Source is a pluggable event source backed by a host storage engine.
type Source interface {
	// Init prepares the source with an opaque, implementation-defined
	// configuration blob.
	Init(ctx context.Context, config map[string]string) error
	// InstallInterception begins observing the host engine (e.g. hooking
	// its WAL writer); UninstallInterception reverses it.
	InstallInterception(ctx context.Context) error
	UninstallInterception(ctx context.Context) error
	// TriggerEvent is used by tests and by real implementations that
	// observe file/WAL changes out of band from a push API.
	TriggerEvent(e *event.Event) error
	// GetStats reports the number of events this source has observed and
	// the number it was unable to deliver downstream.
	GetStats() (processed, dropped uint64)
	// IsSupported reports whether this source can actually intercept
	// events in the current runtime environment.
	IsSupported() bool
	// GetEngineName identifies the host storage engine this source talks
	// to, e.g. "tdengine".
	GetEngineName() string
}

// Factory constructs a new Source instance.
type Factory func() Source

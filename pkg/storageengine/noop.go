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

package storageengine

import (
	"context"

	"github.com/ZhangZui123/tdengine-backup-engine/pkg/event"
)

// noopSource is returned by Registry.Get for an unregistered name; its
// IsSupported always reports false so callers can fail soft.
type noopSource struct{ name string }

func (noopSource) Init(context.Context, map[string]string) error     { return nil }
func (noopSource) InstallInterception(context.Context) error         { return nil }
func (noopSource) UninstallInterception(context.Context) error       { return nil }
func (noopSource) TriggerEvent(*event.Event) error                   { return nil }
func (noopSource) GetStats() (processed, dropped uint64)             { return 0, 0 }
func (noopSource) IsSupported() bool                                 { return false }
func (n noopSource) GetEngineName() string                           { return n.name }

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

// Package logging builds the module's single *zap.Logger, shared by the
// engine, interceptor and backup coordinator for structured, leveled
// output (spec's ambient logging stack).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger. Level defaults to info; an empty Level
// string is treated as "info".
type Options struct {
	Level      string // debug, info, warn, error
	Encoding   string // "json" or "console"; defaults to "json"
	OutputPath string // defaults to "stderr"
}

// New builds a *zap.Logger from opts, falling back to production defaults
// for anything unset.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "json"
	}
	output := opts.OutputPath
	if output == "" {
		output = "stderr"
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Noop returns a logger that discards everything, for tests and for
// callers that never configured logging.
func Noop() *zap.Logger { return zap.NewNop() }

// Field re-exports the zap field constructors this module's components
// use, so callers never need a direct zap import alongside logging.
var (
	String = zap.String
	Uint64 = zap.Uint64
	Int    = zap.Int
	Error  = zap.Error
	Bool   = zap.Bool
)

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

// Package errs defines the error taxonomy shared across the engine,
// interceptor and backup coordinator, per the wire-stable numeric codes
// the backup archive and plugin boundary need to survive a process
// restart or a cross-language caller.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, wire-level error classification. Negative numeric
// codes signal failure to callers across a plugin boundary.
type Kind int

const (
	InvalidParam Kind = -(iota + 1)
	NotInitialized
	OutOfMemory
	FileIO
	Network
	Timeout
	DataCorruption
	PermissionDenied
	DiskFull
	ConnectionLost
	RetryExhausted
	InvalidStateTransition
	BlockNotFound
)

var kindNames = map[Kind]string{
	InvalidParam:           "InvalidParam",
	NotInitialized:         "NotInitialized",
	OutOfMemory:            "OutOfMemory",
	FileIO:                 "FileIO",
	Network:                "Network",
	Timeout:                "Timeout",
	DataCorruption:         "DataCorruption",
	PermissionDenied:       "PermissionDenied",
	DiskFull:               "DiskFull",
	ConnectionLost:         "ConnectionLost",
	RetryExhausted:         "RetryExhausted",
	InvalidStateTransition: "InvalidStateTransition",
	BlockNotFound:          "BlockNotFound",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Retryable reports whether an operation that failed with this Kind is
// worth retrying, per spec's retryable set: Network, Timeout,
// ConnectionLost, FileIO.
func (k Kind) Retryable() bool {
	switch k {
	case Network, Timeout, ConnectionLost, FileIO:
		return true
	default:
		return false
	}
}

// Error is the concrete error type returned across every component
// boundary in this module. It never escapes as a panic; worker goroutines
// in the interceptor count Errors instead of propagating them.
type Error struct {
	Kind Kind
	Msg  string
	// Cause is the wrapped underlying error, if any (e.g. an os.PathError
	// for a FileIO failure). Accessible via errors.Unwrap.
	Cause error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// InvalidTransition builds the InvalidStateTransition error spec.md §3
// requires, naming both endpoints of the forbidden edge.
func InvalidTransition(from, to string) *Error {
	msg := fmt.Sprintf("cannot transition from %s to %s", from, to)
	if from == "DELETED" {
		msg = "DELETED is terminal"
	}
	return New(InvalidStateTransition, msg)
}

// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package ferr is the closed domain error taxonomy of spec.md §7. Every
// layer below the dispatcher raises one of these kinds; the dispatcher is
// the sole translator to POSIX errno (spec.md §4.7, §7 "Propagation").
package ferr

import "fmt"

// Kind is a closed set of domain-level failure categories.
type Kind int

const (
	// NoEntry is a missing path component.
	NoEntry Kind = iota
	// PermissionDenied is an access-mask failure against mode/uid/gid.
	PermissionDenied
	// AlreadyExists is a name collision on create.
	AlreadyExists
	// MissingObject is a backing object absent during a read that
	// expected content.
	MissingObject
	// LockContended is an OSIO advisory lock already held elsewhere.
	LockContended
	// NotLeader is a peer reporting it no longer owns the directory.
	NotLeader
	// TransportFailure is an RPC channel failure.
	TransportFailure
	// Unsupported is a cross-node combination not implemented yet.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case NoEntry:
		return "no-entry"
	case PermissionDenied:
		return "permission-denied"
	case AlreadyExists:
		return "already-exists"
	case MissingObject:
		return "missing-object"
	case LockContended:
		return "lock-contended"
	case NotLeader:
		return "not-leader"
	case TransportFailure:
		return "transport-failure"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a domain-level failure carrying a closed Kind plus a message.
// BytesSoFar is only meaningful for MissingObject, carrying a short read's
// byte count for accounting at the dispatcher.
type Error struct {
	Kind       Kind
	Msg        string
	BytesSoFar int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds a *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewMissingObject builds a MissingObject error carrying a short read's
// byte count.
func NewMissingObject(bytesSoFar int, format string, args ...any) *Error {
	return &Error{Kind: MissingObject, Msg: fmt.Sprintf(format, args...), BytesSoFar: bytesSoFar}
}

// Is lets errors.Is match a *Error by Kind, e.g. errors.Is(err, ferr.Of(ferr.NoEntry)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Of returns a sentinel *Error of the given kind, suitable only for use
// with errors.Is — its Msg and BytesSoFar fields are not meaningful.
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

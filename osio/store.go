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
// Package osio is the segmented object-store I/O layer: it splits logical
// keys into fixed-size backing objects, brackets every access with an
// advisory lock, and stitches reads/writes across object boundaries. See
// spec.md §4.1.
package osio

import (
	"context"
	"errors"
	"fmt"
)

// BackingStore is the minimal contract OSIO needs from whatever actually
// stores bytes: whole- or sub-object reads and writes addressed by a single
// opaque object name, plus existence and removal. It has no notion of a
// logical key spanning multiple objects — that's OSIO's job.
type BackingStore interface {
	ReadObject(ctx context.Context, name string, offset, length int64) (data []byte, err error)
	WriteObject(ctx context.Context, name string, offset int64, data []byte) (n int, err error)
	StatObject(ctx context.Context, name string) (exists bool, size int64, err error)
	RemoveObject(ctx context.Context, name string) error
}

// errObjectNotFound is returned by a BackingStore's ReadObject when the
// named object does not exist. OSIO turns this into ErrMissingObject,
// carrying the bytes already stitched together.
var errObjectNotFound = fmt.Errorf("osio: backing object not found")

// ErrObjectNotFound lets a BackingStore implementation report a missing
// object in a way Store.Read recognizes.
func ErrObjectNotFound() error { return errObjectNotFound }

// IsObjectNotFound reports whether err is (or wraps) the backing store's
// not-found sentinel.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, errObjectNotFound)
}

// Store is the segmented OSIO layer built on top of a BackingStore.
type Store struct {
	backing    BackingStore
	objectSize int64
	objectBits uint
	objectMask int64
	locks      *lockManager
}

// NewStore builds a Store that splits logical keys into objects of
// objectSize bytes, which must be a power of two (4 MiB in the reference).
func NewStore(backing BackingStore, objectSize int64) *Store {
	bits := uint(0)
	for (int64(1) << bits) < objectSize {
		bits++
	}
	return &Store{
		backing:    backing,
		objectSize: objectSize,
		objectBits: bits,
		objectMask: ^(objectSize - 1),
		locks:      newLockManager(),
	}
}

func (s *Store) segmentKey(key string, segment int64) string {
	return fmt.Sprintf("%s$%d", key, segment)
}

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
package clientreg

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
)

// InoAllocator hands out per-client monotonic inode numbers, persisted as
// ino_offset$<client_id> (little-endian uint64 of the next number to
// issue), per spec.md §3 "Inode-id space" and §6 "Persisted keys".
type InoAllocator struct {
	store    *osio.Store
	clientID uint32
}

// NewInoAllocator builds an allocator for the given client id.
func NewInoAllocator(store *osio.Store, clientID uint32) *InoAllocator {
	return &InoAllocator{store: store, clientID: clientID}
}

// clientBits is how many low bits of a 64-bit ino are reserved for the
// per-client counter; the remaining high bits encode the client id, so
// counters from distinct clients can never collide per spec.md's
// inode-uniqueness invariant.
const clientBits = 40

// Next allocates and persists the next inode number for this client. The
// read-modify-write is bracketed by an exclusive OSIO lock on this
// client's own counter key, so concurrent allocators within one client
// (there should only ever be one, but nothing stops another from trying)
// can't observe or grant the same number twice.
func (a *InoAllocator) Next(ctx context.Context) (uint64, error) {
	key := metadata.InoOffsetKey(a.clientID)

	unlock, err := a.store.LockExclusive(key)
	if err != nil {
		return 0, fmt.Errorf("clientreg: %w", err)
	}
	defer unlock()

	counter, err := a.readCounterLocked(ctx, key)
	if err != nil {
		return 0, err
	}

	ino := (uint64(a.clientID) << clientBits) | counter
	if err := a.writeCounterLocked(ctx, key, counter+1); err != nil {
		return 0, err
	}
	return ino, nil
}

func (a *InoAllocator) readCounterLocked(ctx context.Context, key string) (uint64, error) {
	size, exists, err := a.store.Size(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists || size == 0 {
		return 0, nil
	}

	data, _, err := a.store.Read(ctx, key, 0, size)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("clientreg: %s has %d bytes, want 8", key, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (a *InoAllocator) writeCounterLocked(ctx context.Context, key string, next uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], next)
	_, err := a.store.Write(ctx, key, 0, buf[:])
	return err
}

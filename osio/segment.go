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
package osio

import "context"

// Read stitches together a logical read of length bytes at offset from key,
// splitting it across backing objects of the store's fixed object size per
// spec §4.1. It returns the number of bytes read; on success that equals
// length unless a backing object holds fewer bytes than the range asks of
// it, in which case only the bytes it holds are returned for that segment.
// If a touched backing object doesn't exist, it fails with ErrMissingObject
// carrying the bytes read so far.
func (s *Store) Read(ctx context.Context, key string, offset, length int64) ([]byte, int, error) {
	out := make([]byte, 0, length)

	cursor := offset
	stop := offset + length
	for cursor < stop {
		segment := cursor >> s.objectBits
		objKey := s.segmentKey(key, segment)

		nextBound := (cursor & s.objectMask) + s.objectSize
		subLen := min(nextBound-cursor, stop-cursor)
		subOffset := cursor & ^s.objectMask

		if err := s.locks.tryLockShared(objKey); err != nil {
			return out, len(out), err
		}
		data, err := s.backing.ReadObject(ctx, objKey, subOffset, subLen)
		s.locks.unlockShared(objKey)

		if IsObjectNotFound(err) {
			return out, len(out), &ErrMissingObject{Key: objKey, BytesSoFar: len(out)}
		}
		if err != nil {
			return out, len(out), err
		}

		out = append(out, data...)
		cursor = nextBound
	}

	return out, len(out), nil
}

// Write stitches together a logical write of data at offset into key,
// splitting it across backing objects of the store's fixed object size.
// It returns the number of bytes written; on success that equals
// len(data).
func (s *Store) Write(ctx context.Context, key string, offset int64, data []byte) (int, error) {
	cursor := offset
	stop := offset + int64(len(data))
	written := 0

	for cursor < stop {
		segment := cursor >> s.objectBits
		objKey := s.segmentKey(key, segment)

		nextBound := (cursor & s.objectMask) + s.objectSize
		subLen := min(nextBound-cursor, stop-cursor)
		subOffset := cursor & ^s.objectMask

		chunk := data[cursor-offset : cursor-offset+subLen]

		if err := s.locks.tryLockExclusive(objKey); err != nil {
			return written, err
		}
		n, err := s.backing.WriteObject(ctx, objKey, subOffset, chunk)
		s.locks.unlockExclusive(objKey)

		if err != nil {
			return written, err
		}
		written += n
		cursor = nextBound
	}

	return written, nil
}

// LockExclusive brackets a read-modify-write critical section over key's
// first segment, for callers (like clientreg's client-id allocator) that
// need to read and then write a small logical object atomically rather
// than as two independent segment accesses. Returns a function that
// releases the lock.
func (s *Store) LockExclusive(key string) (func(), error) {
	objKey := s.segmentKey(key, 0)
	if err := s.locks.tryLockExclusive(objKey); err != nil {
		return nil, err
	}
	return func() { s.locks.unlockExclusive(objKey) }, nil
}

// Exist reports whether key has at least one backing object (its first
// segment), treating "not found" as a clean false per spec §4.1.
func (s *Store) Exist(ctx context.Context, key string) (bool, error) {
	objKey := s.segmentKey(key, 0)
	exists, _, err := s.backing.StatObject(ctx, objKey)
	return exists, err
}

// Size returns the byte length of key's first segment, for callers (like
// clientreg) that keep a whole small logical object in a single segment
// and need to know how much of it to read back.
func (s *Store) Size(ctx context.Context, key string) (int64, bool, error) {
	objKey := s.segmentKey(key, 0)
	exists, size, err := s.backing.StatObject(ctx, objKey)
	return size, exists, err
}

// Remove deletes the segments of key from the first one onward, stopping
// at the first segment that does not exist. Removal is idempotent: absence
// of a segment is not an error, matching spec §4.1 "Existence and removal".
func (s *Store) Remove(ctx context.Context, key string) error {
	for segment := int64(0); ; segment++ {
		objKey := s.segmentKey(key, segment)
		exists, _, err := s.backing.StatObject(ctx, objKey)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := s.backing.RemoveObject(ctx, objKey); err != nil {
			return err
		}
	}
}

// RemoveUpTo deletes every segment of key needed to cover a logical object
// of the given size, used by unlink/truncate-to-zero where the caller
// already knows how large the file was and Remove's probe-until-missing
// heuristic would stop too early on a sparse file.
func (s *Store) RemoveUpTo(ctx context.Context, key string, size int64) error {
	if size <= 0 {
		return s.Remove(ctx, key)
	}
	segments := (size + s.objectSize - 1) >> s.objectBits
	for segment := int64(0); segment < segments; segment++ {
		objKey := s.segmentKey(key, segment)
		if err := s.backing.RemoveObject(ctx, objKey); err != nil {
			return err
		}
	}
	return nil
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

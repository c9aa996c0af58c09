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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemStore(), 16)

	data := []byte("hello segmented world, spanning several objects")
	n, err := s.Write(ctx, "file1", 3, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out, n, err := s.Read(ctx, "file1", 3, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, out)
}

func TestStore_SegmentsAreIndependentObjects(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	s := NewStore(mem, 16)

	_, err := s.Write(ctx, "file1", 0, []byte("0123456789abcdef"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "file1", 16, []byte("ZYXWVUTSRQPONMLK"))
	require.NoError(t, err)

	exists0, _, err := mem.StatObject(ctx, "file1$0")
	require.NoError(t, err)
	exists1, _, err := mem.StatObject(ctx, "file1$1")
	require.NoError(t, err)
	assert.True(t, exists0)
	assert.True(t, exists1)

	out, _, err := s.Read(ctx, "file1", 0, 32)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdefZYXWVUTSRQPONMLK", string(out))
}

func TestStore_ReadMissingSegmentReportsBytesSoFar(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemStore(), 16)

	_, err := s.Write(ctx, "file1", 0, []byte("0123456789abcdef"))
	require.NoError(t, err)

	out, n, err := s.Read(ctx, "file1", 0, 32)
	require.Error(t, err)

	var missing *ErrMissingObject
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "file1$1", missing.Key)
	assert.Equal(t, 16, missing.BytesSoFar)
	assert.Equal(t, 16, n)
	assert.Equal(t, "0123456789abcdef", string(out))
}

func TestStore_ExistAndRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemStore(), 16)

	exists, err := s.Exist(ctx, "file1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Write(ctx, "file1", 0, []byte("0123456789abcdefZYXW"))
	require.NoError(t, err)

	exists, err = s.Exist(ctx, "file1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Remove(ctx, "file1"))

	exists, err = s.Exist(ctx, "file1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_RemoveUpToSparseFile(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	s := NewStore(mem, 16)

	// Write only the last segment of a logical 48-byte file, leaving the
	// earlier segments absent (sparse), the way truncate-then-seek-write
	// can produce on a real filesystem.
	_, err := s.Write(ctx, "file1", 32, []byte("0123456789abcdef"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveUpTo(ctx, "file1", 48))

	exists, _, err := mem.StatObject(ctx, "file1$2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_SizeReportsBackingObjectLength(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemStore(), 16)

	size, exists, err := s.Size(ctx, "client.list")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int64(0), size)

	_, err = s.Write(ctx, "client.list", 0, []byte("ooxoo"))
	require.NoError(t, err)

	size, exists, err = s.Size(ctx, "client.list")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(5), size)
}

func TestStore_ConcurrentReadersAllowedWriterExcluded(t *testing.T) {
	s := NewStore(NewMemStore(), 16)

	require.NoError(t, s.locks.tryLockShared("file1$0"))
	require.NoError(t, s.locks.tryLockShared("file1$0"))

	err := s.locks.tryLockExclusive("file1$0")
	var contended *ErrLockContended
	require.ErrorAs(t, err, &contended)
	assert.Equal(t, "file1$0", contended.Key)

	s.locks.unlockShared("file1$0")
	s.locks.unlockShared("file1$0")

	require.NoError(t, s.locks.tryLockExclusive("file1$0"))
	err = s.locks.tryLockShared("file1$0")
	require.ErrorAs(t, err, &contended)
	s.locks.unlockExclusive("file1$0")
}

func TestStore_LockExclusiveHelper(t *testing.T) {
	s := NewStore(NewMemStore(), 16)

	release, err := s.LockExclusive("client.list")
	require.NoError(t, err)

	_, err = s.LockExclusive("client.list")
	var contended *ErrLockContended
	require.ErrorAs(t, err, &contended)

	release()

	_, err = s.LockExclusive("client.list")
	require.NoError(t, err)
}

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
	"testing"

	"github.com/clusterfs/clusterfs/osio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInoAllocator_MonotonicWithinClient(t *testing.T) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 16)
	a := NewInoAllocator(store, 0)

	first, err := a.Next(ctx)
	require.NoError(t, err)
	second, err := a.Next(ctx)
	require.NoError(t, err)
	third, err := a.Next(ctx)
	require.NoError(t, err)

	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

// TestInoAllocator_NoCollisionAcrossClients drives M allocations each on
// two distinct client ids sharing one backing store and checks that no
// resulting inode number repeats, per spec.md §8 property #6.
func TestInoAllocator_NoCollisionAcrossClients(t *testing.T) {
	ctx := context.Background()
	backing := osio.NewMemStore()
	store := osio.NewStore(backing, 16)

	a1 := NewInoAllocator(store, 1)
	a2 := NewInoAllocator(store, 2)

	const m = 50
	seen := make(map[uint64]bool)

	for i := 0; i < m; i++ {
		ino, err := a1.Next(ctx)
		require.NoError(t, err)
		require.False(t, seen[ino], "client 1 produced a repeated ino %d", ino)
		seen[ino] = true

		ino, err = a2.Next(ctx)
		require.NoError(t, err)
		require.False(t, seen[ino], "client 2 produced a repeated ino %d", ino)
		seen[ino] = true
	}

	assert.Len(t, seen, 2*m)
}

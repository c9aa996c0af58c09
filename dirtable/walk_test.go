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
package dirtable

import (
	"context"
	"os"
	"testing"

	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/lease"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLeases always grants, simulating a single-client mount where no
// directory is ever contended.
type fakeLeases struct{}

func (fakeLeases) Acquire(ino uint64) (lease.AcquireResult, error) {
	return lease.AcquireResult{Owned: true}, nil
}

type fakeLoader struct {
	inodes map[uint64]*metadata.Inode
}

func (f *fakeLoader) LoadInode(ctx context.Context, ino uint64) (*metadata.Inode, error) {
	return f.inodes[ino], nil
}

type fakeResolver struct {
	replies map[string]int64
}

func (f *fakeResolver) CheckChildInode(ctx context.Context, leaderAddr string, parentIno uint64, filename string) (int64, error) {
	ino, ok := f.replies[filename]
	if !ok {
		return -1, nil
	}
	return ino, nil
}

func newWalkerFixture(t *testing.T) (*Walker, *Table, *osio.Store) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 4096)
	tables := New()

	root := dentrytable.NewLocal(metadata.RootIno, store)
	aInode := &metadata.Inode{Ino: 2, Mode: os.ModeDir | 0755}
	require.NoError(t, root.CreateChild(ctx, "a", aInode))
	tables.Create(metadata.RootIno, root)

	loader := &fakeLoader{inodes: map[uint64]*metadata.Inode{}}
	walker := NewWalker(tables, fakeLeases{}, &fakeResolver{}, loader, store)
	return walker, tables, store
}

func TestWalker_SingleComponentLookup(t *testing.T) {
	walker, _, _ := newWalkerFixture(t)

	ref, err := walker.Walk(context.Background(), "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ref.Ino)
}

func TestWalker_MissingComponentIsNoEntry(t *testing.T) {
	walker, _, _ := newWalkerFixture(t)

	_, err := walker.Walk(context.Background(), "/nope", nil)
	assert.Error(t, err)
}

// TestWalker_PathWalkTerminatesAfterDPlusOneLookups exercises spec.md §8
// property #7: the D+1 lookups of a depth-D walk are the root table plus
// one check_child_inode per component; the test counts those D
// per-component checks, so a resolved hop is never revisited.
func TestWalker_PathWalkTerminatesAfterDPlusOneLookups(t *testing.T) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 4096)
	tables := New()

	root := dentrytable.NewLocal(metadata.RootIno, store)
	require.NoError(t, root.CreateChild(ctx, "a", &metadata.Inode{Ino: 2, Mode: os.ModeDir | 0755}))
	tables.Create(metadata.RootIno, root)

	aTable := dentrytable.NewLocal(2, store)
	require.NoError(t, aTable.CreateChild(ctx, "b", &metadata.Inode{Ino: 3, Mode: os.ModeDir | 0755}))
	tables.Create(2, aTable)

	bTable := dentrytable.NewLocal(3, store)
	require.NoError(t, bTable.CreateChild(ctx, "c", &metadata.Inode{Ino: 4, Mode: 0644}))
	tables.Create(3, bTable)

	loader := &fakeLoader{}
	walker := NewWalker(tables, fakeLeases{}, &fakeResolver{}, loader, store)

	hops := 0
	ref, err := walker.Walk(ctx, "/a/b/c", func(ref dentrytable.ChildRef, isLeaf bool) error {
		hops++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), ref.Ino)
	assert.Equal(t, 3, hops, "depth-3 path should check exactly 3 components")
}

func TestWalker_CreatesRemoteDentryTableOnLeaseDenial(t *testing.T) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 4096)
	tables := New()

	root := dentrytable.NewLocal(metadata.RootIno, store)
	require.NoError(t, root.CreateChild(ctx, "peer-dir", &metadata.Inode{Ino: 9, Mode: os.ModeDir | 0755}))
	tables.Create(metadata.RootIno, root)

	leases := &denyingLeases{forwardAddr: "peer:9000"}
	walker := NewWalker(tables, leases, &fakeResolver{replies: map[string]int64{"f": 10}}, &fakeLoader{}, store)

	ref, err := walker.Walk(ctx, "/peer-dir/f", nil)
	require.NoError(t, err)
	assert.True(t, ref.IsRemote())
	assert.Equal(t, "peer:9000", ref.RemoteAddr)

	dt, ok := tables.Get(9)
	require.True(t, ok)
	assert.Equal(t, dentrytable.Remote, dt.Loc)
}

// TestWalker_ResolveChildAttachesDentryTableForDirectory exercises the
// single-hop entry point the kernel-glue adapter uses: resolving a fresh
// subdirectory by parent ino + name must register its dentry table exactly
// as a full path Walk would, so a later op addressed by ChildRef (not by
// path) can find it via the directory table registry.
func TestWalker_ResolveChildAttachesDentryTableForDirectory(t *testing.T) {
	walker, tables, _ := newWalkerFixture(t)

	ref, err := walker.ResolveChild(context.Background(), metadata.RootIno, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ref.Ino)

	dt, ok := tables.Get(2)
	require.True(t, ok, "resolving a directory child should attach its dentry table")
	assert.Equal(t, dentrytable.Local, dt.Loc)
}

// TestWalker_ResolveChildLeavesFileUnattached mirrors Walk's own behavior:
// a plain file has no lease or dentry table of its own, so resolving one by
// name should not register an entry for it.
func TestWalker_ResolveChildLeavesFileUnattached(t *testing.T) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 4096)
	tables := New()

	root := dentrytable.NewLocal(metadata.RootIno, store)
	require.NoError(t, root.CreateChild(ctx, "f", &metadata.Inode{Ino: 5, Mode: 0644}))
	tables.Create(metadata.RootIno, root)

	walker := NewWalker(tables, fakeLeases{}, &fakeResolver{}, &fakeLoader{}, store)

	ref, err := walker.ResolveChild(ctx, metadata.RootIno, "f")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ref.Ino)

	_, ok := tables.Get(5)
	assert.False(t, ok)
}

type denyingLeases struct {
	forwardAddr string
}

func (d *denyingLeases) Acquire(ino uint64) (lease.AcquireResult, error) {
	return lease.AcquireResult{Owned: false, ForwardAddr: d.forwardAddr}, nil
}

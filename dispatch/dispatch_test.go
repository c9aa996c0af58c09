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
package dispatch_test

import (
	"context"
	"net"
	"net/rpc"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterfs/clusterfs/clientreg"
	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/dirtable"
	"github.com/clusterfs/clusterfs/dispatch"
	"github.com/clusterfs/clusterfs/internal/clock"
	"github.com/clusterfs/clusterfs/internal/logger"
	"github.com/clusterfs/clusterfs/lease"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
	"github.com/clusterfs/clusterfs/remoteops"
)

// fakeLeaseTransport forwards directly into a shared lease.Table, skipping
// the network, the same pattern lease/client_test.go uses.
type fakeLeaseTransport struct {
	table *lease.Table
}

func (f *fakeLeaseTransport) Acquire(req lease.AcquireRequest) (lease.AcquireResponse, error) {
	var svc lease.CoordinatorService
	svc.Table = f.table
	var resp lease.AcquireResponse
	err := svc.Acquire(&req, &resp)
	return resp, err
}

// resolverAdapter adapts remoteops.Client's ctx-less CheckChildInode to the
// context.Context-shaped dirtable.RemoteResolver the Walker expects, mirroring
// cmd/mount.go's own adapter of the same name.
type resolverAdapter struct {
	client *remoteops.Client
}

func (r resolverAdapter) CheckChildInode(ctx context.Context, leaderAddr string, parentIno uint64, filename string) (int64, error) {
	return r.client.CheckChildInode(leaderAddr, parentIno, filename)
}

func bootstrapRoot(t *testing.T, ctx context.Context, store *osio.Store, clk clock.Clock) {
	t.Helper()
	now := clk.Now()
	root := &metadata.Inode{
		Ino: metadata.RootIno, Mode: os.ModeDir | 0755, Nlink: 2,
		Atime: now, Mtime: now, Ctime: now, Loc: metadata.Local,
	}
	_, err := store.Write(ctx, metadata.InodeKey(metadata.RootIno), 0, root.Serialize())
	require.NoError(t, err)

	dentry := metadata.NewDentry(metadata.RootIno)
	_, err = store.Write(ctx, metadata.DentryKey(metadata.RootIno), 0, dentry.Serialize())
	require.NoError(t, err)
}

// client bundles one mounted client's wiring, enough to exercise the
// dispatcher's path-addressed surface and, when given a distinct selfAddr
// and RPC listener, to act as a forwarding peer for another client.
type client struct {
	disp      *dispatch.Dispatcher
	env       *dispatch.Env
	dirTables *dirtable.Table
}

// newClient builds one mounted client against store and leaseTable, with
// clientID distinguishing its inode-number space from any other client
// sharing the same store (spec.md §3 "Inode-id space").
func newClient(t *testing.T, ctx context.Context, store *osio.Store, leaseTable *lease.Table, clk clock.Clock, selfAddr string, clientID uint32) *client {
	t.Helper()

	dirTables := dirtable.New()
	rootTable := dentrytable.NewLocal(metadata.RootIno, store)
	dirTables.Create(metadata.RootIno, rootTable)

	leaseClient := lease.NewClient(selfAddr, &fakeLeaseTransport{table: leaseTable}, clk)
	remoteClient := remoteops.NewClient()
	inoAlloc := clientreg.NewInoAllocator(store, clientID)

	env := &dispatch.Env{
		Store:     store,
		DirTables: dirTables,
		Leases:    leaseClient,
		Remote:    remoteClient,
		InoAlloc:  inoAlloc,
		Clock:     clk,
		Log:       logger.Default("dispatch-test"),
		SelfAddr:  selfAddr,
	}
	disp := dispatch.New(env)
	env.Walker = dirtable.NewWalker(dirTables, leaseClient, resolverAdapter{remoteClient}, disp, store)

	require.NoError(t, rootTable.PullChildMetadata(ctx, disp.LoadInode))

	return &client{disp: disp, env: env, dirTables: dirTables}
}

// serve starts c as a remoteops peer on a loopback port, returning the
// address other clients should forward to.
func (c *client) serve(t *testing.T) string {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, (&remoteops.Service{Handler: c.disp}).Register(server))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go server.Accept(listener)
	return listener.Addr().String()
}

func TestDispatcher_MkDirThenGetAttr(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 4096)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	c := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)

	errno := c.disp.MkDirPath(ctx, "/docs", 0755)
	require.Equal(t, 0, errno)

	in, errno := c.disp.GetAttrPath(ctx, "/docs")
	require.Equal(t, 0, errno)
	assert.True(t, in.IsDir())
	assert.Equal(t, os.FileMode(0755), in.Mode.Perm())
}

func TestDispatcher_CreateWriteRead(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 4096)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	c := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)

	_, errno := c.disp.CreatePath(ctx, "/hello.txt", 0644)
	require.Equal(t, 0, errno)

	payload := []byte("hello, clusterfs")
	n, errno := c.disp.WritePath(ctx, "/hello.txt", payload, 0)
	require.Equal(t, 0, errno)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, errno = c.disp.ReadPath(ctx, "/hello.txt", buf, 0)
	require.Equal(t, 0, errno)
	assert.Equal(t, payload, buf[:n])

	in, errno := c.disp.GetAttrPath(ctx, "/hello.txt")
	require.Equal(t, 0, errno)
	assert.Equal(t, int64(len(payload)), in.Size, "a write must advance the inode's recorded size")
}

// TestDispatcher_WriteAcrossSegmentBoundary exercises OSIO's segmentation:
// an object size small enough that a single logical write (40 bytes at
// offset 10 over 16-byte objects) spans four backing objects, read back
// through the same boundaries.
func TestDispatcher_WriteAcrossSegmentBoundary(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 16)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	c := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)

	_, errno := c.disp.CreatePath(ctx, "/big.bin", 0644)
	require.Equal(t, 0, errno)

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, errno := c.disp.WritePath(ctx, "/big.bin", payload, 10)
	require.Equal(t, 0, errno)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, errno = c.disp.ReadPath(ctx, "/big.bin", buf, 10)
	require.Equal(t, 0, errno)
	assert.Equal(t, payload, buf[:n])

	in, errno := c.disp.GetAttrPath(ctx, "/big.bin")
	require.Equal(t, 0, errno)
	assert.Equal(t, int64(10+len(payload)), in.Size, "size must account for the write's starting offset")
}

// TestDispatcher_CrossClientForwardedMkDirAndReadDir covers spec.md §8's
// forwarding scenario: client A owns "/team"'s lease (seeded directly into
// the shared coordinator table, simulating that A has already established
// leadership with it), client B resolves "/team" to a REMOTE dentry table
// and must forward both a mutating op (mkdir) and a read-only one (readdir)
// to A over the real RPC surface.
func TestDispatcher_CrossClientForwardedMkDirAndReadDir(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 4096)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	a := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)
	aAddr := a.serve(t)

	errno := a.disp.MkDirPath(ctx, "/team", 0755)
	require.Equal(t, 0, errno)

	teamRef, err := a.env.Walker.Walk(ctx, "/team", nil)
	require.NoError(t, err)
	granted, _, effectiveAddr := leaseTable.Acquire(teamRef.Ino, aAddr)
	require.True(t, granted)
	require.Equal(t, aAddr, effectiveAddr)

	b := newClient(t, ctx, store, leaseTable, clk, "client-b:9001", 2)

	errno = b.disp.MkDirPath(ctx, "/team/proj", 0755)
	require.Equal(t, 0, errno, "mkdir under a remote-owned parent should forward to the leader")

	entries, errno := b.disp.ReadDirPath(ctx, "/team")
	require.Equal(t, 0, errno, "readdir of a remote-owned directory should forward, not read an empty local table")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "proj")

	entriesFromA, errno := a.disp.ReadDirPath(ctx, "/team")
	require.Equal(t, 0, errno)
	assert.Equal(t, len(entries), len(entriesFromA), "both clients should observe the same listing")
}

// TestDispatcher_LeaseExpiryAllowsNewOwner exercises the coordinator's CAS
// renewal: once a granted lease's deadline has passed, a second client's
// Acquire for the same ino succeeds and becomes the new leader, per
// lease.Table.Acquire's documented first-past-the-deadline-wins rule.
func TestDispatcher_LeaseExpiryAllowsNewOwner(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 4096)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	a := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)

	errno := a.disp.MkDirPath(ctx, "/shared", 0755)
	require.Equal(t, 0, errno)

	teamRef, err := a.env.Walker.Walk(ctx, "/shared", nil)
	require.NoError(t, err)

	granted, _, effectiveAddr := leaseTable.Acquire(teamRef.Ino, "client-a:9000")
	require.True(t, granted)
	require.Equal(t, "client-a:9000", effectiveAddr)

	clk.AdvanceTime(lease.Period)

	granted, _, effectiveAddr = leaseTable.Acquire(teamRef.Ino, "client-c:9002")
	assert.True(t, granted, "a new client should be able to claim an expired lease")
	assert.Equal(t, "client-c:9002", effectiveAddr)
}

func TestDispatcher_SameParentRename(t *testing.T) {
	ctx := context.Background()
	clk := &clock.SimulatedClock{}
	store := osio.NewStore(osio.NewMemStore(), 4096)
	bootstrapRoot(t, ctx, store, clk)
	leaseTable := lease.NewTable(clk)

	c := newClient(t, ctx, store, leaseTable, clk, "client-a:9000", 1)

	_, errno := c.disp.CreatePath(ctx, "/old.txt", 0644)
	require.Equal(t, 0, errno)

	errno = c.disp.RenamePath(ctx, "/old.txt", "/new.txt")
	require.Equal(t, 0, errno)

	_, errno = c.disp.GetAttrPath(ctx, "/new.txt")
	require.Equal(t, 0, errno)

	_, errno = c.disp.GetAttrPath(ctx, "/old.txt")
	assert.Equal(t, -int(syscall.ENOENT), errno)
}

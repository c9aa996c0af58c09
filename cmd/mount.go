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
package cmd

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"os"

	"cloud.google.com/go/storage"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/clusterfs/clusterfs/cfg"
	"github.com/clusterfs/clusterfs/clientreg"
	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/dirtable"
	"github.com/clusterfs/clusterfs/dispatch"
	"github.com/clusterfs/clusterfs/internal/clock"
	intfs "github.com/clusterfs/clusterfs/internal/fs"
	"github.com/clusterfs/clusterfs/internal/logger"
	"github.com/clusterfs/clusterfs/lease"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
	"github.com/clusterfs/clusterfs/remoteops"
)

// memBucketSentinel lets a client run fully in-process against an
// in-memory backing store, for local exercising of the mount path without
// a real bucket (the object-store analogue of fake-gcs-server, used here
// at the client boundary rather than behind an HTTP shim).
const memBucketSentinel = "mem://"

func newBackingStore(ctx context.Context, c cfg.Config) (osio.BackingStore, error) {
	if c.Bucket == memBucketSentinel {
		return osio.NewMemStore(), nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening storage client: %w", err)
	}
	return osio.NewGCSStore(client, c.Bucket), nil
}

// bootstrapRoot ensures the filesystem root inode and its (empty) dentry
// record exist, the way a brand-new bucket needs one seed write before any
// client can resolve "/".
func bootstrapRoot(ctx context.Context, store *osio.Store, c cfg.Config, clk clock.Clock) error {
	exists, err := store.Exist(ctx, metadata.InodeKey(metadata.RootIno))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	now := clk.Now()
	root := &metadata.Inode{
		Ino:   metadata.RootIno,
		Mode:  os.ModeDir | os.FileMode(c.DirPerms),
		Uid:   c.Uid,
		Gid:   c.Gid,
		Nlink: 2,
		Atime: now,
		Mtime: now,
		Ctime: now,
		Loc:   metadata.Local,
	}
	if _, err := store.Write(ctx, metadata.InodeKey(metadata.RootIno), 0, root.Serialize()); err != nil {
		return err
	}

	dentry := metadata.NewDentry(metadata.RootIno)
	_, err = store.Write(ctx, metadata.DentryKey(metadata.RootIno), 0, dentry.Serialize())
	return err
}

// resolverAdapter adapts remoteops.Client's ctx-less CheckChildInode call
// (net/rpc carries no deadline of its own, spec.md §5) to the
// context.Context-shaped dirtable.RemoteResolver the Walker expects.
type resolverAdapter struct {
	client *remoteops.Client
}

func (r resolverAdapter) CheckChildInode(ctx context.Context, leaderAddr string, parentIno uint64, filename string) (int64, error) {
	return r.client.CheckChildInode(leaderAddr, parentIno, filename)
}

// serveRemoteOps registers disp as the RemoteOps net/rpc handler and
// starts accepting peer connections on c.SelfAddr in the background, so
// other clients can reach directories this client leads (spec.md §6).
func serveRemoteOps(env *dispatch.Env, disp *dispatch.Dispatcher) error {
	server := rpc.NewServer()
	if err := (&remoteops.Service{Handler: disp}).Register(server); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", env.SelfAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", env.SelfAddr, err)
	}

	go server.Accept(listener)
	return nil
}

// runMount wires every component described in spec.md §4 together and
// blocks serving FUSE ops until the mount is torn down.
func runMount(ctx context.Context, c cfg.Config) error {
	clk := clock.RealClock{}
	log := logger.Default("clusterfs")

	backing, err := newBackingStore(ctx, c)
	if err != nil {
		return err
	}
	store := osio.NewStore(backing, c.ObjectSize)

	if err := bootstrapRoot(ctx, store, c, clk); err != nil {
		return fmt.Errorf("bootstrapping root: %w", err)
	}

	registry := clientreg.NewRegistry(store)
	clientID, err := registry.Allocate(ctx)
	if err != nil {
		return fmt.Errorf("allocating client id: %w", err)
	}
	inoAlloc := clientreg.NewInoAllocator(store, clientID)

	leaseClient := lease.NewClient(c.SelfAddr, &lease.RPCTransport{CoordinatorAddr: c.CoordinatorAddr}, clk)
	remoteClient := remoteops.NewClient()

	dirTables := dirtable.New()
	rootTable := dentrytable.NewLocal(metadata.RootIno, store)
	dirTables.Create(metadata.RootIno, rootTable)

	env := &dispatch.Env{
		Store:     store,
		DirTables: dirTables,
		Leases:    leaseClient,
		Remote:    remoteClient,
		InoAlloc:  inoAlloc,
		Clock:     clk,
		Log:       log,
		SelfAddr:  c.SelfAddr,
	}
	disp := dispatch.New(env)

	walker := dirtable.NewWalker(dirTables, leaseClient, resolverAdapter{remoteClient}, disp, store)
	env.Walker = walker

	if err := rootTable.PullChildMetadata(ctx, disp.LoadInode); err != nil {
		return fmt.Errorf("loading root dentry: %w", err)
	}

	if err := serveRemoteOps(env, disp); err != nil {
		return fmt.Errorf("starting peer RPC listener: %w", err)
	}

	adapter, err := intfs.New(disp, walker, clk, log)
	if err != nil {
		return fmt.Errorf("building kernel-glue adapter: %w", err)
	}
	server := fuseutil.NewFileSystemServer(adapter)

	mfs, err := fuse.Mount(c.MountPoint, server, &fuse.MountConfig{})
	if err != nil {
		return fmt.Errorf("mounting: %w", err)
	}

	log.Info("mounted", "bucket", c.Bucket, "mount_point", c.MountPoint, "client_id", clientID)
	return mfs.Join(ctx)
}

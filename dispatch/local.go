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
package dispatch

import (
	"context"
	"os"
	"time"

	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/dirtable"
	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/remoteops"
)

// local.go implements remoteops.LocalHandler: the leader-side logic
// invoked both when a peer's RPC arrives and when this dispatcher
// executes an op against a directory it owns itself (spec.md §4.7,
// §4.8). Every method here addresses inodes directly; the path walk
// that gets there lives in dispatcher.go.

var _ remoteops.LocalHandler = (*Dispatcher)(nil)

func (d *Dispatcher) dentryTableFor(ino uint64) (*dentrytable.Table, error) {
	dt, ok := d.env.DirTables.Get(ino)
	if !ok {
		return nil, ferr.New(ferr.NoEntry, "directory %d has no dentry table", ino)
	}
	return dt, nil
}

func (d *Dispatcher) CheckChildInode(ctx context.Context, parentIno uint64, filename string) (int64, error) {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return -1, err
	}
	return dt.CheckChildInode(filename), nil
}

func (d *Dispatcher) GetAttr(ctx context.Context, ino uint64) (*metadata.Inode, error) {
	return d.LoadInode(ctx, ino)
}

// Access checks the requested mask against the inode's mode bits. It does
// not distinguish owner/group/other by uid/gid: the dispatcher's caller
// (the kernel-glue boundary, out of scope per spec.md §1) is responsible
// for supplying a mask already narrowed to the requester's credentials.
func (d *Dispatcher) Access(ctx context.Context, ino uint64, mask uint32) error {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return err
	}
	if os.FileMode(mask)&in.Mode.Perm() != os.FileMode(mask) {
		return ferr.New(ferr.PermissionDenied, "mask %o not satisfied by mode %o on inode %d", mask, in.Mode.Perm(), ino)
	}
	return nil
}

func (d *Dispatcher) OpenDir(ctx context.Context, ino uint64) error {
	_, err := d.dentryTableFor(ino)
	return err
}

func (d *Dispatcher) ReadDir(ctx context.Context, ino uint64) ([]remoteops.DirEntry, error) {
	dt, err := d.dentryTableFor(ino)
	if err != nil {
		return nil, err
	}
	names := dt.Names()
	entries := make([]remoteops.DirEntry, 0, len(names))
	for _, name := range names {
		ref, err := dt.GetChildInode(name)
		if err != nil {
			continue
		}
		entries = append(entries, remoteops.DirEntry{Name: name, Ino: ref.Ino})
	}
	return entries, nil
}

func (d *Dispatcher) MkDir(ctx context.Context, parentIno uint64, name string, mode uint32) (uint64, error) {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return 0, err
	}

	now := d.env.Clock.Now()
	ino, err := d.env.InoAlloc.Next(ctx)
	if err != nil {
		return 0, err
	}

	child := &metadata.Inode{
		Ino: ino, Mode: os.ModeDir | os.FileMode(mode), Nlink: 2,
		Atime: now, Mtime: now, Ctime: now, Loc: metadata.Local,
	}
	if err := d.storeInode(ctx, child); err != nil {
		return 0, err
	}
	if err := dt.CreateChild(ctx, name, child); err != nil {
		return 0, err
	}

	childTable := dentrytable.NewLocal(ino, d.env.Store)
	d.env.DirTables.Create(ino, childTable)
	// Newly-created directory has no other claimant yet (spec.md §4.6
	// "Lease upgrade"): record ownership without a round trip.
	d.env.Leases.LeaseNewlyCreated(ino)

	return ino, nil
}

func (d *Dispatcher) RmDirTop(ctx context.Context, parentIno uint64, name string) error {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return err
	}
	ref, err := dt.GetChildInode(name)
	if err != nil {
		return err
	}
	if ref.Inode == nil || !ref.Inode.IsDir() {
		return ferr.New(ferr.Unsupported, "rmdir target %q is not a directory", name)
	}

	childTable, ok := d.env.DirTables.Get(ref.Ino)
	if ok && childTable.ChildCount() > 0 {
		return ferr.New(ferr.Unsupported, "directory %d not empty", ref.Ino)
	}

	if err := dt.DeleteChild(ctx, name); err != nil {
		return err
	}
	d.env.DirTables.Delete(ref.Ino)
	return nil
}

func (d *Dispatcher) Symlink(ctx context.Context, parentIno uint64, name, target string) (uint64, error) {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return 0, err
	}

	now := d.env.Clock.Now()
	ino, err := d.env.InoAlloc.Next(ctx)
	if err != nil {
		return 0, err
	}

	child := &metadata.Inode{
		Ino: ino, Mode: os.ModeSymlink | 0777, Nlink: 1, Size: int64(len(target)),
		Atime: now, Mtime: now, Ctime: now, Loc: metadata.Local,
	}
	if err := d.storeInode(ctx, child); err != nil {
		return 0, err
	}
	if _, err := d.env.Store.Write(ctx, metadata.DataKey(ino), 0, []byte(target)); err != nil {
		return 0, wrapStoreErr(err)
	}
	if err := dt.CreateChild(ctx, name, child); err != nil {
		return 0, err
	}
	return ino, nil
}

func (d *Dispatcher) ReadLink(ctx context.Context, ino uint64) (string, error) {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return "", err
	}
	data, _, err := d.env.Store.Read(ctx, metadata.DataKey(ino), 0, in.Size)
	if err != nil {
		return "", wrapStoreErr(err)
	}
	return string(data), nil
}

func (d *Dispatcher) RenameSameParent(ctx context.Context, parentIno uint64, oldName, newName string) error {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return err
	}
	ref, err := dt.GetChildInode(oldName)
	if err != nil {
		return err
	}
	if err := dt.DeleteChild(ctx, oldName); err != nil {
		return err
	}
	return dt.CreateChild(ctx, newName, ref.Inode)
}

func (d *Dispatcher) Open(ctx context.Context, ino uint64) error {
	_, err := d.LoadInode(ctx, ino)
	return err
}

func (d *Dispatcher) Create(ctx context.Context, parentIno uint64, name string, mode uint32) (uint64, error) {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return 0, err
	}

	now := d.env.Clock.Now()
	ino, err := d.env.InoAlloc.Next(ctx)
	if err != nil {
		return 0, err
	}

	child := &metadata.Inode{
		Ino: ino, Mode: os.FileMode(mode), Nlink: 1,
		Atime: now, Mtime: now, Ctime: now, Loc: metadata.Local,
	}
	if err := d.storeInode(ctx, child); err != nil {
		return 0, err
	}
	if err := dt.CreateChild(ctx, name, child); err != nil {
		return 0, err
	}
	return ino, nil
}

func (d *Dispatcher) Unlink(ctx context.Context, parentIno uint64, name string) error {
	dt, err := d.dentryTableFor(parentIno)
	if err != nil {
		return err
	}
	ref, err := dt.GetChildInode(name)
	if err != nil {
		return err
	}
	if err := dt.DeleteChild(ctx, name); err != nil {
		return err
	}
	return wrapStoreErr(d.env.Store.RemoveUpTo(ctx, metadata.DataKey(ref.Ino), ref.Inode.Size))
}

// PrepareWrite grants every write it sees: this dispatcher enforces no
// quota or conflicting-lease check beyond lease ownership (already proven
// by the caller owning the directory whose RPC reached here). It also
// advances Size/Mtime/Ctime the same way PrepareTruncate does, since the
// actual payload move happens after this returns and has no inode of its
// own to update.
func (d *Dispatcher) PrepareWrite(ctx context.Context, ino uint64, offset int64, length int) (bool, string, error) {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return false, "", err
	}

	end := offset + int64(length)
	if end > in.Size {
		in.Size = end
	}
	in.Mtime = d.env.Clock.Now()
	in.Ctime = in.Mtime
	if err := d.storeInode(ctx, in); err != nil {
		return false, "", err
	}
	return true, metadata.DataKey(ino), nil
}

func (d *Dispatcher) Chmod(ctx context.Context, ino uint64, mode uint32) error {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return err
	}
	in.Mode = (in.Mode &^ os.ModePerm) | os.FileMode(mode).Perm()
	in.Ctime = d.env.Clock.Now()
	return d.storeInode(ctx, in)
}

func (d *Dispatcher) Chown(ctx context.Context, ino uint64, uid, gid uint32) error {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return err
	}
	in.Uid, in.Gid = uid, gid
	in.Ctime = d.env.Clock.Now()
	return d.storeInode(ctx, in)
}

func (d *Dispatcher) Utimens(ctx context.Context, ino uint64, atime, mtime time.Time) error {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return err
	}
	in.Atime, in.Mtime = atime, mtime
	in.Ctime = d.env.Clock.Now()
	return d.storeInode(ctx, in)
}

// PrepareTruncate is Truncate's leader-side half: it updates the
// persisted size and, for a truncate to zero, removes the file's data
// segments, then tells the caller which data key to operate against. A
// shrink to a nonzero size leaves the data segments in place.
func (d *Dispatcher) PrepareTruncate(ctx context.Context, ino uint64, size int64) (bool, string, error) {
	in, err := d.LoadInode(ctx, ino)
	if err != nil {
		return false, "", err
	}

	dataKey := metadata.DataKey(ino)
	if size == 0 && in.Size > 0 {
		if err := d.env.Store.RemoveUpTo(ctx, dataKey, in.Size); err != nil {
			return false, "", wrapStoreErr(err)
		}
	}

	in.Size = size
	in.Mtime = d.env.Clock.Now()
	in.Ctime = in.Mtime
	if err := d.storeInode(ctx, in); err != nil {
		return false, "", err
	}
	return true, dataKey, nil
}

var _ dirtable.InodeLoader = (*Dispatcher)(nil)

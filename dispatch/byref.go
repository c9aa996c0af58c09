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
	"time"

	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
)

// byref.go is the dentrytable.ChildRef-addressed half of the dispatcher's
// public surface. dispatcher.go resolves an absolute path down to a
// ChildRef and then dispatches; callers that already hold a ChildRef
// resolved some other way — namely the kernel-glue adapter in
// internal/fs, which resolves parent-ino+name pairs one hop at a time via
// dirtable.Walker.ResolveChild rather than a path string — use these
// instead of repeating the path walk. Each method is the same
// local/remote fan-out as its Path counterpart, returning a plain error
// rather than an errno: errno translation happens once, at the kernel
// boundary, via ToError.

func (d *Dispatcher) GetAttrRef(ctx context.Context, ref dentrytable.ChildRef) (*metadata.Inode, error) {
	if ref.IsRemote() {
		return d.env.Remote.GetAttr(ref.RemoteAddr, ref.Ino)
	}
	return d.GetAttr(ctx, ref.Ino)
}

func (d *Dispatcher) AccessRef(ctx context.Context, ref dentrytable.ChildRef, mask uint32) error {
	if ref.IsRemote() {
		return d.env.Remote.Access(ref.RemoteAddr, ref.Ino, mask)
	}
	return d.Access(ctx, ref.Ino, mask)
}

func (d *Dispatcher) OpenDirRef(ctx context.Context, ref dentrytable.ChildRef) error {
	remote, leaderAddr, err := d.dirLoc(ref.Ino)
	if err != nil {
		return err
	}
	if remote {
		return d.env.Remote.OpenDir(leaderAddr, ref.Ino)
	}
	return d.OpenDir(ctx, ref.Ino)
}

func (d *Dispatcher) ReadDirRef(ctx context.Context, ref dentrytable.ChildRef) ([]DirEntry, error) {
	remote, leaderAddr, err := d.dirLoc(ref.Ino)
	if err != nil {
		return nil, err
	}
	if remote {
		entries, err := d.env.Remote.ReadDir(leaderAddr, ref.Ino)
		return toDirEntries(entries), err
	}
	entries, err := d.ReadDir(ctx, ref.Ino)
	return toDirEntries(entries), err
}

func (d *Dispatcher) OpenRef(ctx context.Context, ref dentrytable.ChildRef) error {
	if ref.IsRemote() {
		return d.env.Remote.Open(ref.RemoteAddr, ref.Ino)
	}
	return d.Open(ctx, ref.Ino)
}

func (d *Dispatcher) MkDirRef(ctx context.Context, parent dentrytable.ChildRef, name string, mode uint32) (uint64, error) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return 0, err
	}
	if remote {
		return d.env.Remote.MkDir(leaderAddr, parent.Ino, name, mode)
	}
	return d.MkDir(ctx, parent.Ino, name, mode)
}

func (d *Dispatcher) CreateRef(ctx context.Context, parent dentrytable.ChildRef, name string, mode uint32) (uint64, error) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return 0, err
	}
	if remote {
		return d.env.Remote.Create(leaderAddr, parent.Ino, name, mode)
	}
	return d.Create(ctx, parent.Ino, name, mode)
}

func (d *Dispatcher) SymlinkRef(ctx context.Context, parent dentrytable.ChildRef, name, target string) (uint64, error) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return 0, err
	}
	if remote {
		return d.env.Remote.Symlink(leaderAddr, parent.Ino, name, target)
	}
	return d.Symlink(ctx, parent.Ino, name, target)
}

// RmDirRef mirrors RmDirPath's stub: rmdir across a remote boundary is
// not implemented (spec.md §9).
func (d *Dispatcher) RmDirRef(ctx context.Context, parent dentrytable.ChildRef, name string) error {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	remote, _, err := d.dirLoc(parent.Ino)
	if err != nil {
		return err
	}
	if remote {
		return ferr.New(ferr.Unsupported, "remote rmdir not implemented")
	}
	return d.RmDirTop(ctx, parent.Ino, name)
}

func (d *Dispatcher) UnlinkRef(ctx context.Context, parent dentrytable.ChildRef, name string) error {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return err
	}
	if remote {
		return d.env.Remote.Unlink(leaderAddr, parent.Ino, name)
	}
	return d.Unlink(ctx, parent.Ino, name)
}

func (d *Dispatcher) ChmodRef(ctx context.Context, ref dentrytable.ChildRef, mode uint32) error {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	if ref.IsRemote() {
		return d.env.Remote.Chmod(ref.RemoteAddr, ref.Ino, mode)
	}
	return d.Chmod(ctx, ref.Ino, mode)
}

func (d *Dispatcher) UtimensRef(ctx context.Context, ref dentrytable.ChildRef, atime, mtime time.Time) error {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()
	if ref.IsRemote() {
		return d.env.Remote.Utimens(ref.RemoteAddr, ref.Ino, atime, mtime)
	}
	return d.Utimens(ctx, ref.Ino, atime, mtime)
}

// TruncateDataRef is Truncate's ChildRef-addressed half: it performs the
// leader handshake but, unlike WriteDataRef, has no payload of its own to
// move — PrepareTruncate already persists the new size.
func (d *Dispatcher) TruncateDataRef(ctx context.Context, ref dentrytable.ChildRef, size int64) error {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	var allowed bool
	var err error
	if ref.IsRemote() {
		allowed, _, err = d.env.Remote.PrepareTruncate(ref.RemoteAddr, ref.Ino, size)
	} else {
		allowed, _, err = d.PrepareTruncate(ctx, ref.Ino, size)
	}
	if err != nil {
		return err
	}
	if !allowed {
		return ferr.New(ferr.PermissionDenied, "truncate of %d not allowed", ref.Ino)
	}
	return nil
}

// ReadDataRef reads directly from the object store, same rationale as
// ReadPath: data objects are reachable regardless of lease ownership.
func (d *Dispatcher) ReadDataRef(ctx context.Context, ref dentrytable.ChildRef, buf []byte, offset int64) (int, error) {
	data, n, err := d.env.Store.Read(ctx, metadata.DataKey(ref.Ino), offset, int64(len(buf)))
	if err != nil {
		return n, err
	}
	copy(buf, data)
	return n, nil
}

func (d *Dispatcher) WriteDataRef(ctx context.Context, ref dentrytable.ChildRef, data []byte, offset int64) (int, error) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	var allowed bool
	var dataKey string
	var err error
	if ref.IsRemote() {
		allowed, dataKey, err = d.env.Remote.PrepareWrite(ref.RemoteAddr, ref.Ino, offset, len(data))
	} else {
		allowed, dataKey, err = d.PrepareWrite(ctx, ref.Ino, offset, len(data))
	}
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, ferr.New(ferr.PermissionDenied, "write to %d not allowed", ref.Ino)
	}
	return d.env.Store.Write(ctx, dataKey, offset, data)
}

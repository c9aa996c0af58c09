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
	"path"
	"time"

	"github.com/clusterfs/clusterfs/dentrytable"
	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/remoteops"
)

// dirLoc resolves ino's own dentry-table ownership. This is distinct from
// a ChildRef's IsRemote(), which only reflects whether the listing ino was
// found in was local — the right question for a file target's attr/write
// ops, since a file has no lease of its own and is governed by its
// parent's. Once ino is itself being addressed as a directory — as the
// target of opendir/readdir, or as the parent of mkdir/create/symlink/
// unlink/rmdir/rename — what matters is ino's own dentry table, attached
// by the walker the moment ino was first resolved.
func (d *Dispatcher) dirLoc(ino uint64) (remote bool, leaderAddr string, err error) {
	dt, ok := d.env.DirTables.Get(ino)
	if !ok {
		return false, "", ferr.New(ferr.NoEntry, "directory %d has no dentry table", ino)
	}
	return dt.Loc == dentrytable.Remote, dt.LeaderAddr, nil
}

// This file is the path-addressed half of the dispatcher: one method per
// spec.md §6 kernel-facing op, named with a Path suffix to stay distinct
// from local.go's ino-addressed remoteops.LocalHandler implementation,
// which these methods call directly for LOCAL targets and forward over
// d.env.Remote for REMOTE ones.

// defaultAccessCheck enforces spec.md §4.6's per-hop rule: the execute
// bit at every intermediate directory, nothing extra at the leaf (the
// leaf's requested mask is checked separately by AccessPath).
func defaultAccessCheck(ref dentrytable.ChildRef, isLeaf bool) error {
	if isLeaf {
		return nil
	}
	if ref.Inode != nil && ref.Inode.Mode&0111 == 0 {
		return ferr.New(ferr.PermissionDenied, "no execute permission on directory %d", ref.Ino)
	}
	return nil
}

func splitParent(p string) (parentPath, name string, err error) {
	dir, base := path.Split(path.Clean(p))
	if base == "" || base == "/" {
		return "", "", ferr.New(ferr.PermissionDenied, "%q has no parent", p)
	}
	if dir == "" {
		dir = "/"
	}
	return dir, base, nil
}

// resolveParent walks to the directory containing p and returns its
// reference plus the final path component's name.
func (d *Dispatcher) resolveParent(ctx context.Context, p string) (dentrytable.ChildRef, string, error) {
	parentPath, name, err := splitParent(p)
	if err != nil {
		return dentrytable.ChildRef{}, "", err
	}
	ref, err := d.env.Walker.Walk(ctx, parentPath, defaultAccessCheck)
	if err != nil {
		return dentrytable.ChildRef{}, "", err
	}
	return ref, name, nil
}

func nsToTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func toDirEntries(in []remoteops.DirEntry) []DirEntry {
	out := make([]DirEntry, 0, len(in))
	for _, e := range in {
		out = append(out, DirEntry{Name: e.Name, Ino: e.Ino})
	}
	return out
}

// DirEntry is the path-layer's readdir row, decoupled from remoteops'
// wire type so callers of Dispatcher never need to import remoteops.
type DirEntry struct {
	Name string
	Ino  uint64
}

// GetAttrPath implements spec.md §6's getattr.
func (d *Dispatcher) GetAttrPath(ctx context.Context, p string) (*metadata.Inode, int) {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return nil, toErrno(err)
	}
	if ref.IsRemote() {
		in, err := d.env.Remote.GetAttr(ref.RemoteAddr, ref.Ino)
		return in, toErrno(err)
	}
	in, err := d.GetAttr(ctx, ref.Ino)
	return in, toErrno(err)
}

// AccessPath implements spec.md §6's access.
func (d *Dispatcher) AccessPath(ctx context.Context, p string, mask uint32) int {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	if ref.IsRemote() {
		return toErrno(d.env.Remote.Access(ref.RemoteAddr, ref.Ino, mask))
	}
	return toErrno(d.Access(ctx, ref.Ino, mask))
}

// SymlinkPath implements spec.md §6's symlink.
func (d *Dispatcher) SymlinkPath(ctx context.Context, p, target string) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	parent, name, err := d.resolveParent(ctx, p)
	if err != nil {
		return toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return toErrno(err)
	}
	if remote {
		_, err = d.env.Remote.Symlink(leaderAddr, parent.Ino, name, target)
		return toErrno(err)
	}
	_, err = d.Symlink(ctx, parent.Ino, name, target)
	return toErrno(err)
}

// ReadLinkPath implements spec.md §6's readlink.
func (d *Dispatcher) ReadLinkPath(ctx context.Context, p string) (string, int) {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return "", toErrno(err)
	}
	if ref.IsRemote() {
		target, err := d.env.Remote.ReadLink(ref.RemoteAddr, ref.Ino)
		return target, toErrno(err)
	}
	target, err := d.ReadLink(ctx, ref.Ino)
	return target, toErrno(err)
}

// OpenDirPath implements spec.md §6's opendir.
func (d *Dispatcher) OpenDirPath(ctx context.Context, p string) int {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(ref.Ino)
	if err != nil {
		return toErrno(err)
	}
	if remote {
		return toErrno(d.env.Remote.OpenDir(leaderAddr, ref.Ino))
	}
	return toErrno(d.OpenDir(ctx, ref.Ino))
}

// ReleaseDirPath implements spec.md §6's releasedir. Directory handles
// carry no per-open state in this design, so it is always a clean no-op.
func (d *Dispatcher) ReleaseDirPath(ctx context.Context, p string) int {
	return 0
}

// ReadDirPath implements spec.md §6's readdir.
func (d *Dispatcher) ReadDirPath(ctx context.Context, p string) ([]DirEntry, int) {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return nil, toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(ref.Ino)
	if err != nil {
		return nil, toErrno(err)
	}
	if remote {
		entries, err := d.env.Remote.ReadDir(leaderAddr, ref.Ino)
		return toDirEntries(entries), toErrno(err)
	}
	entries, err := d.ReadDir(ctx, ref.Ino)
	return toDirEntries(entries), toErrno(err)
}

// MkDirPath implements spec.md §6's mkdir.
func (d *Dispatcher) MkDirPath(ctx context.Context, p string, mode uint32) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	parent, name, err := d.resolveParent(ctx, p)
	if err != nil {
		return toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return toErrno(err)
	}
	if remote {
		_, err = d.env.Remote.MkDir(leaderAddr, parent.Ino, name, mode)
		return toErrno(err)
	}
	_, err = d.MkDir(ctx, parent.Ino, name, mode)
	return toErrno(err)
}

// RmDirPath implements spec.md §6's rmdir. Cross-boundary rmdir is
// stubbed per spec.md §9's open question ("rmdir across remote boundaries
// is similarly stubbed").
func (d *Dispatcher) RmDirPath(ctx context.Context, p string) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	parent, name, err := d.resolveParent(ctx, p)
	if err != nil {
		return toErrno(err)
	}
	remote, _, err := d.dirLoc(parent.Ino)
	if err != nil {
		return toErrno(err)
	}
	if remote {
		return toErrno(ferr.New(ferr.Unsupported, "remote rmdir not implemented"))
	}
	return toErrno(d.RmDirTop(ctx, parent.Ino, name))
}

// RenamePath implements spec.md §6's rename. Same-parent renames are
// fully supported, local or remote. Cross-parent renames where either
// side is remote are recognized but return ENOSYS, per spec.md §9's open
// question (the two-phase rename protocol exists on the wire but is left
// unused).
func (d *Dispatcher) RenamePath(ctx context.Context, oldPath, newPath string) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	oldParent, oldName, err := d.resolveParent(ctx, oldPath)
	if err != nil {
		return toErrno(err)
	}
	newParent, newName, err := d.resolveParent(ctx, newPath)
	if err != nil {
		return toErrno(err)
	}

	oldRemote, oldLeaderAddr, err := d.dirLoc(oldParent.Ino)
	if err != nil {
		return toErrno(err)
	}
	newRemote, _, err := d.dirLoc(newParent.Ino)
	if err != nil {
		return toErrno(err)
	}

	sameParent := oldParent.Ino == newParent.Ino
	if sameParent {
		if oldRemote {
			return toErrno(d.env.Remote.RenameSameParent(oldLeaderAddr, oldParent.Ino, oldName, newName))
		}
		return toErrno(d.RenameSameParent(ctx, oldParent.Ino, oldName, newName))
	}

	if oldRemote || newRemote {
		return toErrno(ferr.New(ferr.Unsupported, "cross-parent rename with a remote side not implemented"))
	}
	return toErrno(d.renameCrossParentLocal(ctx, oldParent.Ino, oldName, newParent.Ino, newName))
}

func (d *Dispatcher) renameCrossParentLocal(ctx context.Context, oldParentIno uint64, oldName string, newParentIno uint64, newName string) error {
	oldDt, err := d.dentryTableFor(oldParentIno)
	if err != nil {
		return err
	}
	newDt, err := d.dentryTableFor(newParentIno)
	if err != nil {
		return err
	}
	ref, err := oldDt.GetChildInode(oldName)
	if err != nil {
		return err
	}
	if err := oldDt.DeleteChild(ctx, oldName); err != nil {
		return err
	}
	return newDt.CreateChild(ctx, newName, ref.Inode)
}

// OpenPath implements spec.md §6's open.
func (d *Dispatcher) OpenPath(ctx context.Context, p string) int {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	if ref.IsRemote() {
		return toErrno(d.env.Remote.Open(ref.RemoteAddr, ref.Ino))
	}
	return toErrno(d.Open(ctx, ref.Ino))
}

// ReleasePath implements spec.md §6's release. File handles carry no
// per-open state in this design.
func (d *Dispatcher) ReleasePath(ctx context.Context, p string) int {
	return 0
}

// CreatePath implements spec.md §6's create.
func (d *Dispatcher) CreatePath(ctx context.Context, p string, mode uint32) (uint64, int) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	parent, name, err := d.resolveParent(ctx, p)
	if err != nil {
		return 0, toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return 0, toErrno(err)
	}
	if remote {
		ino, err := d.env.Remote.Create(leaderAddr, parent.Ino, name, mode)
		return ino, toErrno(err)
	}
	ino, err := d.Create(ctx, parent.Ino, name, mode)
	return ino, toErrno(err)
}

// UnlinkPath implements spec.md §6's unlink.
func (d *Dispatcher) UnlinkPath(ctx context.Context, p string) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	parent, name, err := d.resolveParent(ctx, p)
	if err != nil {
		return toErrno(err)
	}
	remote, leaderAddr, err := d.dirLoc(parent.Ino)
	if err != nil {
		return toErrno(err)
	}
	if remote {
		return toErrno(d.env.Remote.Unlink(leaderAddr, parent.Ino, name))
	}
	return toErrno(d.Unlink(ctx, parent.Ino, name))
}

// ReadPath implements spec.md §6's read. Data objects live in the shared
// object store regardless of which client owns the parent directory's
// lease, so reads never need the RPC shim — spec.md §6's RPC surface has
// no "read" entry for exactly this reason.
func (d *Dispatcher) ReadPath(ctx context.Context, p string, buf []byte, offset int64) (int, int) {
	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return 0, toErrno(err)
	}
	data, n, err := d.env.Store.Read(ctx, metadata.DataKey(ref.Ino), offset, int64(len(buf)))
	copy(buf, data)
	return n, toErrno(err)
}

// WritePath implements spec.md §6's write. The leader side decides
// whether and where the payload may land (PrepareWrite); the payload
// itself always travels directly between this client and the object
// store.
func (d *Dispatcher) WritePath(ctx context.Context, p string, data []byte, offset int64) (int, int) {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return 0, toErrno(err)
	}

	var allowed bool
	var dataKey string
	if ref.IsRemote() {
		allowed, dataKey, err = d.env.Remote.PrepareWrite(ref.RemoteAddr, ref.Ino, offset, len(data))
	} else {
		allowed, dataKey, err = d.PrepareWrite(ctx, ref.Ino, offset, len(data))
	}
	if err != nil {
		return 0, toErrno(err)
	}
	if !allowed {
		return 0, toErrno(ferr.New(ferr.PermissionDenied, "write to %d not allowed", ref.Ino))
	}

	n, err := d.env.Store.Write(ctx, dataKey, offset, data)
	return n, toErrno(err)
}

// ChmodPath implements spec.md §6's chmod.
func (d *Dispatcher) ChmodPath(ctx context.Context, p string, mode uint32) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	if ref.IsRemote() {
		return toErrno(d.env.Remote.Chmod(ref.RemoteAddr, ref.Ino, mode))
	}
	return toErrno(d.Chmod(ctx, ref.Ino, mode))
}

// ChownPath implements spec.md §6's chown.
func (d *Dispatcher) ChownPath(ctx context.Context, p string, uid, gid uint32) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	if ref.IsRemote() {
		return toErrno(d.env.Remote.Chown(ref.RemoteAddr, ref.Ino, uid, gid))
	}
	return toErrno(d.Chown(ctx, ref.Ino, uid, gid))
}

// UtimensPath implements spec.md §6's utimens.
func (d *Dispatcher) UtimensPath(ctx context.Context, p string, atimeNs, mtimeNs int64) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}
	at, mt := nsToTime(atimeNs), nsToTime(mtimeNs)
	if ref.IsRemote() {
		return toErrno(d.env.Remote.Utimens(ref.RemoteAddr, ref.Ino, at, mt))
	}
	return toErrno(d.Utimens(ctx, ref.Ino, at, mt))
}

// TruncatePath implements spec.md §6's truncate.
func (d *Dispatcher) TruncatePath(ctx context.Context, p string, size int64) int {
	d.namespaceMu.Lock()
	defer d.namespaceMu.Unlock()

	ref, err := d.env.Walker.Walk(ctx, p, defaultAccessCheck)
	if err != nil {
		return toErrno(err)
	}

	var allowed bool
	if ref.IsRemote() {
		allowed, _, err = d.env.Remote.PrepareTruncate(ref.RemoteAddr, ref.Ino, size)
	} else {
		allowed, _, err = d.PrepareTruncate(ctx, ref.Ino, size)
	}
	if err != nil {
		return toErrno(err)
	}
	if !allowed {
		return toErrno(ferr.New(ferr.PermissionDenied, "truncate of %d not allowed", ref.Ino))
	}
	return 0
}

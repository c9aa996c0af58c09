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
// Package remoteops is the RPC shim of spec.md §4.8: it forwards a
// metadata operation from a client that doesn't own a directory to the
// peer that does, and serves the matching requests on the owning side.
package remoteops

import (
	"context"
	"time"

	"github.com/clusterfs/clusterfs/metadata"
)

// Ret codes shared by every RPC reply on this surface, per spec.md §6:
// "-ENOTLEADER is the sentinel for stale lease, re-acquire".
const (
	RetOK             int32 = 0
	RetNotLeader      int32 = -1
	RetNoEntry        int32 = -2
	RetPermission     int32 = -3
	RetExists         int32 = -4
	RetUnsupported    int32 = -5
	RetLockContended  int32 = -6
	RetMissingObject  int32 = -7
)

// DirEntry is one readdir result row.
type DirEntry struct {
	Name string
	Ino  uint64
}

// InodeAttrs is the wire form of metadata.Inode's stat-relevant fields.
type InodeAttrs struct {
	Ino    uint64
	Mode   uint32
	Uid    uint32
	Gid    uint32
	Nlink  uint32
	Size   int64
	AtimeNs int64
	MtimeNs int64
	CtimeNs int64
}

func attrsFromInode(in *metadata.Inode) InodeAttrs {
	return InodeAttrs{
		Ino: in.Ino, Mode: uint32(in.Mode), Uid: in.Uid, Gid: in.Gid, Nlink: in.Nlink, Size: in.Size,
		AtimeNs: in.Atime.UnixNano(), MtimeNs: in.Mtime.UnixNano(), CtimeNs: in.Ctime.UnixNano(),
	}
}

func (a InodeAttrs) toTimes() (atime, mtime, ctime time.Time) {
	return time.Unix(0, a.AtimeNs).UTC(), time.Unix(0, a.MtimeNs).UTC(), time.Unix(0, a.CtimeNs).UTC()
}

// --- Request/response pairs, named after spec.md §6's RPC surface. ---

type CheckChildInodeRequest struct {
	ParentIno uint64
	Filename  string
}
type CheckChildInodeResponse struct {
	Ret int32
	Ino int64
}

type GetAttrRequest struct{ Ino uint64 }
type GetAttrResponse struct {
	Ret   int32
	Attrs InodeAttrs
}

type AccessRequest struct {
	Ino  uint64
	Mask uint32
}
type AccessResponse struct{ Ret int32 }

type OpenDirRequest struct{ Ino uint64 }
type OpenDirResponse struct{ Ret int32 }

type ReadDirRequest struct{ Ino uint64 }
type ReadDirResponse struct {
	Ret     int32
	Entries []DirEntry
}

type MkDirRequest struct {
	ParentIno uint64
	Name      string
	Mode      uint32
}
type MkDirResponse struct {
	Ret int32
	Ino uint64
}

type RmDirRequest struct {
	ParentIno uint64
	Name      string
}
type RmDirResponse struct{ Ret int32 }

type SymlinkRequest struct {
	ParentIno uint64
	Name      string
	Target    string
}
type SymlinkResponse struct {
	Ret int32
	Ino uint64
}

type ReadLinkRequest struct{ Ino uint64 }
type ReadLinkResponse struct {
	Ret    int32
	Target string
}

type RenameSameParentRequest struct {
	ParentIno uint64
	OldName   string
	NewName   string
}
type RenameSameParentResponse struct{ Ret int32 }

type OpenRequest struct{ Ino uint64 }
type OpenResponse struct{ Ret int32 }

type CreateRequest struct {
	ParentIno uint64
	Name      string
	Mode      uint32
}
type CreateResponse struct {
	Ret int32
	Ino uint64
}

type UnlinkRequest struct {
	ParentIno uint64
	Name      string
}
type UnlinkResponse struct{ Ret int32 }

// WriteRequest/WriteResponse implement spec.md §4.8's "writes are
// special" protocol: the leader only decides whether and where the data
// may land; the payload itself never crosses this RPC.
type WriteRequest struct {
	Ino    uint64
	Offset int64
	Length int
}
type WriteResponse struct {
	Ret     int32
	Allowed bool
	DataKey string
}

type ChmodRequest struct {
	Ino  uint64
	Mode uint32
}
type ChmodResponse struct{ Ret int32 }

type ChownRequest struct {
	Ino uint64
	Uid uint32
	Gid uint32
}
type ChownResponse struct{ Ret int32 }

type UtimensRequest struct {
	Ino     uint64
	AtimeNs int64
	MtimeNs int64
}
type UtimensResponse struct{ Ret int32 }

type TruncateRequest struct {
	Ino  uint64
	Size int64
}
type TruncateResponse struct {
	Ret     int32
	Allowed bool
	DataKey string
}

// LocalHandler is implemented by the dispatcher and called both for ops
// arriving over this RPC surface and, symmetrically, for ops the
// dispatcher executes against directories it owns itself. ctx carries
// cancellation/deadlines for the underlying OSIO calls.
type LocalHandler interface {
	CheckChildInode(ctx context.Context, parentIno uint64, filename string) (int64, error)
	GetAttr(ctx context.Context, ino uint64) (*metadata.Inode, error)
	Access(ctx context.Context, ino uint64, mask uint32) error
	OpenDir(ctx context.Context, ino uint64) error
	ReadDir(ctx context.Context, ino uint64) ([]DirEntry, error)
	MkDir(ctx context.Context, parentIno uint64, name string, mode uint32) (uint64, error)
	RmDirTop(ctx context.Context, parentIno uint64, name string) error
	Symlink(ctx context.Context, parentIno uint64, name, target string) (uint64, error)
	ReadLink(ctx context.Context, ino uint64) (string, error)
	RenameSameParent(ctx context.Context, parentIno uint64, oldName, newName string) error
	Open(ctx context.Context, ino uint64) error
	Create(ctx context.Context, parentIno uint64, name string, mode uint32) (uint64, error)
	Unlink(ctx context.Context, parentIno uint64, name string) error
	PrepareWrite(ctx context.Context, ino uint64, offset int64, length int) (allowed bool, dataKey string, err error)
	Chmod(ctx context.Context, ino uint64, mode uint32) error
	Chown(ctx context.Context, ino uint64, uid, gid uint32) error
	Utimens(ctx context.Context, ino uint64, atime, mtime time.Time) error
	PrepareTruncate(ctx context.Context, ino uint64, size int64) (allowed bool, dataKey string, err error)
}

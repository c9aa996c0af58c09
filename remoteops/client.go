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
package remoteops

import (
	"net/rpc"
	"os"
	"time"

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
)

// Client forwards metadata operations to a peer's leader address. Per
// spec.md §4.8, each call constructs a fresh RPC channel to the target
// rather than holding a long-lived connection.
type Client struct{}

// NewClient returns a remote-operations client. It is stateless; the
// leader address is supplied per call since a remote-inode handle can
// point at a different peer on every invocation.
func NewClient() *Client { return &Client{} }

func (c *Client) dial(addr string) (*rpc.Client, error) {
	client, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, ferr.New(ferr.TransportFailure, "dial %s: %v", addr, err)
	}
	return client, nil
}

// call performs one request/response round trip and translates a
// RetNotLeader reply into a *ferr.Error the caller must treat as fatal
// to the current op (spec.md §4.8).
func call[Req any, Resp any](c *Client, addr, method string, req *Req, resp *Resp, ret *int32) error {
	client, err := c.dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Call("RemoteOps."+method, req, resp); err != nil {
		return ferr.New(ferr.TransportFailure, "%s: %v", method, err)
	}
	if *ret == RetNotLeader {
		return ferr.New(ferr.NotLeader, "%s: peer %s is no longer leader", method, addr)
	}
	if *ret == RetNoEntry {
		return ferr.New(ferr.NoEntry, "%s", method)
	}
	if *ret == RetPermission {
		return ferr.New(ferr.PermissionDenied, "%s", method)
	}
	if *ret == RetExists {
		return ferr.New(ferr.AlreadyExists, "%s", method)
	}
	if *ret == RetUnsupported {
		return ferr.New(ferr.Unsupported, "%s", method)
	}
	if *ret == RetLockContended {
		return ferr.New(ferr.LockContended, "%s", method)
	}
	if *ret == RetMissingObject {
		return ferr.New(ferr.MissingObject, "%s", method)
	}
	return nil
}

func (c *Client) CheckChildInode(addr string, parentIno uint64, filename string) (int64, error) {
	req := CheckChildInodeRequest{ParentIno: parentIno, Filename: filename}
	var resp CheckChildInodeResponse
	if err := call(c, addr, "CheckChildInode", &req, &resp, &resp.Ret); err != nil {
		return -1, err
	}
	return resp.Ino, nil
}

func (c *Client) GetAttr(addr string, ino uint64) (*metadata.Inode, error) {
	req := GetAttrRequest{Ino: ino}
	var resp GetAttrResponse
	if err := call(c, addr, "GetAttr", &req, &resp, &resp.Ret); err != nil {
		return nil, err
	}
	atime, mtime, ctime := resp.Attrs.toTimes()
	return &metadata.Inode{
		Ino: resp.Attrs.Ino, Mode: os.FileMode(resp.Attrs.Mode), Uid: resp.Attrs.Uid, Gid: resp.Attrs.Gid,
		Nlink: resp.Attrs.Nlink, Size: resp.Attrs.Size, Atime: atime, Mtime: mtime, Ctime: ctime,
		Loc: metadata.Remote, LeaderAddr: addr,
	}, nil
}

func (c *Client) Access(addr string, ino uint64, mask uint32) error {
	req := AccessRequest{Ino: ino, Mask: mask}
	var resp AccessResponse
	return call(c, addr, "Access", &req, &resp, &resp.Ret)
}

func (c *Client) OpenDir(addr string, ino uint64) error {
	req := OpenDirRequest{Ino: ino}
	var resp OpenDirResponse
	return call(c, addr, "OpenDir", &req, &resp, &resp.Ret)
}

func (c *Client) ReadDir(addr string, ino uint64) ([]DirEntry, error) {
	req := ReadDirRequest{Ino: ino}
	var resp ReadDirResponse
	if err := call(c, addr, "ReadDir", &req, &resp, &resp.Ret); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) MkDir(addr string, parentIno uint64, name string, mode uint32) (uint64, error) {
	req := MkDirRequest{ParentIno: parentIno, Name: name, Mode: mode}
	var resp MkDirResponse
	if err := call(c, addr, "MkDir", &req, &resp, &resp.Ret); err != nil {
		return 0, err
	}
	return resp.Ino, nil
}

func (c *Client) RmDirTop(addr string, parentIno uint64, name string) error {
	req := RmDirRequest{ParentIno: parentIno, Name: name}
	var resp RmDirResponse
	return call(c, addr, "RmDirTop", &req, &resp, &resp.Ret)
}

func (c *Client) Symlink(addr string, parentIno uint64, name, target string) (uint64, error) {
	req := SymlinkRequest{ParentIno: parentIno, Name: name, Target: target}
	var resp SymlinkResponse
	if err := call(c, addr, "Symlink", &req, &resp, &resp.Ret); err != nil {
		return 0, err
	}
	return resp.Ino, nil
}

func (c *Client) ReadLink(addr string, ino uint64) (string, error) {
	req := ReadLinkRequest{Ino: ino}
	var resp ReadLinkResponse
	if err := call(c, addr, "ReadLink", &req, &resp, &resp.Ret); err != nil {
		return "", err
	}
	return resp.Target, nil
}

func (c *Client) RenameSameParent(addr string, parentIno uint64, oldName, newName string) error {
	req := RenameSameParentRequest{ParentIno: parentIno, OldName: oldName, NewName: newName}
	var resp RenameSameParentResponse
	return call(c, addr, "RenameSameParent", &req, &resp, &resp.Ret)
}

func (c *Client) Open(addr string, ino uint64) error {
	req := OpenRequest{Ino: ino}
	var resp OpenResponse
	return call(c, addr, "Open", &req, &resp, &resp.Ret)
}

func (c *Client) Create(addr string, parentIno uint64, name string, mode uint32) (uint64, error) {
	req := CreateRequest{ParentIno: parentIno, Name: name, Mode: mode}
	var resp CreateResponse
	if err := call(c, addr, "Create", &req, &resp, &resp.Ret); err != nil {
		return 0, err
	}
	return resp.Ino, nil
}

func (c *Client) Unlink(addr string, parentIno uint64, name string) error {
	req := UnlinkRequest{ParentIno: parentIno, Name: name}
	var resp UnlinkResponse
	return call(c, addr, "Unlink", &req, &resp, &resp.Ret)
}

// PrepareWrite asks the leader whether and where a write of length bytes
// at offset may land. The caller still has to perform the actual OSIO
// write itself against dataKey (spec.md §4.8 "writes are special").
func (c *Client) PrepareWrite(addr string, ino uint64, offset int64, length int) (allowed bool, dataKey string, err error) {
	req := WriteRequest{Ino: ino, Offset: offset, Length: length}
	var resp WriteResponse
	if err := call(c, addr, "Write", &req, &resp, &resp.Ret); err != nil {
		return false, "", err
	}
	return resp.Allowed, resp.DataKey, nil
}

func (c *Client) Chmod(addr string, ino uint64, mode uint32) error {
	req := ChmodRequest{Ino: ino, Mode: mode}
	var resp ChmodResponse
	return call(c, addr, "Chmod", &req, &resp, &resp.Ret)
}

func (c *Client) Chown(addr string, ino uint64, uid, gid uint32) error {
	req := ChownRequest{Ino: ino, Uid: uid, Gid: gid}
	var resp ChownResponse
	return call(c, addr, "Chown", &req, &resp, &resp.Ret)
}

func (c *Client) Utimens(addr string, ino uint64, atime, mtime time.Time) error {
	req := UtimensRequest{Ino: ino, AtimeNs: atime.UnixNano(), MtimeNs: mtime.UnixNano()}
	var resp UtimensResponse
	return call(c, addr, "Utimens", &req, &resp, &resp.Ret)
}

// PrepareTruncate is Truncate's counterpart to PrepareWrite: symmetric
// allowed/dataKey handshake before the caller touches OSIO directly.
func (c *Client) PrepareTruncate(addr string, ino uint64, size int64) (allowed bool, dataKey string, err error) {
	req := TruncateRequest{Ino: ino, Size: size}
	var resp TruncateResponse
	if err := call(c, addr, "Truncate", &req, &resp, &resp.Ret); err != nil {
		return false, "", err
	}
	return resp.Allowed, resp.DataKey, nil
}

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

import "net/rpc"

// Service is the net/rpc-exported server side of this package, run on
// every client that also acts as a leader for at least one directory.
// Each exported method mirrors one entry of spec.md §6's RPC surface.
type Service struct {
	Handler LocalHandler
}

// Register attaches Service to server under the fixed name RPC clients
// dial against.
func (s *Service) Register(server *rpc.Server) error {
	return server.RegisterName("RemoteOps", s)
}

func (s *Service) CheckChildInode(req *CheckChildInodeRequest, resp *CheckChildInodeResponse) error {
	ino, err := s.Handler.CheckChildInode(bgCtx(), req.ParentIno, req.Filename)
	resp.Ret = retFromError(err)
	resp.Ino = ino
	return nil
}

func (s *Service) GetAttr(req *GetAttrRequest, resp *GetAttrResponse) error {
	in, err := s.Handler.GetAttr(bgCtx(), req.Ino)
	resp.Ret = retFromError(err)
	if err == nil {
		resp.Attrs = attrsFromInode(in)
	}
	return nil
}

func (s *Service) Access(req *AccessRequest, resp *AccessResponse) error {
	err := s.Handler.Access(bgCtx(), req.Ino, req.Mask)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) OpenDir(req *OpenDirRequest, resp *OpenDirResponse) error {
	err := s.Handler.OpenDir(bgCtx(), req.Ino)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) ReadDir(req *ReadDirRequest, resp *ReadDirResponse) error {
	entries, err := s.Handler.ReadDir(bgCtx(), req.Ino)
	resp.Ret = retFromError(err)
	resp.Entries = entries
	return nil
}

func (s *Service) MkDir(req *MkDirRequest, resp *MkDirResponse) error {
	ino, err := s.Handler.MkDir(bgCtx(), req.ParentIno, req.Name, req.Mode)
	resp.Ret = retFromError(err)
	resp.Ino = ino
	return nil
}

func (s *Service) RmDirTop(req *RmDirRequest, resp *RmDirResponse) error {
	err := s.Handler.RmDirTop(bgCtx(), req.ParentIno, req.Name)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Symlink(req *SymlinkRequest, resp *SymlinkResponse) error {
	ino, err := s.Handler.Symlink(bgCtx(), req.ParentIno, req.Name, req.Target)
	resp.Ret = retFromError(err)
	resp.Ino = ino
	return nil
}

func (s *Service) ReadLink(req *ReadLinkRequest, resp *ReadLinkResponse) error {
	target, err := s.Handler.ReadLink(bgCtx(), req.Ino)
	resp.Ret = retFromError(err)
	resp.Target = target
	return nil
}

func (s *Service) RenameSameParent(req *RenameSameParentRequest, resp *RenameSameParentResponse) error {
	err := s.Handler.RenameSameParent(bgCtx(), req.ParentIno, req.OldName, req.NewName)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Open(req *OpenRequest, resp *OpenResponse) error {
	err := s.Handler.Open(bgCtx(), req.Ino)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Create(req *CreateRequest, resp *CreateResponse) error {
	ino, err := s.Handler.Create(bgCtx(), req.ParentIno, req.Name, req.Mode)
	resp.Ret = retFromError(err)
	resp.Ino = ino
	return nil
}

func (s *Service) Unlink(req *UnlinkRequest, resp *UnlinkResponse) error {
	err := s.Handler.Unlink(bgCtx(), req.ParentIno, req.Name)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Write(req *WriteRequest, resp *WriteResponse) error {
	allowed, dataKey, err := s.Handler.PrepareWrite(bgCtx(), req.Ino, req.Offset, req.Length)
	resp.Ret = retFromError(err)
	resp.Allowed = allowed
	resp.DataKey = dataKey
	return nil
}

func (s *Service) Chmod(req *ChmodRequest, resp *ChmodResponse) error {
	err := s.Handler.Chmod(bgCtx(), req.Ino, req.Mode)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Chown(req *ChownRequest, resp *ChownResponse) error {
	err := s.Handler.Chown(bgCtx(), req.Ino, req.Uid, req.Gid)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Utimens(req *UtimensRequest, resp *UtimensResponse) error {
	attrs := InodeAttrs{AtimeNs: req.AtimeNs, MtimeNs: req.MtimeNs}
	atime, mtime, _ := attrs.toTimes()
	err := s.Handler.Utimens(bgCtx(), req.Ino, atime, mtime)
	resp.Ret = retFromError(err)
	return nil
}

func (s *Service) Truncate(req *TruncateRequest, resp *TruncateResponse) error {
	allowed, dataKey, err := s.Handler.PrepareTruncate(bgCtx(), req.Ino, req.Size)
	resp.Ret = retFromError(err)
	resp.Allowed = allowed
	resp.DataKey = dataKey
	return nil
}

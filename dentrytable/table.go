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
// Package dentrytable implements the in-memory per-directory handle of
// spec.md §4.5: a LOCAL variant backed by a real dentry and its
// materialised children, and a REMOTE variant that only knows the leader
// to forward to. See spec.md §3 "Dentry table (in-memory)".
package dentrytable

import (
	"context"
	"os"
	"sync"

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
)

// Location tags which variant a Table is. Mirrors metadata.Location but
// lives in its own type since a dentry table's location and an inode's
// location, while usually in step, are conceptually distinct facts.
type Location uint8

const (
	Local Location = iota
	Remote
)

// Table is a per-directory dentry table. Exactly one of the Local/Remote
// field groups is meaningful, selected by Loc — the Go equivalent of the
// source's subclass split (spec.md §9 "REMOTE vs LOCAL inode
// polymorphism").
type Table struct {
	mu sync.Mutex

	DirIno uint64
	Loc    Location

	// LOCAL fields.
	dentry   *metadata.Dentry
	children map[string]*metadata.Inode
	store    *osio.Store

	// REMOTE fields.
	LeaderAddr string
}

// ChildRef is what a lookup against a dentry table hands back: either a
// materialised Inode (Loc == Local and Inode != nil) or a handle
// sufficient for the dispatcher to forward the op to RemoteAddr. Ino is
// always populated, even on a remote reference, once the caller has
// resolved it (e.g. via a directory table's path walker).
type ChildRef struct {
	Ino        uint64
	Inode      *metadata.Inode
	RemoteAddr string
	ParentIno  uint64
	Filename   string
}

// IsRemote reports whether this reference must be forwarded.
func (c ChildRef) IsRemote() bool { return c.Inode == nil }

// NewLocal builds a LOCAL dentry table with an empty dentry for dirIno.
// PullChildMetadata populates it from the object store afterwards,
// matching the source's two-step construct-then-populate flow.
func NewLocal(dirIno uint64, store *osio.Store) *Table {
	return &Table{
		DirIno:   dirIno,
		Loc:      Local,
		dentry:   metadata.NewDentry(dirIno),
		children: make(map[string]*metadata.Inode),
		store:    store,
	}
}

// NewRemote builds a REMOTE shell that only knows where to forward.
func NewRemote(dirIno uint64, leaderAddr string) *Table {
	return &Table{DirIno: dirIno, Loc: Remote, LeaderAddr: leaderAddr}
}

// CreateChild inserts filename -> child into the in-memory map, the
// backing dentry, and syncs the dentry to the object store before
// returning. Refuses a duplicate name.
func (t *Table) CreateChild(ctx context.Context, filename string, child *metadata.Inode) error {
	if t.Loc != Local {
		return ferr.New(ferr.Unsupported, "create_child on remote dentry table %d", t.DirIno)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.children[filename]; exists {
		return ferr.New(ferr.AlreadyExists, "%q already exists in directory %d", filename, t.DirIno)
	}

	t.children[filename] = child
	t.dentry.AddChild(filename, child.Ino)
	return t.syncLocked(ctx)
}

// AddChild is CreateChild without persistence, used while populating a
// table from an already-persisted dentry.
func (t *Table) AddChild(filename string, child *metadata.Inode) error {
	if t.Loc != Local {
		return ferr.New(ferr.Unsupported, "add_child on remote dentry table %d", t.DirIno)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.children[filename]; exists {
		return ferr.New(ferr.AlreadyExists, "%q already exists in directory %d", filename, t.DirIno)
	}
	t.children[filename] = child
	return nil
}

// DeleteChild removes filename from the in-memory map and the backing
// dentry, then syncs. Refuses a missing name.
func (t *Table) DeleteChild(ctx context.Context, filename string) error {
	if t.Loc != Local {
		return ferr.New(ferr.Unsupported, "delete_child on remote dentry table %d", t.DirIno)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.children[filename]; !exists {
		return ferr.New(ferr.NoEntry, "%q not found in directory %d", filename, t.DirIno)
	}

	delete(t.children, filename)
	t.dentry.DeleteChild(filename)
	return t.syncLocked(ctx)
}

// GetChildInode returns a ChildRef for filename: a materialised inode on
// a LOCAL table, or a forwarding handle on a REMOTE table. "/" always
// special-cases to the well-known root.
func (t *Table) GetChildInode(filename string) (ChildRef, error) {
	if filename == "/" {
		in := &metadata.Inode{Ino: metadata.RootIno, Loc: metadata.Local, Mode: os.ModeDir | 0755}
		return ChildRef{Ino: in.Ino, Inode: in}, nil
	}

	if t.Loc == Remote {
		return ChildRef{RemoteAddr: t.LeaderAddr, ParentIno: t.DirIno, Filename: filename}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	child, ok := t.children[filename]
	if !ok {
		return ChildRef{}, ferr.New(ferr.NoEntry, "%q not found in directory %d", filename, t.DirIno)
	}
	return ChildRef{Ino: child.Ino, Inode: child}, nil
}

// CheckChildInode looks up filename without materialising a full inode,
// returning its ino or -1 on a miss. On a REMOTE table, the caller (the
// directory table's path walker) is expected to perform the single RPC
// described in spec.md §4.5 instead; this local variant only ever answers
// for LOCAL tables.
func (t *Table) CheckChildInode(filename string) int64 {
	if filename == "/" {
		return int64(metadata.RootIno)
	}
	if t.Loc != Local {
		return -1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	child, ok := t.children[filename]
	if !ok {
		return -1
	}
	return int64(child.Ino)
}

// PullChildMetadata reads the backing dentry object and populates the
// in-memory map with one lazily-loaded inode reference per child.
// loadInode is supplied by the caller (the directory table) since loading
// a full inode record requires the object store and the key scheme, both
// outside this package's concern.
func (t *Table) PullChildMetadata(ctx context.Context, loadInode func(ctx context.Context, ino uint64) (*metadata.Inode, error)) error {
	if t.Loc != Local {
		return ferr.New(ferr.Unsupported, "pull_child_metadata on remote dentry table %d", t.DirIno)
	}

	key := metadata.DentryKey(t.DirIno)
	exists, err := t.store.Exist(ctx, key)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !exists {
		t.dentry = metadata.NewDentry(t.DirIno)
		t.children = make(map[string]*metadata.Inode)
		return nil
	}

	size, _, err := t.store.Size(ctx, key)
	if err != nil {
		return err
	}
	raw, _, err := t.store.Read(ctx, key, 0, size)
	if err != nil {
		return err
	}
	d, err := metadata.DeserializeDentry(t.DirIno, raw)
	if err != nil {
		return err
	}

	t.dentry = d
	t.children = make(map[string]*metadata.Inode, len(d.Children))
	for name, ino := range d.Children {
		in, err := loadInode(ctx, ino)
		if err != nil {
			return err
		}
		t.children[name] = in
	}
	return nil
}

// ChildCount reports how many children this LOCAL table currently holds.
func (t *Table) ChildCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.children)
}

// Names returns a snapshot of this LOCAL table's child filenames, used by
// readdir.
func (t *Table) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	return names
}

func (t *Table) syncLocked(ctx context.Context) error {
	_, err := t.store.Write(ctx, metadata.DentryKey(t.DirIno), 0, t.dentry.Serialize())
	return err
}

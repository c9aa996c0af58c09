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

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
)

// LoadInode reads and deserializes the persisted record for ino. It
// implements dirtable.InodeLoader so the same code path populates a
// dentry table and answers a direct getattr.
func (d *Dispatcher) LoadInode(ctx context.Context, ino uint64) (*metadata.Inode, error) {
	key := metadata.InodeKey(ino)
	size, exists, err := d.env.Store.Size(ctx, key)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !exists {
		return nil, ferr.New(ferr.NoEntry, "inode %d not found", ino)
	}

	raw, _, err := d.env.Store.Read(ctx, key, 0, size)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return metadata.DeserializeInode(raw)
}

// storeInode persists in's current fields to inode$<ino>.
func (d *Dispatcher) storeInode(ctx context.Context, in *metadata.Inode) error {
	_, err := d.env.Store.Write(ctx, metadata.InodeKey(in.Ino), 0, in.Serialize())
	return wrapStoreErr(err)
}

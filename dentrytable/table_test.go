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
package dentrytable

import (
	"context"
	"os"
	"testing"

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/metadata"
	"github.com/clusterfs/clusterfs/osio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable() (*Table, *osio.Store) {
	store := osio.NewStore(osio.NewMemStore(), 4096)
	return NewLocal(1, store), store
}

func TestTable_CreateChildRefusesDuplicate(t *testing.T) {
	ctx := context.Background()
	table, _ := newTestTable()
	child := &metadata.Inode{Ino: 2, Mode: 0644}

	require.NoError(t, table.CreateChild(ctx, "f", child))

	err := table.CreateChild(ctx, "f", child)
	require.Error(t, err)
	var domainErr *ferr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ferr.AlreadyExists, domainErr.Kind)
}

func TestTable_DeleteChildRefusesMissing(t *testing.T) {
	ctx := context.Background()
	table, _ := newTestTable()

	err := table.DeleteChild(ctx, "nope")
	var domainErr *ferr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ferr.NoEntry, domainErr.Kind)
}

// TestTable_DentrySync checks spec.md §8 property #5: after CreateChild or
// DeleteChild returns, the on-disk dentry reflects the change.
func TestTable_DentrySync(t *testing.T) {
	ctx := context.Background()
	table, store := newTestTable()
	child := &metadata.Inode{Ino: 2, Mode: 0644}

	require.NoError(t, table.CreateChild(ctx, "f", child))

	raw, n, err := store.Read(ctx, metadata.DentryKey(1), 0, 4096)
	require.NoError(t, err)
	onDisk, err := metadata.DeserializeDentry(1, raw[:n])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), onDisk.Children["f"])

	require.NoError(t, table.DeleteChild(ctx, "f"))

	raw, n, err = store.Read(ctx, metadata.DentryKey(1), 0, 4096)
	require.NoError(t, err)
	onDisk, err = metadata.DeserializeDentry(1, raw[:n])
	require.NoError(t, err)
	_, stillThere := onDisk.Children["f"]
	assert.False(t, stillThere)
}

func TestTable_GetChildInodeRootSpecialCase(t *testing.T) {
	table, _ := newTestTable()

	ref, err := table.GetChildInode("/")
	require.NoError(t, err)
	require.NotNil(t, ref.Inode)
	assert.Equal(t, metadata.RootIno, ref.Inode.Ino)
}

func TestTable_RemoteTableReturnsForwardingHandle(t *testing.T) {
	table := NewRemote(5, "peer:9000")

	ref, err := table.GetChildInode("f")
	require.NoError(t, err)
	assert.True(t, ref.IsRemote())
	assert.Equal(t, "peer:9000", ref.RemoteAddr)
	assert.Equal(t, uint64(5), ref.ParentIno)
	assert.Equal(t, "f", ref.Filename)
}

func TestTable_PullChildMetadataPopulatesFromDisk(t *testing.T) {
	ctx := context.Background()
	store := osio.NewStore(osio.NewMemStore(), 4096)

	d := metadata.NewDentry(1)
	d.AddChild("f", 2)
	_, err := store.Write(ctx, metadata.DentryKey(1), 0, d.Serialize())
	require.NoError(t, err)

	table := NewLocal(1, store)
	loaded := map[uint64]*metadata.Inode{2: {Ino: 2, Mode: os.FileMode(0644)}}
	err = table.PullChildMetadata(ctx, func(ctx context.Context, ino uint64) (*metadata.Inode, error) {
		return loaded[ino], nil
	})
	require.NoError(t, err)

	ref, err := table.GetChildInode("f")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ref.Inode.Ino)
}

func TestTable_CheckChildInodeMiss(t *testing.T) {
	table, _ := newTestTable()
	assert.Equal(t, int64(-1), table.CheckChildInode("nope"))
}

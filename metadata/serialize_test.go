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
package metadata

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInode_SerializeRoundTripLocal(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	in := &Inode{
		Ino:   42,
		Mode:  os.ModeDir | 0755,
		Uid:   1000,
		Gid:   1000,
		Nlink: 2,
		Size:  4096,
		Atime: now,
		Mtime: now,
		Ctime: now,
		Loc:   Local,
	}

	out, err := DeserializeInode(in.Serialize())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestInode_SerializeRoundTripRemote(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	in := &Inode{
		Ino:        7,
		Mode:       0644,
		Uid:        0,
		Gid:        0,
		Nlink:      1,
		Size:       0,
		Atime:      now,
		Mtime:      now,
		Ctime:      now,
		Loc:        Remote,
		LeaderAddr: "10.0.0.5:9000",
		ParentIno:  1,
		Filename:   "f",
	}

	out, err := DeserializeInode(in.Serialize())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestInode_DeserializeRejectsTrailingBytes(t *testing.T) {
	in := &Inode{Ino: 1, Loc: Local}
	raw := append(in.Serialize(), 0xFF)

	_, err := DeserializeInode(raw)
	assert.Error(t, err)
}

func TestDentry_SerializeRoundTrip(t *testing.T) {
	d := NewDentry(1)
	d.AddChild("a", 2)
	d.AddChild("b", 3)

	out, err := DeserializeDentry(1, d.Serialize())
	require.NoError(t, err)
	assert.Equal(t, d, out)
}

func TestDentry_SerializeRoundTripEmpty(t *testing.T) {
	d := NewDentry(1)

	out, err := DeserializeDentry(1, d.Serialize())
	require.NoError(t, err)
	assert.Equal(t, d, out)
}

func TestDentry_DeserializeRejectsTrailingBytes(t *testing.T) {
	d := NewDentry(1)
	raw := append(d.Serialize(), 0x01)

	_, err := DeserializeDentry(1, raw)
	assert.Error(t, err)
}

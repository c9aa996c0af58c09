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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// RootIno is the well-known identifier of the filesystem root, created at
// the first-ever mount and never reassigned. See spec.md §4.6.
const RootIno uint64 = 1

// Location tags whether an inode is authoritatively cached on this client
// or must be reached through a remote peer. See spec.md §3 "Inode".
type Location uint8

const (
	Local Location = iota
	Remote
)

// Inode is the per-file metadata record described in spec.md §3. Remote
// fields are only meaningful when Loc == Remote.
type Inode struct {
	Ino   uint64
	Mode  os.FileMode
	Uid   uint32
	Gid   uint32
	Nlink uint32
	Size  int64

	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	Loc Location

	// Remote-only fields.
	LeaderAddr string
	ParentIno  uint64
	Filename   string
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Mode.IsDir() }

// Serialize writes the inode as a fixed-layout record: every field in a
// deterministic order and width, strings length-prefixed. See spec.md
// §4.4.
func (in *Inode) Serialize() []byte {
	var buf bytes.Buffer

	writeU64(&buf, in.Ino)
	writeU32(&buf, uint32(in.Mode))
	writeU32(&buf, in.Uid)
	writeU32(&buf, in.Gid)
	writeU32(&buf, in.Nlink)
	writeI64(&buf, in.Size)
	writeTime(&buf, in.Atime)
	writeTime(&buf, in.Mtime)
	writeTime(&buf, in.Ctime)
	buf.WriteByte(byte(in.Loc))

	if in.Loc == Remote {
		writeString(&buf, in.LeaderAddr)
		writeU64(&buf, in.ParentIno)
		writeString(&buf, in.Filename)
	}

	return buf.Bytes()
}

// DeserializeInode reverses Serialize, verifying that the total consumed
// byte length equals len(raw), per spec §4.4's invariant-check.
func DeserializeInode(raw []byte) (*Inode, error) {
	r := bytes.NewReader(raw)
	in := &Inode{}

	var err error
	if in.Ino, err = readU64(r); err != nil {
		return nil, err
	}
	mode, err := readU32(r)
	if err != nil {
		return nil, err
	}
	in.Mode = os.FileMode(mode)
	if in.Uid, err = readU32(r); err != nil {
		return nil, err
	}
	if in.Gid, err = readU32(r); err != nil {
		return nil, err
	}
	if in.Nlink, err = readU32(r); err != nil {
		return nil, err
	}
	if in.Size, err = readI64(r); err != nil {
		return nil, err
	}
	if in.Atime, err = readTime(r); err != nil {
		return nil, err
	}
	if in.Mtime, err = readTime(r); err != nil {
		return nil, err
	}
	if in.Ctime, err = readTime(r); err != nil {
		return nil, err
	}
	loc, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	in.Loc = Location(loc)

	if in.Loc == Remote {
		if in.LeaderAddr, err = readString(r); err != nil {
			return nil, err
		}
		if in.ParentIno, err = readU64(r); err != nil {
			return nil, err
		}
		if in.Filename, err = readString(r); err != nil {
			return nil, err
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("metadata: %d trailing bytes after deserializing inode$%d", r.Len(), in.Ino)
	}

	return in, nil
}

func writeU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }
func writeU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func writeI64(buf *bytes.Buffer, v int64)  { binary.Write(buf, binary.LittleEndian, v) }

func writeTime(buf *bytes.Buffer, t time.Time) {
	writeI64(buf, t.UnixNano())
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU64(r *bytes.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readI64(r *bytes.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readTime(r *bytes.Reader) (time.Time, error) {
	ns, err := readI64(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns).UTC(), nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

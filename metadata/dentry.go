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
	"fmt"
)

// Dentry is the on-disk representation of a directory's children, per
// spec.md §3 "Dentry": the directory's own identifier plus a mapping from
// filename to child identifier.
type Dentry struct {
	DirIno   uint64
	Children map[string]uint64
}

// NewDentry returns an empty dentry for dirIno.
func NewDentry(dirIno uint64) *Dentry {
	return &Dentry{DirIno: dirIno, Children: make(map[string]uint64)}
}

// AddChild inserts or overwrites a child mapping.
func (d *Dentry) AddChild(name string, ino uint64) {
	d.Children[name] = ino
}

// DeleteChild removes a child mapping.
func (d *Dentry) DeleteChild(name string) {
	delete(d.Children, name)
}

// Serialize writes the dentry as (child_count, Σ(namelen, name,
// child_ino)) into a single object, per spec §4.4.
func (d *Dentry) Serialize() []byte {
	var buf bytes.Buffer
	writeU64(&buf, uint64(len(d.Children)))
	for name, ino := range d.Children {
		writeString(&buf, name)
		writeU64(&buf, ino)
	}
	return buf.Bytes()
}

// DeserializeDentry reverses Serialize for directory dirIno, verifying
// that the total consumed byte length equals the object size.
func DeserializeDentry(dirIno uint64, raw []byte) (*Dentry, error) {
	r := bytes.NewReader(raw)
	count, err := readU64(r)
	if err != nil {
		return nil, err
	}

	d := NewDentry(dirIno)
	for i := uint64(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		ino, err := readU64(r)
		if err != nil {
			return nil, err
		}
		d.Children[name] = ino
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("metadata: %d trailing bytes after deserializing dentry$%d", r.Len(), dirIno)
	}

	return d, nil
}

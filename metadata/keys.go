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
// Package metadata defines the persisted record formats for inodes and
// dentries and the object-store key scheme they live under. See spec.md
// §3 and §4.4.
package metadata

import "fmt"

// ClientListKey is the persisted bitmap of active/free client ids.
const ClientListKey = "client.list"

// InoOffsetKey is the persisted next-inode-number counter for a client.
func InoOffsetKey(clientID uint32) string {
	return fmt.Sprintf("ino_offset$%d", clientID)
}

// InodeKey is the persisted key for an inode record.
func InodeKey(ino uint64) string {
	return fmt.Sprintf("inode$%d", ino)
}

// DentryKey is the persisted key for a directory's dentry record.
func DentryKey(ino uint64) string {
	return fmt.Sprintf("dentry$%d", ino)
}

// DataKey is the logical OSIO key under which a file's segmented content
// lives; OSIO further splits it into "<ino>$<segment>" backing objects.
func DataKey(ino uint64) string {
	return fmt.Sprintf("%d", ino)
}

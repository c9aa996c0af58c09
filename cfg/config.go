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
// Package cfg holds the typed configuration for a mounted client, decoded
// from flags/viper the way the teacher repo's cfg package decodes gcsfuse's
// configuration.
package cfg

import "time"

// Config is the full set of knobs a mounted client needs. Mirrors the
// teacher's ServerConfig/Config split: constant, validated data produced
// once at startup and threaded through every constructor (see
// dispatch.Env), never read from a global afterwards.
type Config struct {
	// Bucket is the name of the backing object-store bucket.
	Bucket string

	// MountPoint is the local path the filesystem is mounted at.
	MountPoint string

	// CoordinatorAddr is the lease coordinator's net/rpc address.
	CoordinatorAddr string

	// SelfAddr is this client's own publishable net/rpc address, handed to
	// the coordinator on every acquire and to peers for forwarding.
	SelfAddr string

	// ObjectSize is the fixed backing-object size objects are segmented
	// into, must be a power of two. 4 MiB in the reference.
	ObjectSize int64

	// LeasePeriod is checked by Validate (it must be positive) but is not
	// passed on: the lease coordinator and clients use the fixed
	// lease.Period (10s).
	LeasePeriod time.Duration

	// Uid/Gid own the root inode that mount writes when the bucket has
	// none; inodes created afterwards do not take their owner from here.
	Uid uint32
	Gid uint32

	// DirPerms are the permission bits of that root inode. FilePerms is
	// checked by Validate but is not applied to any inode.
	FilePerms Octal
	DirPerms  Octal

	// LogSeverity names a minimum log severity. The mount and coordinator
	// commands do not read it; they log through logger.Default at INFO.
	LogSeverity string

	// LogFormat is "text" or "json" (checked by Validate). The mount and
	// coordinator commands do not read it; logger.Default writes text.
	LogFormat string
}

const (
	// DefaultObjectSize is 4 MiB, matching OSIO's reference object size.
	DefaultObjectSize int64 = 4 << 20

	// DefaultLeasePeriod is 10s, matching the lease coordinator's fixed
	// lease period.
	DefaultLeasePeriod = 10 * time.Second
)

// GetDefaultConfig returns the configuration used before flags/viper have
// been applied, matching the teacher's GetDefault*Config helpers.
func GetDefaultConfig() Config {
	return Config{
		ObjectSize:  DefaultObjectSize,
		LeasePeriod: DefaultLeasePeriod,
		FilePerms:   0644,
		DirPerms:    0755,
		LogSeverity: "INFO",
		LogFormat:   "text",
	}
}

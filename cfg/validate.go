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
package cfg

import (
	"fmt"
	"math/bits"
)

// Validate checks that c's fields form a legal configuration, matching the
// teacher's practice of validating its Config struct once before building
// anything on top of it.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket must be set")
	}
	if c.MountPoint == "" {
		return fmt.Errorf("mount point must be set")
	}
	if c.CoordinatorAddr == "" {
		return fmt.Errorf("coordinator address must be set")
	}
	if c.SelfAddr == "" {
		return fmt.Errorf("self address must be set")
	}
	if c.ObjectSize <= 0 || bits.OnesCount64(uint64(c.ObjectSize)) != 1 {
		return fmt.Errorf("object size must be a power of two, got %d", c.ObjectSize)
	}
	if c.LeasePeriod <= 0 {
		return fmt.Errorf("lease period must be positive")
	}
	if c.FilePerms&^Octal(0777) != 0 {
		return fmt.Errorf("illegal file perms: %v", c.FilePerms)
	}
	if c.DirPerms&^Octal(0777) != 0 {
		return fmt.Errorf("illegal dir perms: %v", c.DirPerms)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

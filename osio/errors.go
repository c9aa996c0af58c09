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
package osio

import "fmt"

// ErrMissingObject is raised when a read touches a backing object that does
// not exist. BytesSoFar carries how much of the logical read had already
// been satisfied, so the caller can report a short read up to that point
// per spec §4.1 "Stitching".
type ErrMissingObject struct {
	Key        string
	BytesSoFar int
}

func (e *ErrMissingObject) Error() string {
	return fmt.Sprintf("osio: missing object %q after %d bytes", e.Key, e.BytesSoFar)
}

// ErrLockContended is raised when the Store's advisory lock on a segment
// is already held by another holder.
type ErrLockContended struct {
	Key string
}

func (e *ErrLockContended) Error() string {
	return fmt.Sprintf("osio: lock contended on %q", e.Key)
}

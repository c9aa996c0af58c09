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
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/osio"
)

// TestToErrno_WrapsOSIOErrors exercises the gap a missing osio->ferr
// conversion would otherwise leave: an *osio.ErrLockContended or
// *osio.ErrMissingObject reaching toErrno directly, rather than already
// boxed as a *ferr.Error, must still land on the documented errno rather
// than falling through to the generic EIO default.
func TestToErrno_WrapsOSIOErrors(t *testing.T) {
	assert.Equal(t, -int(syscall.EAGAIN), toErrno(&osio.ErrLockContended{Key: "inode$5$0"}))
	assert.Equal(t, -int(syscall.EIO), toErrno(&osio.ErrMissingObject{Key: "data$5$0", BytesSoFar: 12}))
}

func TestWrapStoreErr_PassesThroughUnrelatedErrors(t *testing.T) {
	domain := ferr.New(ferr.NoEntry, "missing")
	assert.Same(t, domain, wrapStoreErr(domain))
	assert.Nil(t, wrapStoreErr(nil))
}

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
package remoteops

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clusterfs/clusterfs/ferr"
)

func TestRetFromError_MapsLockContendedAndMissingObject(t *testing.T) {
	assert.Equal(t, RetLockContended, retFromError(ferr.New(ferr.LockContended, "x")))
	assert.Equal(t, RetMissingObject, retFromError(ferr.New(ferr.MissingObject, "x")))
	assert.Equal(t, RetOK, retFromError(nil))
	assert.Equal(t, RetUnsupported, retFromError(errors.New("not a domain error")))
}

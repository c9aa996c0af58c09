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

import "github.com/clusterfs/clusterfs/ferr"

// retFromError maps a domain error to one of this package's wire ret
// codes. A nil error maps to RetOK. Anything not recognized collapses to
// RetUnsupported rather than leaking an unstructured error across the
// wire.
func retFromError(err error) int32 {
	if err == nil {
		return RetOK
	}
	domainErr, ok := err.(*ferr.Error)
	if !ok {
		return RetUnsupported
	}
	switch domainErr.Kind {
	case ferr.NoEntry:
		return RetNoEntry
	case ferr.PermissionDenied:
		return RetPermission
	case ferr.AlreadyExists:
		return RetExists
	case ferr.NotLeader:
		return RetNotLeader
	case ferr.LockContended:
		return RetLockContended
	case ferr.MissingObject:
		return RetMissingObject
	default:
		return RetUnsupported
	}
}

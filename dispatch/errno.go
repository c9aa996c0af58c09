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
	"errors"
	"syscall"

	"github.com/clusterfs/clusterfs/ferr"
	"github.com/clusterfs/clusterfs/osio"
)

// wrapStoreErr turns an osio error into the *ferr.Error kind toErrno
// already knows how to translate. osio raises its own types rather than
// ferr's because it has no dependency on the dispatch package; this is
// the one place that bridges them, per spec.md §7's "the object-store
// layer ... raise[s] domain exceptions; the dispatcher is the single
// place that converts them to POSIX errno."
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	var missing *osio.ErrMissingObject
	if errors.As(err, &missing) {
		return &ferr.Error{Kind: ferr.MissingObject, Msg: missing.Error(), BytesSoFar: missing.BytesSoFar}
	}
	var contended *osio.ErrLockContended
	if errors.As(err, &contended) {
		return ferr.New(ferr.LockContended, "%s", contended.Error())
	}
	return err
}

// toErrno is the dispatcher's sole translation point from a domain error
// to a POSIX errno, per spec.md §4.7 step 4 and §7 "Propagation": no
// layer below the dispatcher inspects errno values.
func toErrno(err error) int {
	if err == nil {
		return 0
	}
	err = wrapStoreErr(err)

	domainErr, ok := err.(*ferr.Error)
	if !ok {
		return -int(syscall.EIO)
	}

	switch domainErr.Kind {
	case ferr.NoEntry:
		return -int(syscall.ENOENT)
	case ferr.PermissionDenied:
		return -int(syscall.EACCES)
	case ferr.AlreadyExists:
		return -int(syscall.EEXIST)
	case ferr.MissingObject:
		return -int(syscall.EIO)
	case ferr.LockContended:
		return -int(syscall.EAGAIN)
	case ferr.NotLeader:
		return -int(syscall.EIO)
	case ferr.TransportFailure:
		return -int(syscall.EIO)
	case ferr.Unsupported:
		return -int(syscall.ENOSYS)
	default:
		return -int(syscall.EIO)
	}
}

// ToError is toErrno's counterpart for callers outside this package that
// need a syscall.Errno value rather than a negative int — namely the FUSE
// adapter in internal/fs, whose op.Respond expects an error the kernel glue can
// read an errno out of.
func ToError(err error) error {
	if err == nil {
		return nil
	}
	n := toErrno(err)
	if n == 0 {
		return nil
	}
	return syscall.Errno(-n)
}

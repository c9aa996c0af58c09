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
package lease

import "time"

// Acquire's reply codes on the wire, per spec.md §6 "Lease RPC":
// acquire({ino, remote_addr}) -> {ret, due_ns, leader_addr}.
const (
	AcquireGranted int32 = 0
	AcquireDenied  int32 = 1
)

// AcquireRequest is the lease RPC's request payload.
type AcquireRequest struct {
	Ino        uint64
	RemoteAddr string
}

// AcquireResponse is the lease RPC's reply payload. DueNs is the lease
// deadline as a Unix nanosecond timestamp, so it survives a gob round trip
// without depending on time.Time's wall/monotonic internals.
type AcquireResponse struct {
	Ret        int32
	DueNs      int64
	LeaderAddr string
}

// CoordinatorService is the net/rpc-exported wrapper around a Table, run by
// the lease coordinator process.
type CoordinatorService struct {
	Table *Table
}

// Acquire implements the net/rpc method signature required by
// (*net/rpc.Server).Register: exactly one exported method per call, taking
// a pointer request and a pointer reply, returning only an error.
func (s *CoordinatorService) Acquire(req *AcquireRequest, resp *AcquireResponse) error {
	granted, deadline, effectiveAddr := s.Table.Acquire(req.Ino, req.RemoteAddr)

	resp.DueNs = deadline.UnixNano()
	resp.LeaderAddr = effectiveAddr
	if granted {
		resp.Ret = AcquireGranted
	} else {
		resp.Ret = AcquireDenied
	}
	return nil
}

func dueTime(dueNs int64) time.Time {
	return time.Unix(0, dueNs)
}

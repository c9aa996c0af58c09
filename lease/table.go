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
// Package lease implements the coordinator's directory-lease table: a
// time-bounded, atomically granted exclusive-writer registry indexed by
// directory inode, with a compare-and-swap renewal protocol. See spec.md
// §4.2.
package lease

import (
	"sync"
	"time"

	"github.com/clusterfs/clusterfs/internal/clock"
)

// Period is the fixed lifetime of a granted lease.
const Period = 10 * time.Second

// entry is a single directory's lease state: a deadline and the address of
// the client currently entitled to act as leader. Protected by its own
// mutex so renewal of one directory's lease never blocks another's.
type entry struct {
	mu         sync.Mutex
	deadline   time.Time
	leaderAddr string
}

// cas applies the coordinator's compare-and-swap renewal rule: if now is at
// or past the deadline, the lease is up for grabs and requestedAddr becomes
// the new leader for one more Period; otherwise the existing leader is
// returned untouched.
func (e *entry) cas(now time.Time, period time.Duration, requestedAddr string) (granted bool, deadline time.Time, effectiveAddr string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !now.Before(e.deadline) {
		e.deadline = now.Add(period)
		e.leaderAddr = requestedAddr
		return true, e.deadline, requestedAddr
	}
	return false, e.deadline, e.leaderAddr
}

// Table is the coordinator's process-lifetime lease registry. It is guarded
// by a many-readers/one-writer lock: looking up an existing entry only
// needs a read lock, since the entry carries its own lock for the actual
// CAS; only inserting a brand-new entry needs the write lock.
type Table struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
	clock   clock.Clock
	period  time.Duration
}

// NewTable builds an empty lease table. The table is meant to live for the
// lifetime of the coordinator process; it is never torn down while clients
// may still be contacting it.
func NewTable(c clock.Clock) *Table {
	return &Table{
		entries: make(map[uint64]*entry),
		clock:   c,
		period:  Period,
	}
}

// Acquire runs the coordinator's acquire(ino, requested_addr) protocol.
// granted reports whether requestedAddr became the leader (an unexpired
// lease is denied even to the address that already holds it);
// deadline is the lease's new or current expiry; effectiveAddr is the
// leader the caller should treat as authoritative — itself on a grant, the
// existing leader on a denial.
func (t *Table) Acquire(ino uint64, requestedAddr string) (granted bool, deadline time.Time, effectiveAddr string) {
	now := t.clock.Now()

	t.mu.RLock()
	e, ok := t.entries[ino]
	t.mu.RUnlock()

	if ok {
		return e.cas(now, t.period, requestedAddr)
	}

	t.mu.Lock()
	e, ok = t.entries[ino]
	if !ok {
		e = &entry{deadline: now.Add(t.period), leaderAddr: requestedAddr}
		t.entries[ino] = e
		t.mu.Unlock()
		return true, e.deadline, requestedAddr
	}
	t.mu.Unlock()

	return e.cas(now, t.period, requestedAddr)
}

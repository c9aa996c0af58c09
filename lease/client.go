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

import (
	"fmt"
	"sync"
	"time"

	"github.com/clusterfs/clusterfs/internal/clock"
)

// Transport is what a Client uses to reach the coordinator. The production
// implementation dials a fresh net/rpc connection per call, matching the
// remote-operations shim's "fresh channel per request" style (spec.md
// §4.8); tests substitute an in-process fake wired directly to a Table.
type Transport interface {
	Acquire(req AcquireRequest) (AcquireResponse, error)
}

// cacheEntry is a client's local belief about one directory's lease.
type cacheEntry struct {
	deadline time.Time
	mine     bool
}

// Client is the per-mount lease client of spec.md §4.3: a local cache of
// owned leases plus an RPC stub to the coordinator.
type Client struct {
	mu        sync.Mutex
	selfAddr  string
	cache     map[uint64]cacheEntry
	transport Transport
	clock     clock.Clock
}

// NewClient builds a lease client that identifies itself to the
// coordinator as selfAddr.
func NewClient(selfAddr string, transport Transport, c clock.Clock) *Client {
	return &Client{
		selfAddr:  selfAddr,
		cache:     make(map[uint64]cacheEntry),
		transport: transport,
		clock:     c,
	}
}

// IsValid reports whether ino has any unexpired cache entry, ours or not.
func (c *Client) IsValid(ino uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[ino]
	return ok && c.clock.Now().Before(e.deadline)
}

// IsMine reports whether ino has an unexpired entry granted to us.
func (c *Client) IsMine(ino uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[ino]
	return ok && e.mine && c.clock.Now().Before(e.deadline)
}

// AcquireResult is the outcome of Acquire: either this client owns ino, or
// the caller must forward the operation to ForwardAddr.
type AcquireResult struct {
	Owned       bool
	ForwardAddr string
}

// Acquire implements spec.md §4.3's acquire(ino): if IsMine already holds,
// it returns owned without a round trip; otherwise it asks the coordinator
// and updates the local cache from the reply. A transport error is fatal
// to the calling op.
func (c *Client) Acquire(ino uint64) (AcquireResult, error) {
	if c.IsMine(ino) {
		return AcquireResult{Owned: true}, nil
	}

	resp, err := c.transport.Acquire(AcquireRequest{Ino: ino, RemoteAddr: c.selfAddr})
	if err != nil {
		return AcquireResult{}, fmt.Errorf("lease: transport failure: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := dueTime(resp.DueNs)
	if resp.Ret == AcquireGranted {
		c.cache[ino] = cacheEntry{deadline: deadline, mine: true}
		return AcquireResult{Owned: true}, nil
	}

	c.cache[ino] = cacheEntry{deadline: deadline, mine: false}
	return AcquireResult{Owned: false, ForwardAddr: resp.LeaderAddr}, nil
}

// LeaseNewlyCreated records ino as owned by this client without a round
// trip, for lease_dentry_table(ino) after a LOCAL mkdir succeeds (spec.md
// §4.6 "Lease upgrade"): the directory is brand-new and has no other
// claimant, so there is nothing to negotiate.
func (c *Client) LeaseNewlyCreated(ino uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[ino] = cacheEntry{deadline: c.clock.Now().Add(Period), mine: true}
}

// Invalidate drops ino's cache entry so the next Acquire re-negotiates
// instead of trusting a stale "mine". The remote-operations client does
// not call it on a -ENOTLEADER reply; that reply reaches the caller as a
// ferr.NotLeader error.
func (c *Client) Invalidate(ino uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, ino)
}

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
	"sync"
	"testing"
	"time"

	"github.com/clusterfs/clusterfs/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AcquireFreshInoGrantsImmediately(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)

	granted, deadline, addr := table.Acquire(1, "client-a:9000")

	assert.True(t, granted)
	assert.Equal(t, "client-a:9000", addr)
	assert.Equal(t, c.Now().Add(Period), deadline)
}

func TestTable_AcquireDeniesWhileLeaseUnexpired(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)

	granted, _, _ := table.Acquire(1, "client-a:9000")
	require.True(t, granted)

	c.AdvanceTime(5 * time.Second)

	granted, _, addr := table.Acquire(1, "client-b:9000")
	assert.False(t, granted)
	assert.Equal(t, "client-a:9000", addr)
}

func TestTable_AcquireGrantsAfterExpiry(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)

	granted, _, _ := table.Acquire(1, "client-a:9000")
	require.True(t, granted)

	c.AdvanceTime(Period)

	granted, deadline, addr := table.Acquire(1, "client-b:9000")
	assert.True(t, granted)
	assert.Equal(t, "client-b:9000", addr)
	assert.Equal(t, c.Now().Add(Period), deadline)
}

// TestTable_LeaseExclusivity drives many concurrent acquires of a fresh ino
// at one simulated instant and checks that exactly one of them is granted,
// per spec.md §8 property #1.
func TestTable_LeaseExclusivity(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)

	const clients = 8
	var wg sync.WaitGroup
	results := make([]bool, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			granted, _, _ := table.Acquire(42, addrFor(i))
			results[i] = granted
		}(i)
	}
	wg.Wait()

	grants := 0
	for _, g := range results {
		if g {
			grants++
		}
	}
	assert.Equal(t, 1, grants, "exactly one concurrent acquire on a fresh ino should be granted")
}

// TestTable_RenewalCASGrantsExactlyOnceAtExpiry exercises spec.md §8
// property #2: an acquire racing exactly at expiry succeeds exactly once,
// and every other concurrent loser observes the winner as leader.
func TestTable_RenewalCASGrantsExactlyOnceAtExpiry(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)

	granted, _, _ := table.Acquire(7, "incumbent:9000")
	require.True(t, granted)
	c.AdvanceTime(Period)

	const challengers = 8
	var wg sync.WaitGroup
	type outcome struct {
		granted bool
		addr    string
	}
	results := make([]outcome, challengers)

	for i := 0; i < challengers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			granted, _, addr := table.Acquire(7, addrFor(i))
			results[i] = outcome{granted: granted, addr: addr}
		}(i)
	}
	wg.Wait()

	var winner string
	grants := 0
	for _, r := range results {
		if r.granted {
			grants++
			winner = r.addr
		}
	}
	require.Equal(t, 1, grants)

	for _, r := range results {
		if !r.granted {
			assert.Equal(t, winner, r.addr)
		}
	}
}

func addrFor(i int) string {
	return "client-" + string(rune('a'+i)) + ":9000"
}

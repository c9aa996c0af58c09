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
	"testing"
	"time"

	"github.com/clusterfs/clusterfs/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport forwards directly into a Table, skipping the network, the
// way the teacher's fake-gcs-server stands in for a real bucket.
type fakeTransport struct {
	table *Table
}

func (f *fakeTransport) Acquire(req AcquireRequest) (AcquireResponse, error) {
	var svc CoordinatorService
	svc.Table = f.table
	var resp AcquireResponse
	err := svc.Acquire(&req, &resp)
	return resp, err
}

func TestClient_AcquireIsMineSkipsTransport(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)
	transport := &countingTransport{inner: &fakeTransport{table: table}}
	client := NewClient("client-a:9000", transport, c)

	result, err := client.Acquire(1)
	require.NoError(t, err)
	assert.True(t, result.Owned)
	assert.Equal(t, 1, transport.calls)

	result, err = client.Acquire(1)
	require.NoError(t, err)
	assert.True(t, result.Owned)
	assert.Equal(t, 1, transport.calls, "a cached mine lease should not round-trip again")
}

func TestClient_AcquireDeniedReturnsForwardAddr(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)
	_, _, _ = table.Acquire(1, "client-a:9000")

	client := NewClient("client-b:9000", &fakeTransport{table: table}, c)

	result, err := client.Acquire(1)
	require.NoError(t, err)
	assert.False(t, result.Owned)
	assert.Equal(t, "client-a:9000", result.ForwardAddr)
}

func TestClient_IsValidAndIsMine(t *testing.T) {
	c := &clock.SimulatedClock{}
	// The deadline crosses the transport as Unix nanoseconds, which cannot
	// represent the zero time.Time, so start the clock at a real instant.
	c.SetTime(time.Unix(1_700_000_000, 0))
	table := NewTable(c)
	client := NewClient("client-a:9000", &fakeTransport{table: table}, c)

	assert.False(t, client.IsValid(1))
	assert.False(t, client.IsMine(1))

	_, err := client.Acquire(1)
	require.NoError(t, err)
	assert.True(t, client.IsValid(1))
	assert.True(t, client.IsMine(1))

	c.AdvanceTime(Period)
	assert.False(t, client.IsValid(1))
	assert.False(t, client.IsMine(1))
}

func TestClient_LeaseNewlyCreatedAvoidsRoundTrip(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)
	transport := &countingTransport{inner: &fakeTransport{table: table}}
	client := NewClient("client-a:9000", transport, c)

	client.LeaseNewlyCreated(99)

	assert.True(t, client.IsMine(99))
	assert.Equal(t, 0, transport.calls)
}

func TestClient_InvalidateForcesReacquire(t *testing.T) {
	c := &clock.SimulatedClock{}
	table := NewTable(c)
	transport := &countingTransport{inner: &fakeTransport{table: table}}
	client := NewClient("client-a:9000", transport, c)

	_, err := client.Acquire(1)
	require.NoError(t, err)
	require.True(t, client.IsMine(1))

	client.Invalidate(1)
	assert.False(t, client.IsMine(1))

	_, err = client.Acquire(1)
	require.NoError(t, err)
	assert.Equal(t, 2, transport.calls)
}

func TestClient_TransportErrorIsFatal(t *testing.T) {
	c := &clock.SimulatedClock{}
	client := NewClient("client-a:9000", &erroringTransport{}, c)

	_, err := client.Acquire(1)
	assert.Error(t, err)
}

type countingTransport struct {
	inner Transport
	calls int
}

func (c *countingTransport) Acquire(req AcquireRequest) (AcquireResponse, error) {
	c.calls++
	return c.inner.Acquire(req)
}

type erroringTransport struct{}

func (erroringTransport) Acquire(req AcquireRequest) (AcquireResponse, error) {
	return AcquireResponse{}, assertErr
}

var assertErr = &transportErr{}

type transportErr struct{}

func (*transportErr) Error() string { return "dial tcp: connection refused" }

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

import (
	"context"
	"sync"
)

// MemStore is an in-memory BackingStore, used by unit tests that exercise
// OSIO's segmentation and locking logic without a real bucket, the way the
// teacher's tests lean on fake-gcs-server for the same purpose at the GCS
// client layer.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemStore returns an empty in-memory backing store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (m *MemStore) ReadObject(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound()
	}

	end := offset + length
	if end > int64(len(obj)) {
		end = int64(len(obj))
	}
	if offset >= end {
		return nil, nil
	}

	out := make([]byte, end-offset)
	copy(out, obj[offset:end])
	return out, nil
}

func (m *MemStore) WriteObject(ctx context.Context, name string, offset int64, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj := m.objects[name]
	end := offset + int64(len(data))
	if end > int64(len(obj)) {
		grown := make([]byte, end)
		copy(grown, obj)
		obj = grown
	}
	copy(obj[offset:end], data)
	m.objects[name] = obj
	return len(data), nil
}

func (m *MemStore) StatObject(ctx context.Context, name string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[name]
	if !ok {
		return false, 0, nil
	}
	return true, int64(len(obj)), nil
}

func (m *MemStore) RemoveObject(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

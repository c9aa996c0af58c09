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
// Package dirtable is the process-wide index over dentry tables and the
// path resolution engine built on top of it. See spec.md §3 "Directory
// table" and §4.6.
package dirtable

import (
	"sync"

	"github.com/clusterfs/clusterfs/dentrytable"
)

// Table is the process-wide mapping ino -> dentry table. Every directory
// traversed since mount either has an entry here or is resolved on
// demand by a Walker.
type Table struct {
	mu     sync.RWMutex
	tables map[uint64]*dentrytable.Table
}

// New returns an empty directory table.
func New() *Table {
	return &Table{tables: make(map[uint64]*dentrytable.Table)}
}

// Get returns the dentry table for ino, if one has been created.
func (t *Table) Get(ino uint64) (*dentrytable.Table, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dt, ok := t.tables[ino]
	return dt, ok
}

// Create installs dt as the dentry table for ino. If an entry already
// exists (a concurrent walker won the race to populate this ino first),
// the existing one wins and is returned instead.
func (t *Table) Create(ino uint64, dt *dentrytable.Table) *dentrytable.Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.tables[ino]; ok {
		return existing
	}
	t.tables[ino] = dt
	return dt
}

// Delete removes ino's dentry table, on directory removal or cache
// eviction.
func (t *Table) Delete(ino uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tables, ino)
}

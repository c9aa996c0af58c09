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
// Package dispatch is the filesystem-op dispatcher of spec.md §4.7: for
// each POSIX op it resolves the relevant inode(s) via path traversal,
// inspects location tags, and dispatches to the local or remote
// implementation, translating domain errors to POSIX errno at the
// boundary.
package dispatch

import (
	"sync"

	"github.com/clusterfs/clusterfs/clientreg"
	"github.com/clusterfs/clusterfs/dirtable"
	"github.com/clusterfs/clusterfs/internal/clock"
	"github.com/clusterfs/clusterfs/internal/logger"
	"github.com/clusterfs/clusterfs/lease"
	"github.com/clusterfs/clusterfs/osio"
	"github.com/clusterfs/clusterfs/remoteops"
)

// Env is the explicit dependency bag threaded through the dispatcher's
// constructor, replacing the source's global singletons (meta pool, data
// pool, indexing table, lease client — see spec.md §9 "Global
// singletons").
type Env struct {
	Store      *osio.Store
	DirTables  *dirtable.Table
	Walker     *dirtable.Walker
	Leases     *lease.Client
	Remote     *remoteops.Client
	InoAlloc   *clientreg.InoAllocator
	Clock      clock.Clock
	Log        *logger.Logger
	SelfAddr   string
}

// Dispatcher is the POSIX-op entry point, named after spec.md §6's
// kernel-facing op set. namespaceMu is spec.md §5's process-wide atomic
// mutex: held for the duration of every namespace-mutating op
// (mkdir/rmdir/create/unlink/rename/symlink/write), never held across an
// RPC or OSIO call by read-only ops.
type Dispatcher struct {
	env         *Env
	namespaceMu sync.Mutex
}

// New builds a Dispatcher over env.
func New(env *Env) *Dispatcher {
	return &Dispatcher{env: env}
}

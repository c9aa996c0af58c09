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

import "sync"

// lockManager is the advisory lock registry bracketing every segment
// access, per spec §4.1 "Locking": shared for reads, exclusive for
// writes, keyed by backing object name so any holder on that object
// collides with any other. It never blocks — a contended lock fails
// immediately with ErrLockContended, matching the reference's
// lock_shared/lock_exclusive semantics, because the dispatcher's
// process-wide atomic mutex already serializes a single client's own
// namespace traffic.
type lockManager struct {
	mu    sync.Mutex
	state map[string]*objectLock
}

type objectLock struct {
	exclusive bool
	readers   int
}

func newLockManager() *lockManager {
	return &lockManager{state: make(map[string]*objectLock)}
}

func (lm *lockManager) tryLockShared(key string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l, ok := lm.state[key]
	if !ok {
		lm.state[key] = &objectLock{readers: 1}
		return nil
	}
	if l.exclusive {
		return &ErrLockContended{Key: key}
	}
	l.readers++
	return nil
}

func (lm *lockManager) tryLockExclusive(key string) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, ok := lm.state[key]; ok {
		return &ErrLockContended{Key: key}
	}
	lm.state[key] = &objectLock{exclusive: true}
	return nil
}

func (lm *lockManager) unlockShared(key string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l, ok := lm.state[key]
	if !ok {
		return
	}
	l.readers--
	if l.readers <= 0 && !l.exclusive {
		delete(lm.state, key)
	}
}

func (lm *lockManager) unlockExclusive(key string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	delete(lm.state, key)
}

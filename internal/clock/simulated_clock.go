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
package clock

import (
	"sync"
	"time"
)

// SimulatedClock is a Clock whose notion of "now" is controlled entirely by
// the test driving it, used to exercise lease expiry and CAS races without
// depending on real elapsed time.
type SimulatedClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []simulatedWaiter
}

type simulatedWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// SetTime pins the clock to t, firing any waiters whose deadline has passed.
func (sc *SimulatedClock) SetTime(t time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.now = t
	sc.fireLocked()
}

// AdvanceTime moves the clock forward by d.
func (sc *SimulatedClock) AdvanceTime(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.now = sc.now.Add(d)
	sc.fireLocked()
}

func (sc *SimulatedClock) fireLocked() {
	remaining := sc.waiters[:0]
	for _, w := range sc.waiters {
		if !sc.now.Before(w.deadline) {
			w.ch <- sc.now
		} else {
			remaining = append(remaining, w)
		}
	}
	sc.waiters = remaining
}

func (sc *SimulatedClock) Now() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.now
}

func (sc *SimulatedClock) After(d time.Duration) <-chan time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ch := make(chan time.Time, 1)
	deadline := sc.now.Add(d)
	if !sc.now.Before(deadline) {
		ch <- sc.now
		return ch
	}
	sc.waiters = append(sc.waiters, simulatedWaiter{deadline: deadline, ch: ch})
	return ch
}

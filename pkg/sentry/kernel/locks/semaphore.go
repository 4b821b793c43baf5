// Copyright 2025 The gVisor Authors.
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

package locks

import (
	"gvisor.dev/edukernel/pkg/sync"
)

// Semaphore is a counting semaphore.
//
// The count may go negative; its magnitude is then the number of units owed
// to blocked waiters. Total is the count at creation and is not enforced as a
// ceiling.
type Semaphore struct {
	// total is immutable.
	total int64

	// mu protects the fields below.
	mu sync.Mutex

	count   int64
	waiters waiterList
}

// NewSemaphore returns a semaphore with count units available.
func NewSemaphore(count int64) *Semaphore {
	return &Semaphore{total: count, count: count}
}

// Total returns the count s was created with.
func (s *Semaphore) Total() int64 {
	return s.total
}

// Count returns the current count.
func (s *Semaphore) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Down takes one unit from s on behalf of w, suspending w until one is
// available. It returns false, without holding a unit, if w was killed while
// waiting.
func (s *Semaphore) Down(w Waiter) bool {
	s.mu.Lock()
	s.count--
	if s.count >= 0 {
		s.mu.Unlock()
		return true
	}
	e := &waiter{w: w}
	s.waiters.PushBack(e)
	s.mu.Unlock()

	for w.Block() {
		s.mu.Lock()
		granted := e.granted
		s.mu.Unlock()
		if granted {
			return true
		}
	}
	s.abortWait(e)
	return false
}

// abortWait withdraws a killed waiter, returning its reservation or, if it
// was already handed a unit, the unit itself.
func (s *Semaphore) abortWait(e *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case e.granted:
		s.upLocked()
	case s.waiters.Remove(e):
		s.count++
	}
	// Otherwise a concurrent Up found e dead and already returned its
	// reservation.
}

// Up returns one unit to s, waking a waiter if one is owed.
func (s *Semaphore) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upLocked()
}

// Preconditions: s.mu must be locked.
func (s *Semaphore) upLocked() {
	s.count++
	for s.count <= 0 {
		w := s.waiters.PopFront()
		if w == nil {
			return
		}
		if w.w.Wake() {
			w.granted = true
			return
		}
		// w is dead; cancel its reservation.
		s.count++
	}
}

// Waiters returns the number of queued waiters.
func (s *Semaphore) Waiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

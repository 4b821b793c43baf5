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

// Condvar is a condition variable.
//
// Wait releases the caller's mutex but does not reacquire it on wakeup.
type Condvar struct {
	// mu protects waiters.
	mu      sync.Mutex
	waiters waiterList
}

// NewCondvar returns a Condvar with no waiters.
func NewCondvar() *Condvar {
	return &Condvar{}
}

// Wait queues w, releases m and suspends w until Signal. It returns false if
// w was killed while waiting. m is not held on return.
func (c *Condvar) Wait(w Waiter, m *Mutex) bool {
	e := &waiter{w: w}
	c.mu.Lock()
	c.waiters.PushBack(e)
	c.mu.Unlock()
	m.Unlock()

	for w.Block() {
		c.mu.Lock()
		granted := e.granted
		c.mu.Unlock()
		if granted {
			return true
		}
	}
	c.mu.Lock()
	c.waiters.Remove(e)
	c.mu.Unlock()
	return false
}

// Signal wakes one waiter, if any. It returns true if a waiter was woken.
func (c *Condvar) Signal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wakeOne(&c.waiters) != nil
}

// Waiters returns the number of queued waiters.
func (c *Condvar) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiters.Len()
}

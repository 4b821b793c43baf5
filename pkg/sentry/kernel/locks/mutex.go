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
	"fmt"

	"gvisor.dev/edukernel/pkg/sync"
)

// MutexKind selects how a Mutex waits.
type MutexKind int

const (
	// SpinMutex polls the lock, yielding to the scheduler between polls.
	SpinMutex MutexKind = iota

	// BlockingMutex queues waiters and hands the lock to one of them on
	// unlock.
	BlockingMutex
)

// String implements fmt.Stringer.String.
func (k MutexKind) String() string {
	switch k {
	case SpinMutex:
		return "spin"
	case BlockingMutex:
		return "blocking"
	default:
		return fmt.Sprintf("MutexKind(%d)", int(k))
	}
}

// Mutex is a binary lock shared by the tasks of a process.
//
// Unlocking a Mutex that is not locked is a caller error and is not
// detected.
type Mutex struct {
	kind MutexKind

	// mu protects the fields below.
	mu sync.Mutex

	locked bool

	// waiters is only used by BlockingMutex.
	waiters waiterList
}

// NewMutex returns an unlocked Mutex.
func NewMutex(kind MutexKind) *Mutex {
	return &Mutex{kind: kind}
}

// Kind returns the kind of m.
func (m *Mutex) Kind() MutexKind {
	return m.kind
}

// Lock acquires m on behalf of w, suspending w until it is available. It
// returns false, without holding m, if w was killed while waiting.
func (m *Mutex) Lock(w Waiter) bool {
	if m.kind == SpinMutex {
		return m.spinLock(w)
	}
	return m.blockingLock(w)
}

func (m *Mutex) tryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

func (m *Mutex) spinLock(w Waiter) bool {
	for !m.tryLock() {
		if !w.Yield() {
			return false
		}
	}
	return true
}

func (m *Mutex) blockingLock(w Waiter) bool {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return true
	}
	e := &waiter{w: w}
	m.waiters.PushBack(e)
	m.mu.Unlock()

	for w.Block() {
		m.mu.Lock()
		granted := e.granted
		m.mu.Unlock()
		if granted {
			return true
		}
	}
	m.abortWait(e)
	return false
}

// abortWait withdraws a killed waiter. If the lock was already handed to it,
// the lock is passed on.
func (m *Mutex) abortWait(e *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.granted {
		m.unlockLocked()
		return
	}
	m.waiters.Remove(e)
}

// Unlock releases m. For a BlockingMutex the lock is handed directly to the
// first live waiter, if any.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlockLocked()
}

// Preconditions: m.mu must be locked.
func (m *Mutex) unlockLocked() {
	if m.kind == BlockingMutex && wakeOne(&m.waiters) != nil {
		// Ownership passes to the woken waiter; m stays locked.
		return
	}
	m.locked = false
}

// Locked returns true if m is held.
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Waiters returns the number of queued waiters.
func (m *Mutex) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}

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

package kernel

import (
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/kernel/deadlock"
	"gvisor.dev/edukernel/pkg/sentry/kernel/locks"
)

// grow returns v extended with zeroes to at least n entries.
func grow(v []int64, n int) []int64 {
	if len(v) >= n {
		return v
	}
	return append(v, make([]int64, n-len(v))...)
}

// vectorsLocked returns t's allocation and need vectors for class c.
//
// Preconditions: t.p.mu must be locked.
func (t *Task) vectorsLocked(c deadlock.Class) (alloc, need *[]int64) {
	if c == deadlock.Mutex {
		return &t.mutexAllocation, &t.mutexNeed
	}
	return &t.semAllocation, &t.semNeed
}

// adjustLocked adds the given deltas to t's allocation and need of resource
// id. Entries never go below zero.
//
// Preconditions: t.p.mu must be locked.
func (t *Task) adjustLocked(c deadlock.Class, id int, dAlloc, dNeed int64) {
	alloc, need := t.vectorsLocked(c)
	*alloc = grow(*alloc, id+1)
	*need = grow(*need, id+1)
	(*alloc)[id] = max((*alloc)[id]+dAlloc, 0)
	(*need)[id] = max((*need)[id]+dNeed, 0)
}

// totalsLocked returns the number of units of each resource of class c. A
// free slot has none.
//
// Preconditions: p.mu must be locked.
func (p *Process) totalsLocked(c deadlock.Class) []int64 {
	if c == deadlock.Mutex {
		totals := make([]int64, p.mutexes.Len())
		p.mutexes.ForEach(func(id int, _ *locks.Mutex) {
			totals[id] = 1
		})
		return totals
	}
	totals := make([]int64, p.semaphores.Len())
	p.semaphores.ForEach(func(id int, s *locks.Semaphore) {
		totals[id] = s.Total()
	})
	return totals
}

// requestSafeLocked reports whether t may wait for one more unit of resource
// id of class c without making the process's state unsafe. Only tasks that
// have not exited take part.
//
// Preconditions: p.mu must be locked.
func (p *Process) requestSafeLocked(c deadlock.Class, t *Task, id int) bool {
	var (
		alloc [][]int64
		need  [][]int64
		self  = -1
	)
	p.tasks.ForEach(func(_ int, o *Task) {
		if _, exited := o.Exited(); exited {
			return
		}
		if o == t {
			self = len(alloc)
		}
		a, n := o.vectorsLocked(c)
		alloc = append(alloc, *a)
		need = append(need, *n)
	})
	if self < 0 {
		return false
	}
	return deadlock.NewState(p.totalsLocked(c), alloc, need).Request(self, id)
}

// acquire runs the shared part of MutexLock and SemaphoreDown: the safety
// check, the need bookkeeping around the blocking call and the allocation
// once it succeeds.
//
// Preconditions: t.p.mu must be locked. acquire unlocks it.
func (t *Task) acquire(c deadlock.Class, id int, block func() bool) error {
	p := t.p
	if p.deadlockDetect && !p.requestSafeLocked(c, t, id) {
		p.mu.Unlock()
		t.Debugf("%v %d request would deadlock", c, id)
		return linuxerr.EDEADLK
	}
	t.adjustLocked(c, id, 0, 1)
	p.mu.Unlock()

	ok := block()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !ok {
		t.adjustLocked(c, id, 0, -1)
		return linuxerr.EINTR
	}
	t.adjustLocked(c, id, 1, -1)
	return nil
}

// EnableDeadlockDetect turns the deadlock check on or off for t's process.
func (t *Task) EnableDeadlockDetect(enabled bool) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.deadlockDetect = enabled
}

// MutexCreate creates a mutex and returns its id.
func (t *Task) MutexCreate(kind locks.MutexKind) int {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.mutexes.Add(locks.NewMutex(kind))
}

// MutexLock acquires mutex id. With deadlock detection enabled it fails with
// EDEADLK, without blocking, if waiting could deadlock the process.
func (t *Task) MutexLock(id int) error {
	t.p.mu.Lock()
	m, ok := t.p.mutexes.Get(id)
	if !ok {
		t.p.mu.Unlock()
		return linuxerr.EINVAL
	}
	// acquire unlocks t.p.mu.
	return t.acquire(deadlock.Mutex, id, func() bool { return m.Lock(t) })
}

// MutexUnlock releases mutex id.
func (t *Task) MutexUnlock(id int) error {
	t.p.mu.Lock()
	m, ok := t.p.mutexes.Get(id)
	if !ok {
		t.p.mu.Unlock()
		return linuxerr.EINVAL
	}
	t.adjustLocked(deadlock.Mutex, id, -1, 0)
	t.p.mu.Unlock()
	m.Unlock()
	return nil
}

// MutexDestroy frees mutex id. It fails with EBUSY while the mutex is held
// or any task holds or waits for it.
func (t *Task) MutexDestroy(id int) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.mutexes.Get(id)
	if !ok {
		return linuxerr.EINVAL
	}
	if m.Locked() || m.Waiters() != 0 || p.referencedLocked(deadlock.Mutex, id) {
		return linuxerr.EBUSY
	}
	p.clearColumnLocked(deadlock.Mutex, id)
	p.mutexes.Remove(id)
	return nil
}

// SemaphoreCreate creates a semaphore with count units and returns its id.
func (t *Task) SemaphoreCreate(count int64) (int, error) {
	if count < 0 {
		return 0, linuxerr.EINVAL
	}
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.semaphores.Add(locks.NewSemaphore(count)), nil
}

// SemaphoreUp releases one unit of semaphore id.
func (t *Task) SemaphoreUp(id int) error {
	t.p.mu.Lock()
	s, ok := t.p.semaphores.Get(id)
	if !ok {
		t.p.mu.Unlock()
		return linuxerr.EINVAL
	}
	t.adjustLocked(deadlock.Semaphore, id, -1, 0)
	t.p.mu.Unlock()
	s.Up()
	return nil
}

// SemaphoreDown acquires one unit of semaphore id. With deadlock detection
// enabled it fails with EDEADLK, without blocking, if waiting could deadlock
// the process.
func (t *Task) SemaphoreDown(id int) error {
	t.p.mu.Lock()
	s, ok := t.p.semaphores.Get(id)
	if !ok {
		t.p.mu.Unlock()
		return linuxerr.EINVAL
	}
	// acquire unlocks t.p.mu.
	return t.acquire(deadlock.Semaphore, id, func() bool { return s.Down(t) })
}

// SemaphoreDestroy frees semaphore id. It fails with EBUSY while any task is
// blocked on it or waits for units of it. Units pass freely between tasks,
// so allocations do not keep a semaphore alive.
func (t *Task) SemaphoreDestroy(id int) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.semaphores.Get(id)
	if !ok {
		return linuxerr.EINVAL
	}
	if s.Waiters() != 0 || p.waitingLocked(deadlock.Semaphore, id) {
		return linuxerr.EBUSY
	}
	p.clearColumnLocked(deadlock.Semaphore, id)
	p.semaphores.Remove(id)
	return nil
}

// CondvarCreate creates a condition variable and returns its id.
func (t *Task) CondvarCreate() int {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.condvars.Add(locks.NewCondvar())
}

// CondvarSignal wakes one waiter of condition variable id, if any.
func (t *Task) CondvarSignal(id int) error {
	t.p.mu.Lock()
	c, ok := t.p.condvars.Get(id)
	t.p.mu.Unlock()
	if !ok {
		return linuxerr.EINVAL
	}
	c.Signal()
	return nil
}

// CondvarWait releases mutex mid and blocks until condition variable id is
// signaled. The mutex is not reacquired.
func (t *Task) CondvarWait(id, mid int) error {
	p := t.p
	p.mu.Lock()
	c, ok := p.condvars.Get(id)
	if !ok {
		p.mu.Unlock()
		return linuxerr.EINVAL
	}
	m, ok := p.mutexes.Get(mid)
	if !ok {
		p.mu.Unlock()
		return linuxerr.EINVAL
	}
	t.adjustLocked(deadlock.Mutex, mid, -1, 0)
	p.mu.Unlock()

	if !c.Wait(t, m) {
		return linuxerr.EINTR
	}
	return nil
}

// CondvarDestroy frees condition variable id. It fails with EBUSY while any
// task waits on it.
func (t *Task) CondvarDestroy(id int) error {
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.condvars.Get(id)
	if !ok {
		return linuxerr.EINVAL
	}
	if c.Waiters() != 0 {
		return linuxerr.EBUSY
	}
	p.condvars.Remove(id)
	return nil
}

// referencedLocked returns true if any task holds or waits for resource id.
//
// Preconditions: p.mu must be locked.
func (p *Process) referencedLocked(c deadlock.Class, id int) bool {
	busy := false
	p.tasks.ForEach(func(_ int, t *Task) {
		alloc, need := t.vectorsLocked(c)
		if (id < len(*alloc) && (*alloc)[id] != 0) || (id < len(*need) && (*need)[id] != 0) {
			busy = true
		}
	})
	return busy
}

// waitingLocked returns true if any task waits for resource id.
//
// Preconditions: p.mu must be locked.
func (p *Process) waitingLocked(c deadlock.Class, id int) bool {
	busy := false
	p.tasks.ForEach(func(_ int, t *Task) {
		if _, need := t.vectorsLocked(c); id < len(*need) && (*need)[id] != 0 {
			busy = true
		}
	})
	return busy
}

// clearColumnLocked zeroes every task's entries for resource id.
//
// Preconditions: p.mu must be locked.
func (p *Process) clearColumnLocked(c deadlock.Class, id int) {
	p.tasks.ForEach(func(_ int, t *Task) {
		alloc, need := t.vectorsLocked(c)
		if id < len(*alloc) {
			(*alloc)[id] = 0
		}
		if id < len(*need) {
			(*need)[id] = 0
		}
	})
}

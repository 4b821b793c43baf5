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
	"fmt"

	"github.com/google/btree"
	"gvisor.dev/edukernel/pkg/sync"
)

// Stride scheduling parameters. A task with priority p advances its pass by
// BigStride/p each time it is dispatched; the ready task with the lowest pass
// runs next.
const (
	BigStride       = 1 << 20
	DefaultPriority = 16
	MinPriority     = 2
)

// TaskState is the scheduling state of a task.
type TaskState int

// Task states.
const (
	// TaskReady tasks are waiting for a CPU.
	TaskReady TaskState = iota

	// TaskRunning tasks hold a CPU.
	TaskRunning

	// TaskBlocked tasks are waiting to be woken.
	TaskBlocked

	// TaskZombie tasks have exited.
	TaskZombie
)

// String implements fmt.Stringer.String.
func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskBlocked:
		return "Blocked"
	case TaskZombie:
		return "Zombie"
	default:
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
}

// taskSchedState is the part of a Task owned by the Scheduler. It is
// protected by Scheduler.mu.
type taskSchedState struct {
	state  TaskState
	seq    uint64
	pass   uint64
	stride uint64
	prio   int64

	// wakePending records a Wake received while the task was not blocked,
	// so that its next Block returns immediately.
	wakePending bool

	// killed is set by Kill. It is never cleared.
	killed bool
}

// Scheduler multiplexes task goroutines onto a fixed number of CPUs. A task
// goroutine runs only while it holds a CPU; it gives the CPU up in Yield,
// Block and Exit.
type Scheduler struct {
	// mu protects the fields below and every task's taskSchedState.
	mu sync.Mutex

	// ready holds TaskReady tasks ordered by (pass, seq).
	ready *btree.BTreeG[*Task]

	// seq orders tasks with equal pass by arrival.
	seq uint64

	// lastPass is the pass of the most recently dispatched task. New tasks
	// start from it so that they do not starve existing ones.
	lastPass uint64

	// cpus is the number of CPUs. idle is the number not held by a task.
	cpus int
	idle int

	// dispatches counts grants of a CPU to a task.
	dispatches uint64
}

func taskLess(a, b *Task) bool {
	if a.sched.pass != b.sched.pass {
		return a.sched.pass < b.sched.pass
	}
	return a.sched.seq < b.sched.seq
}

// NewScheduler returns a scheduler with the given number of CPUs, at least
// one.
func NewScheduler(cpus int) *Scheduler {
	if cpus < 1 {
		cpus = 1
	}
	return &Scheduler{
		ready: btree.NewG[*Task](8, taskLess),
		cpus:  cpus,
		idle:  cpus,
	}
}

// Preconditions: s.mu must be locked. t is not in s.ready.
func (s *Scheduler) enqueueLocked(t *Task) {
	t.sched.state = TaskReady
	t.sched.seq = s.seq
	s.seq++
	s.ready.ReplaceOrInsert(t)
}

// dispatchLocked hands idle CPUs to ready tasks.
//
// Preconditions: s.mu must be locked.
func (s *Scheduler) dispatchLocked() {
	for s.idle > 0 {
		t, ok := s.ready.DeleteMin()
		if !ok {
			return
		}
		s.idle--
		s.dispatches++
		s.lastPass = t.sched.pass
		t.sched.state = TaskRunning
		t.sched.pass += t.sched.stride
		// runCh has capacity 1 and the task is not holding a token, so
		// this never blocks.
		t.runCh <- struct{}{}
	}
}

// init initializes t's scheduling state with priority prio.
func (s *Scheduler) init(t *Task, prio int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.sched.prio = prio
	t.sched.stride = BigStride / uint64(prio)
	t.sched.pass = s.lastPass
	t.sched.state = TaskBlocked
}

// Start makes a new task runnable. The task goroutine must wait on runCh
// before running.
func (s *Scheduler) Start(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(t)
	s.dispatchLocked()
}

// Yield puts t, which must hold a CPU, at the back of the ready queue and
// waits until it is dispatched again. It returns false if t has been killed.
func (s *Scheduler) Yield(t *Task) bool {
	s.mu.Lock()
	s.idle++
	s.enqueueLocked(t)
	s.dispatchLocked()
	s.mu.Unlock()

	<-t.runCh
	return !s.Killed(t)
}

// Block suspends t, which must hold a CPU, until Wake or Kill. A Wake that
// arrived since the last Block is consumed without suspending. It returns
// false if t has been killed.
func (s *Scheduler) Block(t *Task) bool {
	s.mu.Lock()
	if t.sched.killed {
		s.mu.Unlock()
		return false
	}
	if t.sched.wakePending {
		t.sched.wakePending = false
		s.mu.Unlock()
		return true
	}
	t.sched.state = TaskBlocked
	s.idle++
	s.dispatchLocked()
	s.mu.Unlock()

	<-t.runCh

	s.mu.Lock()
	defer s.mu.Unlock()
	t.sched.wakePending = false
	return !t.sched.killed
}

// Wake makes t runnable if it is blocked, or arranges for its next Block to
// return immediately otherwise. It returns false if t is dead or dying.
func (s *Scheduler) Wake(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.sched.killed || t.sched.state == TaskZombie {
		return false
	}
	if t.sched.state == TaskBlocked {
		s.enqueueLocked(t)
		s.dispatchLocked()
	} else {
		t.sched.wakePending = true
	}
	return true
}

// Kill marks t killed. A blocked t is made runnable so that it can observe
// the kill; a running t is interrupted.
func (s *Scheduler) Kill(t *Task) {
	s.mu.Lock()
	if t.sched.killed || t.sched.state == TaskZombie {
		s.mu.Unlock()
		return
	}
	t.sched.killed = true
	state := t.sched.state
	if state == TaskBlocked {
		s.enqueueLocked(t)
		s.dispatchLocked()
	}
	s.mu.Unlock()

	if state == TaskRunning && t.pctx != nil {
		t.pctx.Interrupt()
	}
}

// Killed returns true if t has been killed.
func (s *Scheduler) Killed(t *Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.sched.killed
}

// Exit retires t, which must hold a CPU, and releases its CPU.
func (s *Scheduler) Exit(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.sched.state = TaskZombie
	s.idle++
	s.dispatchLocked()
}

// SetPriority sets t's priority. It returns false, leaving the priority
// unchanged, if prio is below MinPriority.
func (s *Scheduler) SetPriority(t *Task, prio int64) bool {
	if prio < MinPriority {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.sched.prio = prio
	t.sched.stride = BigStride / uint64(prio)
	return true
}

// Priority returns t's priority.
func (s *Scheduler) Priority(t *Task) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.sched.prio
}

// State returns t's scheduling state.
func (s *Scheduler) State(t *Task) TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.sched.state
}

// SchedulerStats is a snapshot of scheduler counters.
type SchedulerStats struct {
	CPUs       int
	Idle       int
	Ready      int
	Dispatches uint64
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		CPUs:       s.cpus,
		Idle:       s.idle,
		Ready:      s.ready.Len(),
		Dispatches: s.dispatches,
	}
}

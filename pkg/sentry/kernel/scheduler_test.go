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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newSchedTask(s *Scheduler, prio int64) *Task {
	t := &Task{runCh: make(chan struct{}, 1)}
	s.init(t, prio)
	return t
}

// granted consumes a pending CPU grant for t, if any.
func granted(t *Task) bool {
	select {
	case <-t.runCh:
		return true
	default:
		return false
	}
}

func waitState(t *testing.T, s *Scheduler, task *Task, want TaskState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.State(task) != want {
		if time.Now().After(deadline) {
			t.Fatalf("task state got: %v, expected: %v", s.State(task), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerDispatch(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	b := newSchedTask(s, DefaultPriority)

	s.Start(a)
	if !granted(a) {
		t.Fatalf("first task was not dispatched")
	}
	s.Start(b)
	if granted(b) {
		t.Fatalf("second task dispatched with no idle CPU")
	}
	if got := s.State(b); got != TaskReady {
		t.Errorf("State got: %v, expected: %v", got, TaskReady)
	}

	s.Exit(a)
	if !granted(b) {
		t.Fatalf("second task was not dispatched after exit")
	}
	want := SchedulerStats{CPUs: 1, Idle: 0, Ready: 0, Dispatches: 2}
	if diff := cmp.Diff(want, s.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerMultipleCPUs(t *testing.T) {
	s := NewScheduler(2)
	tasks := []*Task{newSchedTask(s, DefaultPriority), newSchedTask(s, DefaultPriority), newSchedTask(s, DefaultPriority)}
	for _, task := range tasks {
		s.Start(task)
	}
	got := []bool{granted(tasks[0]), granted(tasks[1]), granted(tasks[2])}
	if diff := cmp.Diff([]bool{true, true, false}, got); diff != "" {
		t.Errorf("grants mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerWakeBeforeBlock(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	s.Start(a)
	granted(a)

	if !s.Wake(a) {
		t.Fatalf("Wake of running task failed")
	}
	// The pending wakeup is consumed without giving up the CPU.
	if !s.Block(a) {
		t.Errorf("Block got: false, expected: true")
	}
	if got := s.State(a); got != TaskRunning {
		t.Errorf("State got: %v, expected: %v", got, TaskRunning)
	}
}

func TestSchedulerBlockWake(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	s.Start(a)
	granted(a)

	res := make(chan bool, 1)
	go func() { res <- s.Block(a) }()
	waitState(t, s, a, TaskBlocked)

	if !s.Wake(a) {
		t.Fatalf("Wake failed")
	}
	if got := <-res; !got {
		t.Errorf("Block got: false, expected: true")
	}
}

func TestSchedulerKillBlocked(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	b := newSchedTask(s, DefaultPriority)
	s.Start(a)
	granted(a)
	s.Start(b)

	res := make(chan bool, 1)
	go func() { res <- s.Block(a) }()
	waitState(t, s, a, TaskBlocked)
	if !granted(b) {
		t.Fatalf("blocking did not hand the CPU to the ready task")
	}

	s.Kill(a)
	if got := s.State(a); got != TaskReady {
		t.Errorf("State after Kill got: %v, expected: %v", got, TaskReady)
	}
	s.Exit(b)
	if got := <-res; got {
		t.Errorf("Block of killed task got: true, expected: false")
	}
	if !s.Killed(a) {
		t.Errorf("Killed got: false, expected: true")
	}
	if s.Wake(a) {
		t.Errorf("Wake of killed task got: true, expected: false")
	}
}

func TestSchedulerWakeZombie(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	s.Start(a)
	granted(a)
	s.Exit(a)
	if s.Wake(a) {
		t.Errorf("Wake of exited task got: true, expected: false")
	}
}

func TestSchedulerStride(t *testing.T) {
	s := NewScheduler(1)
	hi := newSchedTask(s, 8)
	lo := newSchedTask(s, MinPriority)
	s.Start(hi)
	s.Start(lo)

	runs := map[*Task]int{}
	running := hi
	granted(hi)
	for i := 0; i < 100; i++ {
		// Equivalent to Yield without waiting for the grant.
		s.mu.Lock()
		s.idle++
		s.enqueueLocked(running)
		s.dispatchLocked()
		s.mu.Unlock()

		switch {
		case granted(hi):
			running = hi
		case granted(lo):
			running = lo
		default:
			t.Fatalf("no task dispatched")
		}
		runs[running]++
	}
	// Priorities 8 and 2 share the CPU 4:1.
	if runs[hi] < 78 || runs[hi] > 82 {
		t.Errorf("high priority runs got: %d, expected: 80 +/- 2 (low: %d)", runs[hi], runs[lo])
	}
}

func TestSchedulerSetPriority(t *testing.T) {
	s := NewScheduler(1)
	a := newSchedTask(s, DefaultPriority)
	if s.SetPriority(a, MinPriority-1) {
		t.Errorf("SetPriority(%d) got: true, expected: false", MinPriority-1)
	}
	if got := s.Priority(a); got != DefaultPriority {
		t.Errorf("Priority got: %d, expected: %d", got, DefaultPriority)
	}
	if !s.SetPriority(a, 4) {
		t.Errorf("SetPriority(4) got: false, expected: true")
	}
	if got := a.sched.stride; got != BigStride/4 {
		t.Errorf("stride got: %d, expected: %d", got, BigStride/4)
	}
}

func TestTaskStateString(t *testing.T) {
	for s, want := range map[TaskState]string{
		TaskReady:    "Ready",
		TaskRunning:  "Running",
		TaskBlocked:  "Blocked",
		TaskZombie:   "Zombie",
		TaskState(9): "TaskState(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("String got: %q, expected: %q", got, want)
		}
	}
}

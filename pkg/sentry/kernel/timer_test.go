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

	"gvisor.dev/edukernel/pkg/sync"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTimerQueueExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewScheduler(2)
	q := newTimerQueue(clock, s)

	// Tasks that have never started are blocked, so Wake dispatches them.
	early := newSchedTask(s, DefaultPriority)
	late := newSchedTask(s, DefaultPriority)
	q.add(late, clock.Now().Add(20*time.Millisecond))
	q.add(early, clock.Now().Add(10*time.Millisecond))

	q.expire()
	if granted(early) || granted(late) {
		t.Fatalf("task woken before its deadline")
	}

	clock.Advance(10 * time.Millisecond)
	q.expire()
	if !granted(early) {
		t.Errorf("task not woken at its deadline")
	}
	if granted(late) {
		t.Errorf("later task woken early")
	}
	if got := q.pending(); got != 1 {
		t.Errorf("pending got: %d, expected: 1", got)
	}

	clock.Advance(time.Hour)
	q.expire()
	if !granted(late) {
		t.Errorf("task not woken after its deadline")
	}
	if got := q.pending(); got != 0 {
		t.Errorf("pending got: %d, expected: 0", got)
	}
}

func TestTimerQueueRemove(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewScheduler(1)
	q := newTimerQueue(clock, s)
	task := newSchedTask(s, DefaultPriority)
	tm := q.add(task, clock.Now())
	q.remove(tm)
	q.expire()
	if granted(task) {
		t.Errorf("removed timer woke its task")
	}
}

func TestTimerQueueLoop(t *testing.T) {
	s := NewScheduler(1)
	q := newTimerQueue(RealClock{}, s)
	task := newSchedTask(s, DefaultPriority)
	q.add(task, time.Now().Add(5*time.Millisecond))
	q.start(time.Millisecond)
	defer q.stopLoop()

	select {
	case <-task.runCh:
	case <-time.After(5 * time.Second):
		t.Fatalf("tick loop did not wake the task")
	}
}

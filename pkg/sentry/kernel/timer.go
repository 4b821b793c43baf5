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
	"time"

	"github.com/google/btree"
	"gvisor.dev/edukernel/pkg/sync"
)

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// RealClock is a Clock backed by the host's wall clock.
type RealClock struct{}

// Now implements Clock.Now.
func (RealClock) Now() time.Time {
	return time.Now()
}

// DefaultTick is the default period of the timer loop.
const DefaultTick = time.Millisecond

type timer struct {
	deadline time.Time
	seq      uint64
	t        *Task
}

func timerLess(a, b *timer) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.seq < b.seq
}

// timerQueue wakes sleeping tasks once their deadline passes. Expiry is
// checked once per tick, so a sleep lasts at least its duration and at most
// one tick longer plus scheduling delay.
type timerQueue struct {
	clock Clock
	sched *Scheduler

	mu     sync.Mutex
	timers *btree.BTreeG[*timer]
	seq    uint64

	stop chan struct{}
	done chan struct{}
}

func newTimerQueue(clock Clock, sched *Scheduler) *timerQueue {
	return &timerQueue{
		clock:  clock,
		sched:  sched,
		timers: btree.NewG[*timer](8, timerLess),
	}
}

// start runs the tick loop in a new goroutine.
func (q *timerQueue) start(tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	go func() { // S/R-SAFE: stopped by stopLoop.
		defer close(q.done)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.expire()
			case <-q.stop:
				return
			}
		}
	}()
}

// stopLoop stops the tick loop and waits for it to exit.
func (q *timerQueue) stopLoop() {
	if q.stop == nil {
		return
	}
	close(q.stop)
	<-q.done
	q.stop = nil
}

func (q *timerQueue) add(t *Task, deadline time.Time) *timer {
	q.mu.Lock()
	defer q.mu.Unlock()
	tm := &timer{deadline: deadline, seq: q.seq, t: t}
	q.seq++
	q.timers.ReplaceOrInsert(tm)
	return tm
}

func (q *timerQueue) remove(tm *timer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timers.Delete(tm)
}

func (q *timerQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timers.Len()
}

// expire wakes every task whose deadline has passed.
func (q *timerQueue) expire() {
	now := q.clock.Now()
	var expired []*Task
	q.mu.Lock()
	for {
		tm, ok := q.timers.Min()
		if !ok || tm.deadline.After(now) {
			break
		}
		q.timers.DeleteMin()
		expired = append(expired, tm.t)
	}
	q.mu.Unlock()

	for _, t := range expired {
		q.sched.Wake(t)
	}
}

// Sleep blocks t until d has elapsed on the kernel clock. It returns false if
// t was killed first.
func (t *Task) Sleep(d time.Duration) bool {
	q := t.k.timers
	deadline := q.clock.Now().Add(d)
	tm := q.add(t, deadline)
	for {
		if !t.Block() {
			q.remove(tm)
			return false
		}
		if !q.clock.Now().Before(deadline) {
			q.remove(tm)
			return true
		}
	}
}

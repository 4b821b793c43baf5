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
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// testWaiter is a Waiter backed by channels.
type testWaiter struct {
	wake   chan struct{}
	killed chan struct{}
	dead   atomic.Bool
}

func newTestWaiter() *testWaiter {
	return &testWaiter{
		wake:   make(chan struct{}, 1),
		killed: make(chan struct{}),
	}
}

func (w *testWaiter) Yield() bool {
	runtime.Gosched()
	return !w.dead.Load()
}

func (w *testWaiter) Block() bool {
	select {
	case <-w.wake:
		return true
	case <-w.killed:
		return false
	}
}

func (w *testWaiter) Wake() bool {
	if w.dead.Load() {
		return false
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *testWaiter) kill() {
	w.dead.Store(true)
	close(w.killed)
}

// waitFor polls cond until it is true.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// async runs fn in a goroutine and returns a channel carrying its result.
func async(fn func() bool) <-chan bool {
	ch := make(chan bool, 1)
	go func() { ch <- fn() }()
	return ch
}

func TestBlockingMutexHandoff(t *testing.T) {
	m := NewMutex(BlockingMutex)
	a, b, c := newTestWaiter(), newTestWaiter(), newTestWaiter()
	if !m.Lock(a) {
		t.Fatalf("uncontended Lock failed")
	}

	bDone := async(func() bool { return m.Lock(b) })
	waitFor(t, "b to queue", func() bool { return m.Waiters() == 1 })
	cDone := async(func() bool { return m.Lock(c) })
	waitFor(t, "c to queue", func() bool { return m.Waiters() == 2 })

	m.Unlock()
	if !<-bDone {
		t.Fatalf("b's Lock failed")
	}
	if !m.Locked() {
		t.Errorf("mutex unlocked after handoff")
	}
	select {
	case <-cDone:
		t.Fatalf("c acquired the mutex while b holds it")
	default:
	}

	m.Unlock()
	if !<-cDone {
		t.Fatalf("c's Lock failed")
	}
	m.Unlock()
	if m.Locked() {
		t.Errorf("mutex locked after final Unlock")
	}
	if !m.Lock(a) {
		t.Errorf("Lock after release failed")
	}
}

func TestBlockingMutexKilledWaiter(t *testing.T) {
	m := NewMutex(BlockingMutex)
	a, b := newTestWaiter(), newTestWaiter()
	m.Lock(a)

	bDone := async(func() bool { return m.Lock(b) })
	waitFor(t, "b to queue", func() bool { return m.Waiters() == 1 })
	b.kill()
	if <-bDone {
		t.Fatalf("killed waiter acquired the mutex")
	}
	if got := m.Waiters(); got != 0 {
		t.Errorf("Waiters got: %d, expected: 0", got)
	}
	m.Unlock()
	if m.Locked() {
		t.Errorf("mutex locked after Unlock with no live waiters")
	}
}

func TestBlockingMutexSkipsDeadWaiter(t *testing.T) {
	m := NewMutex(BlockingMutex)
	m.Lock(newTestWaiter())
	dead := newTestWaiter()
	dead.kill()
	m.waiters.PushBack(&waiter{w: dead})

	m.Unlock()
	if m.Locked() {
		t.Errorf("mutex handed to a dead waiter")
	}
	if got := m.Waiters(); got != 0 {
		t.Errorf("Waiters got: %d, expected: 0", got)
	}
}

func TestSpinMutex(t *testing.T) {
	m := NewMutex(SpinMutex)
	a, b := newTestWaiter(), newTestWaiter()
	m.Lock(a)

	bDone := async(func() bool { return m.Lock(b) })
	select {
	case <-bDone:
		t.Fatalf("b acquired a held spin mutex")
	case <-time.After(10 * time.Millisecond):
	}
	m.Unlock()
	if !<-bDone {
		t.Fatalf("b's Lock failed")
	}
	if !m.Locked() {
		t.Errorf("spin mutex not held by b")
	}

	c := newTestWaiter()
	c.kill()
	if m.Lock(c) {
		t.Errorf("killed spinner acquired the mutex")
	}
}

func TestSemaphore(t *testing.T) {
	s := NewSemaphore(1)
	a, b := newTestWaiter(), newTestWaiter()
	if !s.Down(a) {
		t.Fatalf("Down failed")
	}
	bDone := async(func() bool { return s.Down(b) })
	waitFor(t, "b to queue", func() bool { return s.Waiters() == 1 })
	if got := s.Count(); got != -1 {
		t.Errorf("Count got: %d, expected: -1", got)
	}

	s.Up()
	if !<-bDone {
		t.Fatalf("b's Down failed")
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count got: %d, expected: 0", got)
	}
	s.Up()
	s.Up()
	if got, want := s.Count(), int64(2); got != want {
		t.Errorf("Count got: %d, expected: %d", got, want)
	}
	if got := s.Total(); got != 1 {
		t.Errorf("Total got: %d, expected: 1", got)
	}
}

func TestSemaphoreKilledWaiter(t *testing.T) {
	s := NewSemaphore(0)
	b := newTestWaiter()
	bDone := async(func() bool { return s.Down(b) })
	waitFor(t, "b to queue", func() bool { return s.Waiters() == 1 })
	b.kill()
	if <-bDone {
		t.Fatalf("killed waiter got a unit")
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count got: %d, expected: 0", got)
	}
}

func TestSemaphoreSkipsDeadWaiter(t *testing.T) {
	s := NewSemaphore(0)
	dead := newTestWaiter()
	dead.kill()
	s.count--
	s.waiters.PushBack(&waiter{w: dead})

	s.Up()
	if got := s.Count(); got != 1 {
		t.Errorf("Count got: %d, expected: 1", got)
	}
	if got := s.Waiters(); got != 0 {
		t.Errorf("Waiters got: %d, expected: 0", got)
	}
}

func TestCondvar(t *testing.T) {
	c := NewCondvar()
	m := NewMutex(BlockingMutex)
	a := newTestWaiter()
	if c.Signal() {
		t.Errorf("Signal with no waiters woke someone")
	}

	m.Lock(a)
	aDone := async(func() bool { return c.Wait(a, m) })
	waitFor(t, "a to wait", func() bool { return c.Waiters() == 1 })
	if m.Locked() {
		t.Errorf("Wait did not release the mutex")
	}
	if !c.Signal() {
		t.Errorf("Signal found no waiter")
	}
	if !<-aDone {
		t.Fatalf("Wait failed")
	}
	if m.Locked() {
		t.Errorf("Wait reacquired the mutex")
	}
}

func TestCondvarKilledWaiter(t *testing.T) {
	c := NewCondvar()
	m := NewMutex(SpinMutex)
	a := newTestWaiter()
	m.Lock(a)
	aDone := async(func() bool { return c.Wait(a, m) })
	waitFor(t, "a to wait", func() bool { return c.Waiters() == 1 })
	a.kill()
	if <-aDone {
		t.Fatalf("killed waiter returned success")
	}
	if c.Signal() {
		t.Errorf("Signal woke a killed waiter")
	}
}

func TestWaiterList(t *testing.T) {
	var l waiterList
	ws := []*waiter{{}, {}, {}}
	for _, w := range ws {
		l.PushBack(w)
	}
	if !l.Remove(ws[1]) {
		t.Fatalf("Remove of a linked waiter failed")
	}
	if l.Remove(ws[1]) {
		t.Errorf("second Remove succeeded")
	}
	if got := l.Len(); got != 2 {
		t.Errorf("Len got: %d, expected: 2", got)
	}
	if got := l.PopFront(); got != ws[0] {
		t.Errorf("PopFront got: %p, expected: %p", got, ws[0])
	}
	if got := l.PopFront(); got != ws[2] {
		t.Errorf("PopFront got: %p, expected: %p", got, ws[2])
	}
	if !l.Empty() || l.PopFront() != nil {
		t.Errorf("list not empty")
	}
}

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

// Package locks implements the kernel-mediated synchronization objects that
// user tasks manipulate through system calls: mutexes, counting semaphores
// and condition variables.
//
// Objects never block the host thread directly. A task suspends through its
// Waiter, which is implemented by the kernel scheduler. Every operation that
// may suspend returns false if the task was killed while waiting; in that
// case the object is left as if the task had never asked.
package locks

// Waiter is the scheduler contract used by a waiting task.
type Waiter interface {
	// Yield gives other runnable tasks a turn. It returns false if the
	// task has been killed.
	Yield() bool

	// Block suspends the task until Wake is called. A Wake that arrives
	// before Block is not lost. It returns false if the task has been
	// killed.
	Block() bool

	// Wake makes a task suspended in (or about to enter) Block runnable. It
	// returns false if the task is dead and will not consume the wakeup.
	// Wake must not block.
	Wake() bool
}

// waiter is a queued Waiter.
type waiter struct {
	waiterEntry

	w Waiter

	// granted is set when the waiter has been handed what it waited for. It
	// is protected by the owning object's mutex.
	granted bool
}

// wakeOne pops waiters from l until one accepts a wakeup, marks it granted
// and returns it. It returns nil if no live waiter remains.
func wakeOne(l *waiterList) *waiter {
	for {
		w := l.PopFront()
		if w == nil {
			return nil
		}
		if w.w.Wake() {
			w.granted = true
			return w
		}
	}
}

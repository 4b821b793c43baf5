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

// waiterList is an intrusive FIFO list of waiters.
//
// The zero value is an empty list.
type waiterList struct {
	head *waiter
	tail *waiter
}

// waiterEntry is embedded in waiter to link it into a waiterList.
type waiterEntry struct {
	next   *waiter
	prev   *waiter
	linked bool
}

// Empty returns true iff the list is empty.
func (l *waiterList) Empty() bool {
	return l.head == nil
}

// Front returns the first element of list l or nil.
func (l *waiterList) Front() *waiter {
	return l.head
}

// Len returns the number of elements in the list.
//
// NOTE: This is an O(n) operation.
func (l *waiterList) Len() int {
	n := 0
	for w := l.head; w != nil; w = w.next {
		n++
	}
	return n
}

// PushBack inserts w at the back of list l.
func (l *waiterList) PushBack(w *waiter) {
	w.next = nil
	w.prev = l.tail
	w.linked = true
	if l.tail != nil {
		l.tail.next = w
	} else {
		l.head = w
	}
	l.tail = w
}

// Remove removes w from l. It returns false if w was not linked.
func (l *waiterList) Remove(w *waiter) bool {
	if !w.linked {
		return false
	}
	if w.prev != nil {
		w.prev.next = w.next
	} else {
		l.head = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else {
		l.tail = w.prev
	}
	w.next = nil
	w.prev = nil
	w.linked = false
	return true
}

// PopFront removes and returns the first element of l, or nil.
func (l *waiterList) PopFront() *waiter {
	w := l.head
	if w != nil {
		l.Remove(w)
	}
	return w
}

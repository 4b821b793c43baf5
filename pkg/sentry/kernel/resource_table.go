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

// ResourceTable is a slot-indexed registry of handles. Slots are reused
// first-fit: Add fills the lowest free slot before growing the table.
//
// The zero value of T marks a free slot. ResourceTable is not synchronized;
// callers hold the owning Process's mutex.
type ResourceTable[T comparable] struct {
	slots []T
}

// Add stores item in the lowest free slot and returns its id.
func (r *ResourceTable[T]) Add(item T) int {
	var zero T
	for id, s := range r.slots {
		if s == zero {
			r.slots[id] = item
			return id
		}
	}
	r.slots = append(r.slots, item)
	return len(r.slots) - 1
}

// Get returns the item in slot id. ok is false if id is out of range or the
// slot is free.
func (r *ResourceTable[T]) Get(id int) (item T, ok bool) {
	var zero T
	if id < 0 || id >= len(r.slots) || r.slots[id] == zero {
		return zero, false
	}
	return r.slots[id], true
}

// Remove frees slot id. It returns false if the slot was already free.
func (r *ResourceTable[T]) Remove(id int) bool {
	var zero T
	if _, ok := r.Get(id); !ok {
		return false
	}
	r.slots[id] = zero
	return true
}

// Len returns the number of slots, free or not.
func (r *ResourceTable[T]) Len() int {
	return len(r.slots)
}

// ForEach calls fn for every occupied slot in ascending order.
func (r *ResourceTable[T]) ForEach(fn func(id int, item T)) {
	var zero T
	for id, s := range r.slots {
		if s != zero {
			fn(id, s)
		}
	}
}

// Clone returns a table holding the same handles in the same slots.
func (r *ResourceTable[T]) Clone() ResourceTable[T] {
	return ResourceTable[T]{slots: append([]T(nil), r.slots...)}
}

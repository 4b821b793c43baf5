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

// Package deadlock implements the Banker's algorithm safety check used to
// refuse lock and semaphore requests that could deadlock.
package deadlock

import (
	"fmt"
)

// Class is a resource class. Each class is checked independently.
type Class int

const (
	// Mutex resources contribute one unit per slot.
	Mutex Class = iota

	// Semaphore resources contribute their creation count per slot.
	Semaphore
)

// String implements fmt.Stringer.String.
func (c Class) String() string {
	switch c {
	case Mutex:
		return "mutex"
	case Semaphore:
		return "semaphore"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// State is a snapshot of one resource class within a process.
type State struct {
	// Work is the number of available units per resource, after
	// subtracting every task's allocation.
	Work []int64

	// Allocation is the number of units each task holds, per resource.
	Allocation [][]int64

	// Need is the number of units each task is waiting for, per resource.
	Need [][]int64
}

// NewState builds a snapshot from the total units of each resource and the
// per-task allocation and need vectors. Vectors may be shorter than totals;
// missing entries are zero. The inputs are not modified.
func NewState(totals []int64, allocation, need [][]int64) State {
	n := len(totals)
	s := State{
		Work:       append([]int64(nil), totals...),
		Allocation: make([][]int64, len(allocation)),
		Need:       make([][]int64, len(allocation)),
	}
	for i := range allocation {
		s.Allocation[i] = make([]int64, n)
		s.Need[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			if j < len(allocation[i]) {
				s.Allocation[i][j] = allocation[i][j]
				s.Work[j] -= allocation[i][j]
			}
			if i < len(need) && j < len(need[i]) {
				s.Need[i][j] = need[i][j]
			}
		}
	}
	return s
}

// Request reports whether task i may additionally wait for one unit of
// resource id without making the state unsafe. The receiver is not
// modified.
func (s State) Request(i, id int) bool {
	need := make([][]int64, len(s.Need))
	for k := range s.Need {
		need[k] = append([]int64(nil), s.Need[k]...)
	}
	need[i][id]++
	return Safe(s.Work, s.Allocation, need)
}

// Safe runs the Banker's safety algorithm. It returns true iff there is an
// order in which every task's need can be satisfied from work plus the
// allocations released by the tasks that finish before it.
//
// Safe does not modify its arguments.
func Safe(work []int64, allocation, need [][]int64) bool {
	avail := append([]int64(nil), work...)
	finished := make([]bool, len(need))
	remaining := len(need)
	for progress := true; progress && remaining > 0; {
		progress = false
		for i, done := range finished {
			if done || !satisfiable(need[i], avail) {
				continue
			}
			for j := range avail {
				if j < len(allocation[i]) {
					avail[j] += allocation[i][j]
				}
			}
			finished[i] = true
			remaining--
			progress = true
		}
	}
	return remaining == 0
}

func satisfiable(need, avail []int64) bool {
	for j, n := range need {
		if n == 0 {
			continue
		}
		if j >= len(avail) || avail[j] < n {
			return false
		}
	}
	return true
}

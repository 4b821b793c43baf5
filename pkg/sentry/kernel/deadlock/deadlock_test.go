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

package deadlock

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSafeTextbook(t *testing.T) {
	totals := []int64{10, 5, 7}
	allocation := [][]int64{
		{0, 1, 0},
		{2, 0, 0},
		{3, 0, 2},
		{2, 1, 1},
		{0, 0, 2},
	}
	need := [][]int64{
		{7, 4, 3},
		{1, 2, 2},
		{6, 0, 0},
		{0, 1, 1},
		{4, 3, 1},
	}
	s := NewState(totals, allocation, need)
	if diff := cmp.Diff([]int64{3, 3, 2}, s.Work); diff != "" {
		t.Errorf("Work mismatch (-want +got):\n%s", diff)
	}
	if !Safe(s.Work, s.Allocation, s.Need) {
		t.Errorf("Safe got: false, expected: true")
	}
	// Task 1 asking for one more unit of resource 0 still admits
	// <1, 3, 0, 2, 4>.
	if !s.Request(1, 0) {
		t.Errorf("Request(1, 0) got: false, expected: true")
	}
	if diff := cmp.Diff([]int64{3, 3, 2}, s.Work); diff != "" {
		t.Errorf("Request modified Work (-want +got):\n%s", diff)
	}
	if got := s.Need[1][0]; got != 1 {
		t.Errorf("Request modified Need[1][0]: got %d, expected: 1", got)
	}
	// With nothing available no task can finish.
	if Safe([]int64{0, 0, 0}, s.Allocation, s.Need) {
		t.Errorf("Safe with no available units got: true, expected: false")
	}
}

func TestCircularWait(t *testing.T) {
	// A holds M1 and B holds M2. B already waits for M1.
	s := NewState(
		[]int64{1, 1},
		[][]int64{{1, 0}, {0, 1}},
		[][]int64{{0, 0}, {1, 0}},
	)
	if !Safe(s.Work, s.Allocation, s.Need) {
		t.Fatalf("state before A's request got unsafe")
	}
	if s.Request(0, 1) {
		t.Errorf("A requesting M2 got: safe, expected: unsafe")
	}
	if got := s.Need[0][1]; got != 0 {
		t.Errorf("Request left need[0][1] = %d, expected: 0", got)
	}
	// Without B's pending request, A may wait for M2.
	s.Need[1][0] = 0
	if !s.Request(0, 1) {
		t.Errorf("A requesting M2 with B idle got: unsafe, expected: safe")
	}
}

func TestSemaphoreUnits(t *testing.T) {
	// Two units, both taken, each holder wants another.
	totals := []int64{2}
	alloc := [][]int64{{1}, {1}}
	if !NewState(totals, alloc, [][]int64{{0}, {0}}).Request(0, 0) {
		t.Errorf("single request got unsafe")
	}
	if NewState(totals, alloc, [][]int64{{0}, {1}}).Request(0, 0) {
		t.Errorf("second concurrent request got safe")
	}
}

func TestShortVectors(t *testing.T) {
	s := NewState([]int64{1, 1, 1}, [][]int64{{1}, nil}, [][]int64{nil})
	if diff := cmp.Diff([]int64{0, 1, 1}, s.Work); diff != "" {
		t.Errorf("Work mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]int64{{0, 0, 0}, {0, 0, 0}}, s.Need); diff != "" {
		t.Errorf("Need mismatch (-want +got):\n%s", diff)
	}
	if !s.Request(1, 2) {
		t.Errorf("Request for a free resource got unsafe")
	}
}

func TestClassString(t *testing.T) {
	for c, want := range map[Class]string{Mutex: "mutex", Semaphore: "semaphore", 7: "Class(7)"} {
		if got := c.String(); got != want {
			t.Errorf("String got: %q, expected: %q", got, want)
		}
	}
}

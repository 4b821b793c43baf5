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

	"github.com/google/go-cmp/cmp"
)

func TestResourceTableFirstFit(t *testing.T) {
	var r ResourceTable[*int]
	a, b, c := new(int), new(int), new(int)
	for i, v := range []*int{a, b, c} {
		if id := r.Add(v); id != i {
			t.Errorf("Add got id: %d, expected: %d", id, i)
		}
	}
	if !r.Remove(1) {
		t.Fatalf("Remove(1) failed")
	}
	if r.Remove(1) {
		t.Errorf("second Remove(1) succeeded")
	}
	if _, ok := r.Get(1); ok {
		t.Errorf("Get of a freed slot succeeded")
	}
	d := new(int)
	if id := r.Add(d); id != 1 {
		t.Errorf("Add after Remove got id: %d, expected: 1", id)
	}
	if got, ok := r.Get(1); !ok || got != d {
		t.Errorf("Get(1) got: (%p, %t), expected: (%p, true)", got, ok, d)
	}
	if id := r.Add(new(int)); id != 3 {
		t.Errorf("Add with no free slots got id: %d, expected: 3", id)
	}
	for _, id := range []int{-1, 4, 100} {
		if _, ok := r.Get(id); ok {
			t.Errorf("Get(%d) succeeded", id)
		}
	}
}

func TestResourceTableClone(t *testing.T) {
	var r ResourceTable[*int]
	a, b := new(int), new(int)
	r.Add(a)
	r.Add(b)
	r.Remove(0)

	c := r.Clone()
	c.Add(new(int))
	if _, ok := r.Get(0); ok {
		t.Errorf("Add to clone changed the original")
	}
	if got, _ := c.Get(1); got != b {
		t.Errorf("clone does not share handle in slot 1")
	}

	var ids []int
	c.ForEach(func(id int, _ *int) { ids = append(ids, id) })
	if diff := cmp.Diff([]int{0, 1}, ids); diff != "" {
		t.Errorf("ForEach ids mismatch (-want +got):\n%s", diff)
	}
}

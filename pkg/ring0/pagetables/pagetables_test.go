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

package pagetables

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/edukernel/pkg/hostarch"
)

type mapping struct {
	start    hostarch.Addr
	physical uintptr
	opts     MapOpts
}

func checkMappings(t *testing.T, pt *PageTables, want []mapping) {
	t.Helper()
	var got []mapping
	pt.Walk(func(addr hostarch.Addr, physical uintptr, opts MapOpts) bool {
		got = append(got, mapping{addr, physical, opts})
		return true
	})
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(mapping{})); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
}

func TestMapUnmap(t *testing.T) {
	pt := New()
	rw := MapOpts{AccessType: hostarch.ReadWrite, User: true}
	if pt.Map(0x400000, 2*hostarch.PageSize, rw, 42*hostarch.PageSize) {
		t.Errorf("Map on an empty table reported a previous mapping")
	}
	checkMappings(t, pt, []mapping{
		{0x400000, 42 * hostarch.PageSize, rw},
		{0x401000, 43 * hostarch.PageSize, rw},
	})

	if !pt.Unmap(0x400000, hostarch.PageSize) {
		t.Errorf("Unmap of a mapped page reported no previous mapping")
	}
	checkMappings(t, pt, []mapping{
		{0x401000, 43 * hostarch.PageSize, rw},
	})
	if pt.Unmap(0x400000, hostarch.PageSize) {
		t.Errorf("Unmap of an unmapped page reported a previous mapping")
	}
}

func TestLookup(t *testing.T) {
	pt := New()
	r := MapOpts{AccessType: hostarch.Read, User: true}
	pt.Map(0x10000, hostarch.PageSize, r, 7*hostarch.PageSize)

	physical, opts, ok := pt.Lookup(0x10123)
	if !ok || physical != 7*hostarch.PageSize+0x123 || opts != r {
		t.Errorf("Lookup(0x10123) got: (%#x, %v, %v), expected: (%#x, %v, true)", physical, opts, ok, 7*hostarch.PageSize+0x123, r)
	}
	if _, _, ok := pt.Lookup(0x11000); ok {
		t.Errorf("Lookup of an unmapped page succeeded")
	}
	if pt.IsEmpty(0x10000, 2*hostarch.PageSize) || !pt.IsEmpty(0x11000, hostarch.PageSize) {
		t.Errorf("IsEmpty returned wrong results")
	}
}

func TestMapNoAccessUnmaps(t *testing.T) {
	pt := New()
	pt.Map(0x10000, hostarch.PageSize, MapOpts{AccessType: hostarch.Read}, 0)
	pt.Map(0x10000, hostarch.PageSize, MapOpts{}, 0)
	if pt.Len() != 0 {
		t.Errorf("Len() got: %d, expected: 0", pt.Len())
	}
}

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

package hostarch

import (
	"testing"
)

func TestRoundUp(t *testing.T) {
	for _, tc := range []struct {
		in   Addr
		want Addr
		ok   bool
	}{
		{0, 0, true},
		{1, PageSize, true},
		{PageSize, PageSize, true},
		{PageSize + 1, 2 * PageSize, true},
		{^Addr(0), 0, false},
	} {
		got, ok := tc.in.RoundUp()
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("Addr(%#x).RoundUp() got: (%#x, %v), expected: (%#x, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRangeOps(t *testing.T) {
	a := AddrRange{0x1000, 0x3000}
	b := AddrRange{0x2000, 0x5000}
	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Errorf("%v and %v should overlap", a, b)
	}
	if got, want := a.Intersect(b), (AddrRange{0x2000, 0x3000}); got != want {
		t.Errorf("%v.Intersect(%v) got: %v, expected: %v", a, b, got, want)
	}
	if a.Overlaps(AddrRange{0x3000, 0x4000}) {
		t.Errorf("%v should not overlap an adjacent range", a)
	}
	if got := a.NumPages(); got != 2 {
		t.Errorf("%v.NumPages() got: %d, expected: 2", a, got)
	}
	if _, ok := Addr(^uint64(0) - 1).ToRange(PageSize); ok {
		t.Errorf("ToRange should report overflow")
	}
}

func TestAccessTypeString(t *testing.T) {
	for _, tc := range []struct {
		at   AccessType
		want string
	}{
		{NoAccess, "---"},
		{Read, "r--"},
		{ReadWrite, "rw-"},
		{ReadExecute, "r-x"},
		{AnyAccess, "rwx"},
	} {
		if got := tc.at.String(); got != tc.want {
			t.Errorf("%+v.String() got: %q, expected: %q", tc.at, got, tc.want)
		}
	}
	if !AnyAccess.SupersetOf(ReadWrite) || Read.SupersetOf(Write) {
		t.Errorf("SupersetOf returned wrong results")
	}
}

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

package mm

import (
	"github.com/google/btree"
	"gvisor.dev/edukernel/pkg/hostarch"
)

// A vma represents a virtual memory area.
type vma struct {
	ar hostarch.AddrRange

	// perms are the user access permissions of the region. Every page of a
	// vma is additionally mapped with the user bit.
	perms hostarch.AccessType

	// hint is the name shown in mapping listings, e.g. "[heap]".
	hint string
}

func (v *vma) copy() *vma {
	v2 := *v
	return &v2
}

// vmaSet is an ordered set of non-overlapping vmas keyed by start address.
type vmaSet struct {
	t *btree.BTreeG[*vma]
}

func vmaLess(a, b *vma) bool {
	return a.ar.Start < b.ar.Start
}

func newVMASet() vmaSet {
	return vmaSet{t: btree.NewG[*vma](8, vmaLess)}
}

func (s *vmaSet) insert(v *vma) {
	s.t.ReplaceOrInsert(v)
}

// find returns the vma containing addr, or nil.
func (s *vmaSet) find(addr hostarch.Addr) *vma {
	var found *vma
	s.t.DescendLessOrEqual(&vma{ar: hostarch.AddrRange{Start: addr}}, func(v *vma) bool {
		if v.ar.Contains(addr) {
			found = v
		}
		return false
	})
	return found
}

// overlapping returns the vmas that overlap ar in ascending order.
func (s *vmaSet) overlapping(ar hostarch.AddrRange) []*vma {
	var vs []*vma
	if v := s.find(ar.Start); v != nil {
		vs = append(vs, v)
	}
	s.t.AscendRange(&vma{ar: hostarch.AddrRange{Start: ar.Start + 1}}, &vma{ar: hostarch.AddrRange{Start: ar.End}}, func(v *vma) bool {
		vs = append(vs, v)
		return true
	})
	return vs
}

// removeRange removes ar from the set, splitting vmas that straddle its
// bounds. It returns the number of bytes removed.
func (s *vmaSet) removeRange(ar hostarch.AddrRange) uint64 {
	removed := uint64(0)
	for _, v := range s.overlapping(ar) {
		s.t.Delete(v)
		removed += v.ar.Intersect(ar).Length()
		if v.ar.Start < ar.Start {
			left := v.copy()
			left.ar.End = ar.Start
			s.insert(left)
		}
		if v.ar.End > ar.End {
			right := v.copy()
			right.ar.Start = ar.End
			s.insert(right)
		}
	}
	return removed
}

func (s *vmaSet) forEach(fn func(v *vma) bool) {
	s.t.Ascend(fn)
}

// span returns the total length of all vmas.
func (s *vmaSet) span() uint64 {
	n := uint64(0)
	s.forEach(func(v *vma) bool {
		n += v.ar.Length()
		return true
	})
	return n
}

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

// Package mm provides a memory management subsystem: user address spaces
// made of page-aligned regions backed by pages of a pgalloc.MemoryFile.
//
// Lock order:
//
//	mm.mu
//	  pgalloc.MemoryFile.mu
package mm

import (
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/ring0/pagetables"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
	"gvisor.dev/edukernel/pkg/sync"
)

// Translator maps user pages to physical pages. It is implemented by
// *pagetables.PageTables.
type Translator interface {
	// Map installs a mapping with the given physical address. It returns
	// true if there was a previous mapping in the range.
	Map(addr hostarch.Addr, length uintptr, opts pagetables.MapOpts, physical uintptr) bool

	// Unmap removes mappings in the given range. It returns true if there
	// was a previous mapping in the range.
	Unmap(addr hostarch.Addr, length uintptr) bool

	// Lookup returns the physical address mapped at addr, if any.
	Lookup(addr hostarch.Addr) (physical uintptr, opts pagetables.MapOpts, valid bool)

	// Walk visits every mapped page in ascending address order.
	Walk(fn func(addr hostarch.Addr, physical uintptr, opts pagetables.MapOpts) bool)
}

// MemoryManager implements a virtual address space.
type MemoryManager struct {
	// mf backs all private memory. mf is immutable.
	mf *pgalloc.MemoryFile

	// mu protects the fields below.
	mu sync.Mutex

	// pt translates user pages.
	pt Translator

	// vmas are the regions of the address space.
	vmas vmaSet

	// usageAS is the sum of the lengths of all vmas.
	usageAS uint64

	// brk is the mm's brk, which is manipulated using the brk(2) system
	// call. The brk is initially set up by the loader which maps an
	// executable binary into the mm.
	brk hostarch.AddrRange
}

// NewMemoryManager returns a new, empty MemoryManager backed by mf.
func NewMemoryManager(mf *pgalloc.MemoryFile) *MemoryManager {
	return &MemoryManager{
		mf:   mf,
		pt:   pagetables.New(),
		vmas: newVMASet(),
	}
}

// Fork creates a copy of mm with all pages copied into newly allocated
// physical memory.
func (mm *MemoryManager) Fork() (*MemoryManager, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm2 := NewMemoryManager(mm.mf)
	mm2.brk = mm.brk
	mm2.usageAS = mm.usageAS
	mm.vmas.forEach(func(v *vma) bool {
		mm2.vmas.insert(v.copy())
		return true
	})

	var err error
	mm.pt.Walk(func(addr hostarch.Addr, physical uintptr, opts pagetables.MapOpts) bool {
		var dst uintptr
		dst, err = mm.mf.Allocate()
		if err != nil {
			return false
		}
		copy(mm.mf.Page(dst), mm.mf.Page(physical))
		mm2.pt.Map(addr, hostarch.PageSize, opts, dst)
		return true
	})
	if err != nil {
		mm2.Release()
		return nil, err
	}
	return mm2, nil
}

// Release frees all physical memory held by mm. mm must not be used
// afterward.
func (mm *MemoryManager) Release() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.pt.Walk(func(_ hostarch.Addr, physical uintptr, _ pagetables.MapOpts) bool {
		mm.mf.Free(physical)
		return true
	})
	mm.pt = pagetables.New()
	mm.vmas = newVMASet()
	mm.usageAS = 0
	mm.brk = hostarch.AddrRange{}
}

// VirtualMemorySize returns the combined length in bytes of all mappings in
// mm.
func (mm *MemoryManager) VirtualMemorySize() uint64 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.usageAS
}

// ResidentSetSize returns the value advertised as mm's RSS in bytes.
func (mm *MemoryManager) ResidentSetSize() uint64 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	n := uint64(0)
	mm.pt.Walk(func(hostarch.Addr, uintptr, pagetables.MapOpts) bool {
		n += hostarch.PageSize
		return true
	})
	return n
}

// IsMapped returns true if the page containing addr is mapped.
func (mm *MemoryManager) IsMapped(addr hostarch.Addr) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, _, valid := mm.pt.Lookup(addr.RoundDown())
	return valid
}

// Mapping describes one region of the address space.
type Mapping struct {
	Range hostarch.AddrRange
	Perms hostarch.AccessType
	Hint  string
}

// Mappings returns the regions of mm in ascending address order.
func (mm *MemoryManager) Mappings() []Mapping {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var ms []Mapping
	mm.vmas.forEach(func(v *vma) bool {
		ms = append(ms, Mapping{Range: v.ar, Perms: v.perms, Hint: v.hint})
		return true
	})
	return ms
}

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
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/ring0/pagetables"
)

// MMapOpts specifies a fixed anonymous mapping.
type MMapOpts struct {
	// Addr is the start of the mapping. It must be page-aligned.
	Addr hostarch.Addr

	// Length is the length of the mapping. It is rounded up to a multiple
	// of the page size.
	Length uint64

	// Perms is the set of permissions to apply to the mapping.
	Perms hostarch.AccessType

	// Hint is the name of the mapping shown in mapping listings.
	Hint string
}

// MMap establishes a new anonymous mapping at opts.Addr.
//
// A range extending past MaxUserAddr, or larger than the free physical
// memory, fails with ENOMEM. Every page of the rounded-up range is then
// checked against the page tables before anything is changed; if any page is
// already mapped, MMap fails with EEXIST and the address space is unchanged.
// The new pages are zero-filled and mapped with the user bit and opts.Perms.
func (mm *MemoryManager) MMap(opts MMapOpts) error {
	if !opts.Addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	if !opts.Perms.Any() {
		return linuxerr.EINVAL
	}
	length, ok := hostarch.PageRoundUp(opts.Length)
	if !ok {
		return linuxerr.EINVAL
	}
	ar, ok := opts.Addr.ToRange(length)
	if !ok {
		return linuxerr.EINVAL
	}
	if length == 0 {
		return nil
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.mapLocked(ar, opts.Perms, opts.Hint)
}

// mapLocked maps fresh pages over ar, which must be page-aligned and
// non-empty. It fails with ENOMEM, before inspecting any page, if ar extends
// past MaxUserAddr or needs more pages than the memory file has free.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) mapLocked(ar hostarch.AddrRange, perms hostarch.AccessType, hint string) error {
	if ar.End > hostarch.MaxUserAddr || ar.NumPages() > mm.mf.Available() {
		return linuxerr.ENOMEM
	}
	for addr := ar.Start; addr < ar.End; addr += hostarch.PageSize {
		if _, _, valid := mm.pt.Lookup(addr); valid {
			return linuxerr.EEXIST
		}
	}

	opts := pagetables.MapOpts{AccessType: perms, User: true}
	for addr := ar.Start; addr < ar.End; addr += hostarch.PageSize {
		physical, err := mm.mf.Allocate()
		if err != nil {
			// Another address space took the remaining pages.
			mm.freePagesLocked(hostarch.AddrRange{Start: ar.Start, End: addr})
			return err
		}
		mm.pt.Map(addr, hostarch.PageSize, opts, physical)
	}
	mm.vmas.insert(&vma{ar: ar, perms: perms, hint: hint})
	mm.usageAS += ar.Length()
	return nil
}

// freePagesLocked unmaps the pages in ar and returns them to the memory
// file, without touching the vmas.
//
// Preconditions: mm.mu must be locked. ar must be page-aligned.
func (mm *MemoryManager) freePagesLocked(ar hostarch.AddrRange) {
	for a := ar.Start; a < ar.End; a += hostarch.PageSize {
		if physical, _, valid := mm.pt.Lookup(a); valid {
			mm.pt.Unmap(a, hostarch.PageSize)
			mm.mf.Free(physical)
		}
	}
}

// MUnmap removes the pages in [addr, addr+length).
//
// Every page of the rounded-up range must be mapped; otherwise MUnmap fails
// with EINVAL and the address space is unchanged. A range extending past
// MaxUserAddr can never be fully mapped and fails without a page walk.
// Regions straddling the bounds of the range are split.
func (mm *MemoryManager) MUnmap(addr hostarch.Addr, length uint64) error {
	if !addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.PageRoundUp(length)
	if !ok {
		return linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(la)
	if !ok {
		return linuxerr.EINVAL
	}
	if la == 0 {
		return nil
	}
	if ar.End > hostarch.MaxUserAddr {
		return linuxerr.EINVAL
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	for a := ar.Start; a < ar.End; a += hostarch.PageSize {
		if _, _, valid := mm.pt.Lookup(a); !valid {
			return linuxerr.EINVAL
		}
	}
	mm.unmapLocked(ar)
	return nil
}

// unmapLocked unmaps all pages in ar and releases their memory.
//
// Preconditions: mm.mu must be locked. ar must be page-aligned.
func (mm *MemoryManager) unmapLocked(ar hostarch.AddrRange) {
	mm.freePagesLocked(ar)
	mm.usageAS -= mm.vmas.removeRange(ar)
}

// BrkSetup sets mm's brk address to addr and its brk size to 0.
func (mm *MemoryManager) BrkSetup(addr hostarch.Addr) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	// Unmap the existing brk.
	if mm.brk.Length() != 0 {
		mm.unmapLocked(hostarch.AddrRange{Start: mm.brk.Start.RoundDown(), End: mm.brk.End.MustRoundUp()})
	}
	mm.brk = hostarch.AddrRange{Start: addr, End: addr}
}

// Brk returns the current program break.
func (mm *MemoryManager) Brk() hostarch.Addr {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.brk.End
}

// Sbrk moves the program break by delta bytes and returns the previous
// break.
//
// The break may not move below the heap base established by BrkSetup
// (EINVAL), and growth fails with ENOMEM if the new heap pages collide with
// an existing mapping or memory is exhausted. On failure the break is
// unchanged.
func (mm *MemoryManager) Sbrk(delta int64) (hostarch.Addr, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	old := mm.brk.End
	newBrk := hostarch.Addr(int64(old) + delta)
	if (delta < 0 && newBrk > old) || (delta > 0 && newBrk < old) {
		return old, linuxerr.EINVAL
	}
	if newBrk < mm.brk.Start {
		return old, linuxerr.EINVAL
	}

	// The heap mapping begins at the page containing brk.Start, so the
	// first partial page is covered as soon as the break moves past it.
	base := mm.brk.Start.RoundDown()
	oldpg := base
	if old > mm.brk.Start {
		oldpg = old.MustRoundUp()
	}
	newpg := base
	if newBrk > mm.brk.Start {
		var ok bool
		if newpg, ok = newBrk.RoundUp(); !ok {
			return old, linuxerr.ENOMEM
		}
	}

	switch {
	case oldpg < newpg:
		if err := mm.mapLocked(hostarch.AddrRange{Start: oldpg, End: newpg}, hostarch.ReadWrite, "[heap]"); err != nil {
			return old, linuxerr.ENOMEM
		}
	case newpg < oldpg:
		mm.unmapLocked(hostarch.AddrRange{Start: newpg, End: oldpg})
	}
	mm.brk.End = newBrk
	return old, nil
}

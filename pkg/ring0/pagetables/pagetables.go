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

// Package pagetables provides a simple page table implementation for the
// simulated machine.
//
// Entries map one virtual page to one physical page of a pgalloc.MemoryFile.
// PageTables is not synchronized; callers must serialize access, typically
// with the owning MemoryManager's lock.
package pagetables

import (
	"fmt"
	"sort"

	"gvisor.dev/edukernel/pkg/hostarch"
)

// MapOpts are page table options passed to Map.
type MapOpts struct {
	// AccessType defines permissions.
	AccessType hostarch.AccessType

	// User indicates the page is a user page.
	User bool
}

// String implements fmt.Stringer.String.
func (o MapOpts) String() string {
	u := "-"
	if o.User {
		u = "u"
	}
	return o.AccessType.String() + u
}

type entry struct {
	physical uintptr
	opts     MapOpts
}

// PageTables is a set of page tables.
type PageTables struct {
	// entries is keyed by virtual page number.
	entries map[uint64]entry
}

// New returns new, empty PageTables.
func New() *PageTables {
	return &PageTables{entries: make(map[uint64]entry)}
}

func checkRange(addr hostarch.Addr, length uintptr) {
	if !addr.IsPageAligned() || length&(hostarch.PageSize-1) != 0 {
		panic(fmt.Sprintf("misaligned range: addr=%#x length=%#x", addr, length))
	}
}

// Map installs a mapping with the given physical address.
//
// True is returned iff there was a previous mapping in the range.
//
// Precondition: addr & length must be page-aligned, their sum must not
// overflow.
func (p *PageTables) Map(addr hostarch.Addr, length uintptr, opts MapOpts, physical uintptr) bool {
	checkRange(addr, length)
	if !opts.AccessType.Any() {
		return p.Unmap(addr, length)
	}
	prev := false
	for off := uintptr(0); off < length; off += hostarch.PageSize {
		vpn := (addr + hostarch.Addr(off)).PageNumber()
		if _, ok := p.entries[vpn]; ok {
			prev = true
		}
		p.entries[vpn] = entry{physical: physical + off, opts: opts}
	}
	return prev
}

// Unmap unmaps the given range.
//
// True is returned iff there was a previous mapping in the range.
//
// Precondition: addr & length must be page-aligned, their sum must not
// overflow.
func (p *PageTables) Unmap(addr hostarch.Addr, length uintptr) bool {
	checkRange(addr, length)
	count := 0
	for off := uintptr(0); off < length; off += hostarch.PageSize {
		vpn := (addr + hostarch.Addr(off)).PageNumber()
		if _, ok := p.entries[vpn]; ok {
			delete(p.entries, vpn)
			count++
		}
	}
	return count > 0
}

// Protect changes the permissions of an existing mapped page. It returns
// false if the page is not mapped.
func (p *PageTables) Protect(addr hostarch.Addr, opts MapOpts) bool {
	vpn := addr.PageNumber()
	e, ok := p.entries[vpn]
	if !ok {
		return false
	}
	e.opts = opts
	p.entries[vpn] = e
	return true
}

// IsEmpty checks if the given range is empty.
//
// Precondition: addr & length must be page-aligned.
func (p *PageTables) IsEmpty(addr hostarch.Addr, length uintptr) bool {
	checkRange(addr, length)
	for off := uintptr(0); off < length; off += hostarch.PageSize {
		if _, ok := p.entries[(addr + hostarch.Addr(off)).PageNumber()]; ok {
			return false
		}
	}
	return true
}

// Lookup returns the physical address for the given virtual address,
// including the offset into the page.
//
// If valid is false, no mapping exists for addr.
func (p *PageTables) Lookup(addr hostarch.Addr) (physical uintptr, opts MapOpts, valid bool) {
	e, ok := p.entries[addr.PageNumber()]
	if !ok {
		return 0, MapOpts{}, false
	}
	return e.physical + uintptr(addr.PageOffset()), e.opts, true
}

// Len returns the number of mapped pages.
func (p *PageTables) Len() int {
	return len(p.entries)
}

// Walk calls fn for every mapped page in ascending address order, until fn
// returns false.
func (p *PageTables) Walk(fn func(addr hostarch.Addr, physical uintptr, opts MapOpts) bool) {
	vpns := make([]uint64, 0, len(p.entries))
	for vpn := range p.entries {
		vpns = append(vpns, vpn)
	}
	sort.Slice(vpns, func(i, j int) bool { return vpns[i] < vpns[j] })
	for _, vpn := range vpns {
		e := p.entries[vpn]
		if !fn(hostarch.Addr(vpn<<hostarch.PageShift), e.physical, e.opts) {
			return
		}
	}
}

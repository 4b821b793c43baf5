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

// Package pgalloc contains the page allocator for physical memory.
//
// Physical memory is a single MemoryFile divided into pages. Physical
// addresses are offsets into the file.
package pgalloc

import (
	"fmt"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sync"
)

// MemoryFileOpts provides options to NewMemoryFile.
type MemoryFileOpts struct {
	// Pages is the number of pages in the file. If zero, DefaultPages is
	// used.
	Pages uint64
}

// DefaultPages is the default size of a MemoryFile: 32 MiB.
const DefaultPages = 8192

// MemoryFile is a physical memory allocator. It is safe for concurrent use.
type MemoryFile struct {
	mu sync.Mutex

	// pages holds page contents, allocated on first use. pages[i] backs
	// physical address i*PageSize.
	pages [][]byte

	// free holds released page indexes for reuse.
	free []uint64

	// limit is the total number of pages.
	limit uint64

	// used is the number of allocated pages.
	used uint64
}

// NewMemoryFile creates a MemoryFile with the given options.
func NewMemoryFile(opts MemoryFileOpts) *MemoryFile {
	if opts.Pages == 0 {
		opts.Pages = DefaultPages
	}
	return &MemoryFile{limit: opts.Pages}
}

// Allocate returns the physical address of a zeroed page.
//
// It returns ENOMEM when all pages are in use.
func (f *MemoryFile) Allocate() (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var idx uint64
	switch {
	case len(f.free) > 0:
		idx = f.free[len(f.free)-1]
		f.free = f.free[:len(f.free)-1]
		clear(f.pages[idx])
	case uint64(len(f.pages)) < f.limit:
		idx = uint64(len(f.pages))
		f.pages = append(f.pages, make([]byte, hostarch.PageSize))
	default:
		log.Warningf("pgalloc: out of memory (%d pages in use)", f.used)
		return 0, linuxerr.ENOMEM
	}
	f.used++
	return uintptr(idx << hostarch.PageShift), nil
}

func (f *MemoryFile) indexLocked(physical uintptr) uint64 {
	idx := uint64(physical) >> hostarch.PageShift
	if idx >= uint64(len(f.pages)) {
		panic(fmt.Sprintf("physical address %#x outside of memory file", physical))
	}
	return idx
}

// Free releases the page at physical, which must have been returned by
// Allocate.
func (f *MemoryFile) Free(physical uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.indexLocked(physical)
	f.free = append(f.free, idx)
	f.used--
}

// Page returns the contents of the page containing physical. The returned
// slice aliases the page and remains valid until the page is freed.
func (f *MemoryFile) Page(physical uintptr) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[f.indexLocked(physical)]
}

// Available returns the number of pages that can still be allocated.
func (f *MemoryFile) Available() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limit - f.used
}

// Usage is a snapshot of allocator usage, in bytes.
type Usage struct {
	Used  uint64
	Total uint64
}

// Usage returns the current usage.
func (f *MemoryFile) Usage() Usage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Usage{
		Used:  f.used * hostarch.PageSize,
		Total: f.limit * hostarch.PageSize,
	}
}

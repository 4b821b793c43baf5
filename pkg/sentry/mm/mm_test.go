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
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/ring0/pagetables"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
)

const page = hostarch.PageSize

func testMemoryManager() *MemoryManager {
	return NewMemoryManager(pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Pages: 64}))
}

func mappedPages(mm *MemoryManager) []hostarch.Addr {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var addrs []hostarch.Addr
	mm.pt.Walk(func(addr hostarch.Addr, _ uintptr, _ pagetables.MapOpts) bool {
		addrs = append(addrs, addr)
		return true
	})
	return addrs
}

func (mm *MemoryManager) realUsageAS() uint64 {
	return mm.vmas.span()
}

func TestMMapMUnmapRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		start  hostarch.Addr
		length uint64
	}{
		{name: "one page", start: 0x10000000, length: page},
		{name: "partial page", start: 0x10000000, length: 10},
		{name: "several pages", start: 0x10003000, length: 3*page + 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mm := testMemoryManager()
			if err := mm.MMap(MMapOpts{Addr: 0x20000000, Length: page, Perms: hostarch.Read}); err != nil {
				t.Fatalf("MMap of the base mapping failed: %v", err)
			}
			before := mappedPages(mm)

			if err := mm.MMap(MMapOpts{Addr: tc.start, Length: tc.length, Perms: hostarch.ReadWrite}); err != nil {
				t.Fatalf("MMap(%#x, %d) failed: %v", tc.start, tc.length, err)
			}
			if mm.usageAS != mm.realUsageAS() {
				t.Fatalf("usageAS believes %v bytes are mapped; %v bytes are actually mapped", mm.usageAS, mm.realUsageAS())
			}
			if err := mm.MUnmap(tc.start, tc.length); err != nil {
				t.Fatalf("MUnmap(%#x, %d) failed: %v", tc.start, tc.length, err)
			}
			if diff := cmp.Diff(before, mappedPages(mm)); diff != "" {
				t.Errorf("mapped pages after round trip mismatch (-want +got):\n%s", diff)
			}
			if mm.usageAS != page {
				t.Errorf("usageAS got: %d, expected: %d", mm.usageAS, page)
			}
		})
	}
}

func TestMMapOverlapIsAllOrNothing(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10002000, Length: page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	before := mappedPages(mm)
	used := mm.mf.Usage()

	err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: 4 * page, Perms: hostarch.ReadWrite})
	if !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Fatalf("overlapping MMap got: %v, expected: EEXIST", err)
	}
	if diff := cmp.Diff(before, mappedPages(mm)); diff != "" {
		t.Errorf("failed MMap changed the address space (-want +got):\n%s", diff)
	}
	if got := mm.mf.Usage(); got != used {
		t.Errorf("failed MMap leaked memory: usage got: %+v, expected: %+v", got, used)
	}
}

func TestMMapInvalid(t *testing.T) {
	mm := testMemoryManager()
	for _, tc := range []struct {
		name string
		opts MMapOpts
	}{
		{name: "misaligned", opts: MMapOpts{Addr: 0x10000001, Length: page, Perms: hostarch.Read}},
		{name: "no access", opts: MMapOpts{Addr: 0x10000000, Length: page}},
		{name: "overflow", opts: MMapOpts{Addr: 0x10000000, Length: ^uint64(0) - 10, Perms: hostarch.Read}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := mm.MMap(tc.opts); !linuxerr.Equals(linuxerr.EINVAL, err) {
				t.Errorf("MMap(%+v) got: %v, expected: EINVAL", tc.opts, err)
			}
		})
	}
	if n := len(mappedPages(mm)); n != 0 {
		t.Errorf("invalid MMaps mapped %d pages", n)
	}
}

func TestMMapHugeLengthFailsPromptly(t *testing.T) {
	for _, tc := range []struct {
		name   string
		start  hostarch.Addr
		length uint64
	}{
		{name: "past user limit", start: 0x10000000, length: 1 << 48},
		{name: "ends past user limit", start: hostarch.MaxUserAddr - page, length: 2 * page},
		{name: "more than free memory", start: 0x10000000, length: 65 * page},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mm := testMemoryManager()
			done := make(chan error, 1)
			go func() {
				done <- mm.MMap(MMapOpts{Addr: tc.start, Length: tc.length, Perms: hostarch.Read})
			}()
			select {
			case err := <-done:
				if !linuxerr.Equals(linuxerr.ENOMEM, err) {
					t.Errorf("MMap(%#x, %#x) got: %v, expected: ENOMEM", tc.start, tc.length, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("MMap(%#x, %#x) did not return", tc.start, tc.length)
			}
			if n := len(mappedPages(mm)); n != 0 {
				t.Errorf("failed MMap mapped %d pages", n)
			}
			if got := mm.mf.Usage().Used; got != 0 {
				t.Errorf("failed MMap leaked %d bytes", got)
			}
		})
	}
}

func TestMMapBeyondSharedFreeFrames(t *testing.T) {
	mf := pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Pages: 4})
	mm := NewMemoryManager(mf)
	other := NewMemoryManager(mf)
	if err := other.MMap(MMapOpts{Addr: 0x10000000, Length: 3 * page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: 2 * page, Perms: hostarch.Read}); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Fatalf("MMap beyond free memory got: %v, expected: ENOMEM", err)
	}
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap of the last page failed: %v", err)
	}
	if got := mf.Available(); got != 0 {
		t.Errorf("Available() got: %d, expected: 0", got)
	}
}

func TestMUnmapHugeLength(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x10000000, 1<<48); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("MUnmap past the user limit got: %v, expected: EINVAL", err)
	}
	if !mm.IsMapped(0x10000000) {
		t.Errorf("failed MUnmap removed a mapped page")
	}
}

func TestMUnmapRequiresMappedPages(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x10000000, 2*page); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("MUnmap over an unmapped page got: %v, expected: EINVAL", err)
	}
	if !mm.IsMapped(0x10000000) {
		t.Errorf("failed MUnmap removed a mapped page")
	}
	if err := mm.MUnmap(0x10000010, page); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("misaligned MUnmap got: %v, expected: EINVAL", err)
	}
}

func TestMUnmapSplitsRegions(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: 3 * page, Perms: hostarch.ReadWrite, Hint: "anon"}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x10001000, page); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	want := []Mapping{
		{Range: hostarch.AddrRange{Start: 0x10000000, End: 0x10001000}, Perms: hostarch.ReadWrite, Hint: "anon"},
		{Range: hostarch.AddrRange{Start: 0x10002000, End: 0x10003000}, Perms: hostarch.ReadWrite, Hint: "anon"},
	}
	if diff := cmp.Diff(want, mm.Mappings()); diff != "" {
		t.Errorf("Mappings() mismatch (-want +got):\n%s", diff)
	}
}

func TestCopyPermissions(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: 2 * page, Perms: hostarch.ReadWrite}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MMap(MMapOpts{Addr: 0x20000000, Length: page, Perms: hostarch.Read}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}

	// Straddle the page boundary.
	src := []byte("hello, world")
	addr := hostarch.Addr(0x10000000 + page - 5)
	if n, err := mm.CopyOut(addr, src); err != nil || n != len(src) {
		t.Fatalf("CopyOut got: (%d, %v), expected: (%d, nil)", n, err, len(src))
	}
	dst := make([]byte, len(src))
	if _, err := mm.CopyIn(addr, dst); err != nil || !bytes.Equal(dst, src) {
		t.Fatalf("CopyIn got: (%q, %v), expected: (%q, nil)", dst, err, src)
	}

	if _, err := mm.CopyOut(0x20000000, src); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyOut to a read-only page got: %v, expected: EFAULT", err)
	}
	if err := mm.Fetch(0x10000000, dst); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("Fetch from a non-executable page got: %v, expected: EFAULT", err)
	}
	if _, err := mm.WriteKernel(0x20000000, src); err != nil {
		t.Errorf("WriteKernel to a read-only page failed: %v", err)
	}
}

func TestCopyInString(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: page, Perms: hostarch.ReadWrite}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	mm.CopyOut(0x10000000, []byte("forktest\x00"))
	if s, err := mm.CopyInString(0x10000000, 64); err != nil || s != "forktest" {
		t.Errorf("CopyInString got: (%q, %v), expected: (%q, nil)", s, err, "forktest")
	}
	if _, err := mm.CopyInString(0x10000000, 4); !linuxerr.Equals(linuxerr.ENAMETOOLONG, err) {
		t.Errorf("CopyInString past maxlen got: %v, expected: ENAMETOOLONG", err)
	}
	mm.CopyOut(0x10000000+page-1, []byte{'x'})
	if _, err := mm.CopyInString(0x10000000+page-1, 64); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyInString off the end of the mapping got: %v, expected: EFAULT", err)
	}
}

func TestForkCopiesMemory(t *testing.T) {
	mm := testMemoryManager()
	if err := mm.MMap(MMapOpts{Addr: 0x10000000, Length: page, Perms: hostarch.ReadWrite}); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	mm.CopyOut(0x10000000, []byte{1, 2, 3})

	mm2, err := mm.Fork()
	if err != nil {
		t.Fatalf("Fork failed: %v", err)
	}
	mm2.CopyOut(0x10000000, []byte{9})

	b := make([]byte, 3)
	mm.CopyIn(0x10000000, b)
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("parent memory got: %v, expected: [1 2 3]", b)
	}
	mm2.CopyIn(0x10000000, b)
	if !bytes.Equal(b, []byte{9, 2, 3}) {
		t.Errorf("child memory got: %v, expected: [9 2 3]", b)
	}
	if diff := cmp.Diff(mm.Mappings(), mm2.Mappings()); diff != "" {
		t.Errorf("child mappings mismatch (-parent +child):\n%s", diff)
	}

	mm2.Release()
	if got := mm.mf.Usage().Used; got != page {
		t.Errorf("usage after child Release got: %d, expected: %d", got, page)
	}
}

func TestSbrk(t *testing.T) {
	mm := testMemoryManager()
	const base = 0x40000
	mm.BrkSetup(base)

	if old, err := mm.Sbrk(100); err != nil || old != base {
		t.Fatalf("Sbrk(100) got: (%#x, %v), expected: (%#x, nil)", old, err, base)
	}
	if !mm.IsMapped(base) {
		t.Fatalf("heap page not mapped after growth")
	}
	if old, err := mm.Sbrk(2 * page); err != nil || old != base+100 {
		t.Fatalf("Sbrk(2 pages) got: (%#x, %v), expected: (%#x, nil)", old, err, base+100)
	}
	if !mm.IsMapped(base + 2*page) {
		t.Errorf("third heap page not mapped")
	}
	if old, err := mm.Sbrk(-2 * page); err != nil || old != base+100+2*page {
		t.Fatalf("Sbrk(-2 pages) got: (%#x, %v), expected: (%#x, nil)", old, err, base+100+2*page)
	}
	if mm.IsMapped(base+page) || !mm.IsMapped(base) {
		t.Errorf("shrinking the heap unmapped the wrong pages")
	}
	if _, err := mm.Sbrk(1 << 40); !linuxerr.Equals(linuxerr.ENOMEM, err) {
		t.Errorf("Sbrk past the user limit got: %v, expected: ENOMEM", err)
	}
	if _, err := mm.Sbrk(-200); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("Sbrk below the heap base got: %v, expected: EINVAL", err)
	}
	if got := mm.Brk(); got != base+100 {
		t.Errorf("Brk() got: %#x, expected: %#x", got, base+100)
	}
}

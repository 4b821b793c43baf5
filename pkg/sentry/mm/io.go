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
)

// withPagesLocked calls fn on each page-sized chunk of [addr, addr+length), after
// checking that the chunk's page is user-accessible with the given access
// type. It stops at the first inaccessible page and returns EFAULT along with
// the number of bytes processed.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) withPagesLocked(addr hostarch.Addr, length int, at hostarch.AccessType, fn func(page []byte, done int)) (int, error) {
	done := 0
	for done < length {
		cur := addr + hostarch.Addr(done)
		physical, opts, valid := mm.pt.Lookup(cur)
		if !valid || !opts.User || !opts.AccessType.SupersetOf(at) {
			return done, linuxerr.EFAULT
		}
		page := mm.mf.Page(physical)
		off := int(cur.PageOffset())
		n := min(hostarch.PageSize-off, length-done)
		fn(page[off:off+n], done)
		done += n
	}
	return done, nil
}

// CopyOut copies src to the user range starting at addr, which must be
// mapped writable. It returns the number of bytes copied.
func (mm *MemoryManager) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.withPagesLocked(addr, len(src), hostarch.Write, func(page []byte, done int) {
		copy(page, src[done:])
	})
}

// CopyIn copies len(dst) bytes from the user range starting at addr, which
// must be mapped readable. It returns the number of bytes copied.
func (mm *MemoryManager) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.withPagesLocked(addr, len(dst), hostarch.Read, func(page []byte, done int) {
		copy(dst[done:], page)
	})
}

// CopyInString copies a NUL-terminated string of at most maxlen bytes from
// the user address addr. It returns ENAMETOOLONG if no NUL byte is found
// within maxlen bytes.
func (mm *MemoryManager) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	buf := make([]byte, 0, 64)
	for len(buf) < maxlen {
		cur := addr + hostarch.Addr(len(buf))
		physical, opts, valid := mm.pt.Lookup(cur)
		if !valid || !opts.User || !opts.AccessType.Read {
			return "", linuxerr.EFAULT
		}
		page := mm.mf.Page(physical)
		for off := int(cur.PageOffset()); off < hostarch.PageSize && len(buf) < maxlen; off++ {
			if page[off] == 0 {
				return string(buf), nil
			}
			buf = append(buf, page[off])
		}
	}
	return "", linuxerr.ENAMETOOLONG
}

// Fetch implements platform.AddressSpace.Fetch.
func (mm *MemoryManager) Fetch(addr hostarch.Addr, dst []byte) error {
	return mm.access(addr, dst, hostarch.Execute, false)
}

// Load implements platform.AddressSpace.Load.
func (mm *MemoryManager) Load(addr hostarch.Addr, dst []byte) error {
	return mm.access(addr, dst, hostarch.Read, false)
}

// Store implements platform.AddressSpace.Store.
func (mm *MemoryManager) Store(addr hostarch.Addr, src []byte) error {
	return mm.access(addr, src, hostarch.Write, true)
}

func (mm *MemoryManager) access(addr hostarch.Addr, b []byte, at hostarch.AccessType, write bool) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, err := mm.withPagesLocked(addr, len(b), at, func(page []byte, done int) {
		if write {
			copy(page, b[done:])
		} else {
			copy(b[done:], page)
		}
	})
	return err
}

// WriteKernel copies src into the user range starting at addr regardless of
// the range's access permissions. The loader uses it to populate read-only
// and executable segments.
func (mm *MemoryManager) WriteKernel(addr hostarch.Addr, src []byte) (int, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.withPagesLocked(addr, len(src), hostarch.NoAccess, func(page []byte, done int) {
		copy(page, src[done:])
	})
}

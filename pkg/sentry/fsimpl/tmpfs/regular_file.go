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

package tmpfs

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/refs"
	"gvisor.dev/edukernel/pkg/sentry/fs"
	"gvisor.dev/edukernel/pkg/sync"
)

// regularFile is an open inode.
type regularFile struct {
	refs.AtomicRefCount

	fsys     *Filesystem
	inode    *inode
	readable bool
	writable bool

	// offMu protects off.
	offMu sync.Mutex
	off   int
}

var _ fs.File = (*regularFile)(nil)

// Readable implements fs.File.Readable.
func (f *regularFile) Readable() bool { return f.readable }

// Writable implements fs.File.Writable.
func (f *regularFile) Writable() bool { return f.writable }

// Read implements fs.File.Read.
func (f *regularFile) Read(dst []byte) (int, error) {
	if !f.readable {
		return 0, linuxerr.EBADF
	}
	f.offMu.Lock()
	defer f.offMu.Unlock()
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	if f.off >= len(f.inode.data) {
		return 0, nil
	}
	n := copy(dst, f.inode.data[f.off:])
	f.off += n
	return n, nil
}

// Write implements fs.File.Write.
func (f *regularFile) Write(src []byte) (int, error) {
	if !f.writable {
		return 0, linuxerr.EBADF
	}
	f.offMu.Lock()
	defer f.offMu.Unlock()
	f.inode.mu.Lock()
	defer f.inode.mu.Unlock()
	if end := f.off + len(src); end > len(f.inode.data) {
		if end > cap(f.inode.data) {
			data := make([]byte, end, 2*end)
			copy(data, f.inode.data)
			f.inode.data = data
		} else {
			f.inode.data = f.inode.data[:end]
		}
	}
	copy(f.inode.data[f.off:], src)
	f.off += len(src)
	return len(src), nil
}

// Stat implements fs.File.Stat.
func (f *regularFile) Stat() fs.Stat {
	f.fsys.mu.Lock()
	defer f.fsys.mu.Unlock()
	return fs.Stat{
		Ino:   f.inode.ino,
		Mode:  edu.S_IFREG,
		Nlink: f.inode.nlink,
	}
}

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

package kernel

import (
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/fs"
	"gvisor.dev/edukernel/pkg/sync"
)

// maxFDs bounds the size of an FDTable.
const maxFDs = 1024

// FDTable is used to manage File references.
//
// Each entry holds one reference on its File.
type FDTable struct {
	// mu protects files.
	mu    sync.Mutex
	files []fs.File
}

// NewFDTable returns an empty table.
func NewFDTable() *FDTable {
	return &FDTable{}
}

// NewFD installs file at the lowest free descriptor and returns it. The
// table takes ownership of the caller's reference.
func (f *FDTable) NewFD(file fs.File) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fd, cur := range f.files {
		if cur == nil {
			f.files[fd] = file
			return fd, nil
		}
	}
	if len(f.files) >= maxFDs {
		return -1, linuxerr.EMFILE
	}
	f.files = append(f.files, file)
	return len(f.files) - 1, nil
}

// Get returns the file at fd with an extra reference, which the caller must
// drop with DecRef. It returns EBADF if fd is not open.
func (f *FDTable) Get(fd int) (fs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fd < 0 || fd >= len(f.files) || f.files[fd] == nil {
		return nil, linuxerr.EBADF
	}
	file := f.files[fd]
	file.IncRef()
	return file, nil
}

// Remove closes fd. It returns EBADF if fd is not open.
func (f *FDTable) Remove(fd int) error {
	f.mu.Lock()
	if fd < 0 || fd >= len(f.files) || f.files[fd] == nil {
		f.mu.Unlock()
		return linuxerr.EBADF
	}
	file := f.files[fd]
	f.files[fd] = nil
	f.mu.Unlock()

	file.DecRef()
	return nil
}

// Fork returns a table sharing every open file with f.
func (f *FDTable) Fork() *FDTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := &FDTable{files: make([]fs.File, len(f.files))}
	for fd, file := range f.files {
		if file != nil {
			file.IncRef()
			clone.files[fd] = file
		}
	}
	return clone
}

// RemoveAll closes every descriptor.
func (f *FDTable) RemoveAll() {
	f.mu.Lock()
	files := f.files
	f.files = nil
	f.mu.Unlock()

	for _, file := range files {
		if file != nil {
			file.DecRef()
		}
	}
}

// Len returns the number of open descriptors.
func (f *FDTable) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, file := range f.files {
		if file != nil {
			n++
		}
	}
	return n
}

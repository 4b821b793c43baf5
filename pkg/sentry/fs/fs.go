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

// Package fs defines the interfaces between the kernel and file
// implementations.
//
// A Filesystem resolves paths through its hard-link table and returns open
// Files. The kernel's fd table holds one reference on each open File; fork
// shares Files between parent and child by taking additional references.
package fs

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/refs"
)

// Stat describes a file.
type Stat struct {
	// Ino is the inode number.
	Ino uint64

	// Mode is the file type, one of edu.S_IF*.
	Mode uint32

	// Nlink is the number of names linked to the inode.
	Nlink uint32
}

// File is an open file.
type File interface {
	refs.RefCounter

	// Readable returns true if the file was opened for reading.
	Readable() bool

	// Writable returns true if the file was opened for writing.
	Writable() bool

	// Read reads into dst from the file's offset, advancing it. It returns
	// 0 at end of file.
	Read(dst []byte) (int, error)

	// Write writes src at the file's offset, advancing it.
	Write(src []byte) (int, error)

	// Stat describes the file.
	Stat() Stat
}

// Filesystem is a store of named files.
type Filesystem interface {
	// Open opens the file linked at path.
	//
	// If flags contains edu.O_CREATE, a missing file is created and an
	// existing one truncated. Otherwise Open returns ENOENT if path is not
	// linked. The access mode in flags selects Readable and Writable.
	Open(path string, flags uint32) (File, error)

	// Link links newpath to the inode linked at oldpath. It returns EINVAL
	// if the names are equal, ENOENT if oldpath is not linked and EEXIST if
	// newpath is.
	Link(oldpath, newpath string) error

	// Unlink removes the name path. It returns ENOENT if path is not linked.
	Unlink(path string) error

	// ReadFile returns the contents of the file linked at path.
	ReadFile(path string) ([]byte, error)
}

// AccessMode returns whether flags open a file for reading and for writing.
func AccessMode(flags uint32) (readable, writable bool) {
	switch flags & edu.O_ACCMODE {
	case edu.O_RDONLY:
		return true, false
	case edu.O_WRONLY:
		return false, true
	default:
		return true, true
	}
}

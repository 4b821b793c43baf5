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

package edu

// Flags for open.
const (
	O_RDONLY = 0
	O_WRONLY = 1 << 0
	O_RDWR   = 1 << 1
	O_CREATE = 1 << 9
	O_TRUNC  = 1 << 10

	O_ACCMODE = O_WRONLY | O_RDWR
)

// Standard file descriptors.
const (
	STDIN  = 0
	STDOUT = 1
	STDERR = 2
)

// File mode bits reported in Stat.Mode.
const (
	S_IFCHR = 0o020000
	S_IFDIR = 0o040000
	S_IFREG = 0o100000
)

// Stat is the structure written by fstat.
type Stat struct {
	// Dev is the device holding the file. Always 0.
	Dev uint64

	// Ino is the inode number.
	Ino uint64

	// Mode is the file type.
	Mode uint32

	// Nlink is the number of hard links.
	Nlink uint32

	_ [7]uint64
}

// SizeofStat is the size of a Stat.
const SizeofStat = 80

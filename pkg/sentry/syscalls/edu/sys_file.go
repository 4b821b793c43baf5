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

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
)

// maxRWCount bounds the size of a single read or write.
const maxRWCount = 1 << 20

// Open implements open(path, flags).
func Open(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	flags := args[1].Uint()

	path, err := t.CopyInString(addr)
	if err != nil {
		return 0, nil, err
	}
	file, err := t.Kernel().Filesystem().Open(path, flags)
	if err != nil {
		return 0, nil, err
	}
	fd, err := t.FDTable().NewFD(file)
	if err != nil {
		file.DecRef()
		return 0, nil, err
	}
	return uintptr(fd), nil, nil
}

// Close implements close(fd).
func Close(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	return 0, nil, t.FDTable().Remove(int(fd))
}

// Read implements read(fd, buf, len).
func Read(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file, err := t.FDTable().Get(int(fd))
	if err != nil {
		return 0, nil, err
	}
	defer file.DecRef()

	// Check that the file is readable.
	if !file.Readable() {
		return 0, nil, linuxerr.EBADF
	}

	buf := make([]byte, min(size, maxRWCount))
	n, err := file.Read(buf)
	if err != nil {
		return 0, nil, err
	}
	if _, err := t.CopyOutBytes(addr, buf[:n]); err != nil {
		return 0, nil, err
	}
	return uintptr(n), nil, nil
}

// Write implements write(fd, buf, len).
func Write(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file, err := t.FDTable().Get(int(fd))
	if err != nil {
		return 0, nil, err
	}
	defer file.DecRef()

	// Check that the file is writable.
	if !file.Writable() {
		return 0, nil, linuxerr.EBADF
	}

	buf := make([]byte, min(size, maxRWCount))
	if _, err := t.CopyInBytes(addr, buf); err != nil {
		return 0, nil, err
	}
	n, err := file.Write(buf)
	return uintptr(n), nil, err
}

// Fstat implements fstat(fd, stat).
func Fstat(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()

	file, err := t.FDTable().Get(int(fd))
	if err != nil {
		return 0, nil, err
	}
	defer file.DecRef()

	st := file.Stat()
	return 0, nil, t.CopyOutObject(addr, &edu.Stat{
		Ino:   st.Ino,
		Mode:  st.Mode,
		Nlink: st.Nlink,
	})
}

// Linkat implements linkat(oldpath, newpath).
func Linkat(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	oldpath, err := t.CopyInString(args[0].Pointer())
	if err != nil {
		return 0, nil, err
	}
	newpath, err := t.CopyInString(args[1].Pointer())
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, t.Kernel().Filesystem().Link(oldpath, newpath)
}

// Unlinkat implements unlinkat(path).
func Unlinkat(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	path, err := t.CopyInString(args[0].Pointer())
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, t.Kernel().Filesystem().Unlink(path)
}

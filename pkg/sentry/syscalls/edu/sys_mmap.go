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
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/mm"
)

// Protection bits of mmap's port argument.
const (
	protRead  = 1 << 0
	protWrite = 1 << 1
	protExec  = 1 << 2
	protMask  = protRead | protWrite | protExec
)

// portToAccessType converts mmap's port argument. It returns false if port
// grants nothing or has bits outside protMask.
func portToAccessType(port uint64) (hostarch.AccessType, bool) {
	if port&^protMask != 0 || port&protMask == 0 {
		return hostarch.NoAccess, false
	}
	return hostarch.AccessType{
		Read:    port&protRead != 0,
		Write:   port&protWrite != 0,
		Execute: port&protExec != 0,
	}, true
}

// Mmap implements mmap(start, len, port).
func Mmap(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()
	perms, ok := portToAccessType(args[2].Uint64())
	if !ok {
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, t.MemoryManager().MMap(mm.MMapOpts{
		Addr:   addr,
		Length: length,
		Perms:  perms,
		Hint:   "[anon]",
	})
}

// Munmap implements munmap(start, len).
func Munmap(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.MemoryManager().MUnmap(args[0].Pointer(), args[1].Uint64())
}

// Sbrk implements sbrk(delta).
func Sbrk(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	old, err := t.MemoryManager().Sbrk(int64(args[0].Int()))
	if err != nil {
		return 0, nil, err
	}
	return uintptr(old), nil, nil
}

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
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
)

// ThreadCreate implements thread_create(entry, arg).
func ThreadCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid, err := t.ThreadCreate(args[0].Uint64(), args[1].Uint64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(tid), nil, nil
}

// Gettid implements gettid().
func Gettid(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.ThreadID()), nil, nil
}

// Waittid implements waittid(tid).
func Waittid(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	code, err := t.WaitTID(kernel.ThreadID(args[0].Int()))
	if err != nil {
		return 0, nil, err
	}
	// Sign-extend so that negative exit codes read back as such.
	return uintptr(int64(code)), nil, nil
}

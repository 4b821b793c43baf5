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

// Exit implements exit(code).
func Exit(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Exit(args[0].Int())
	return 0, kernel.CtrlDoExit, nil
}

// Getpid implements getpid().
func Getpid(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.PID()), nil, nil
}

// Fork implements fork(). The child sees 0.
func Fork(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	child, err := t.Fork()
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.PID()), nil, nil
}

// Exec implements exec(path).
func Exec(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	path, err := t.CopyInString(args[0].Pointer())
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, t.Exec(path)
}

// Spawn implements spawn(path).
func Spawn(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	path, err := t.CopyInString(args[0].Pointer())
	if err != nil {
		return 0, nil, err
	}
	child, err := t.Kernel().Spawn(t, path)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.PID()), nil, nil
}

// Waitpid implements waitpid(pid, status).
func Waitpid(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid, err := t.WaitPID(args[0].Int(), args[1].Pointer())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(pid), nil, nil
}

// TaskInfo implements task_info(info).
func TaskInfo(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	info := t.TaskInfo()
	return 0, nil, t.CopyOutObject(args[0].Pointer(), &info)
}

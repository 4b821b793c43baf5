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
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/kernel/locks"
)

// EnableDeadlockDetect implements enable_deadlock_detect(enabled).
func EnableDeadlockDetect(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	switch args[0].Uint64() {
	case 0:
		t.EnableDeadlockDetect(false)
	case 1:
		t.EnableDeadlockDetect(true)
	default:
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, nil
}

// MutexCreate implements mutex_create(blocking).
func MutexCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	kind := locks.SpinMutex
	if args[0].Uint64() != 0 {
		kind = locks.BlockingMutex
	}
	return uintptr(t.MutexCreate(kind)), nil, nil
}

// MutexLock implements mutex_lock(id).
func MutexLock(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.MutexLock(int(args[0].Int()))
}

// MutexUnlock implements mutex_unlock(id).
func MutexUnlock(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.MutexUnlock(int(args[0].Int()))
}

// MutexDestroy implements mutex_destroy(id).
func MutexDestroy(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.MutexDestroy(int(args[0].Int()))
}

// SemaphoreCreate implements semaphore_create(count).
func SemaphoreCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	id, err := t.SemaphoreCreate(args[0].Int64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(id), nil, nil
}

// SemaphoreUp implements semaphore_up(id).
func SemaphoreUp(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.SemaphoreUp(int(args[0].Int()))
}

// SemaphoreDown implements semaphore_down(id).
func SemaphoreDown(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.SemaphoreDown(int(args[0].Int()))
}

// SemaphoreDestroy implements semaphore_destroy(id).
func SemaphoreDestroy(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.SemaphoreDestroy(int(args[0].Int()))
}

// CondvarCreate implements condvar_create().
func CondvarCreate(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return uintptr(t.CondvarCreate()), nil, nil
}

// CondvarSignal implements condvar_signal(id).
func CondvarSignal(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.CondvarSignal(int(args[0].Int()))
}

// CondvarWait implements condvar_wait(id, mutex).
func CondvarWait(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.CondvarWait(int(args[0].Int()), int(args[1].Int()))
}

// CondvarDestroy implements condvar_destroy(id).
func CondvarDestroy(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.CondvarDestroy(int(args[0].Int()))
}

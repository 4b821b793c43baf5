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

// Package edu provides the syscall table of the teaching kernel ABI.
package edu

import (
	"time"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/syscalls"
)

// Syscall return values as signed register contents.
var (
	returnFailure      = int64(edu.ReturnFailure)
	returnStillRunning = int64(edu.ReturnStillRunning)
	returnDeadlock     = int64(edu.ReturnDeadlock)
)

// ReturnValue converts a syscall result to the value user code sees: rval on
// success, -0xDEAD when the deadlock check refused to block, -2 when a child
// or thread is still running, and -1 for every other failure.
func ReturnValue(rval uintptr, err error) uintptr {
	switch {
	case err == nil:
		return rval
	case linuxerr.Equals(linuxerr.EDEADLK, err):
		return uintptr(returnDeadlock)
	case linuxerr.Equals(linuxerr.EAGAIN, err):
		return uintptr(returnStillRunning)
	default:
		return uintptr(returnFailure)
	}
}

// unimplementedLogger limits reports of unknown syscalls.
var unimplementedLogger = log.BasicRateLimitedLogger(time.Second)

// Missing handles syscall numbers that have no implementation.
func Missing(t *kernel.Task, sysno uintptr, _ arch.SyscallArguments) (uintptr, error) {
	unimplementedLogger.Warningf("pid[%d] tid[%d] unsupported syscall %d", t.PID(), t.ThreadID(), sysno)
	return 0, linuxerr.ENOSYS
}

// Table is the syscall table of the teaching kernel ABI.
var Table = &kernel.SyscallTable{
	Table: map[uintptr]kernel.Syscall{
		edu.SYS_UNLINKAT:               syscalls.Supported("unlinkat", Unlinkat),
		edu.SYS_LINKAT:                 syscalls.Supported("linkat", Linkat),
		edu.SYS_OPEN:                   syscalls.Supported("open", Open),
		edu.SYS_CLOSE:                  syscalls.Supported("close", Close),
		edu.SYS_READ:                   syscalls.Supported("read", Read),
		edu.SYS_WRITE:                  syscalls.Supported("write", Write),
		edu.SYS_FSTAT:                  syscalls.Supported("fstat", Fstat),
		edu.SYS_EXIT:                   syscalls.Supported("exit", Exit),
		edu.SYS_SLEEP:                  syscalls.Supported("sleep", Sleep),
		edu.SYS_YIELD:                  syscalls.Supported("yield", Yield),
		edu.SYS_SET_PRIORITY:           syscalls.Supported("set_priority", SetPriority),
		edu.SYS_GET_TIME:               syscalls.Supported("get_time", GetTime),
		edu.SYS_GETPID:                 syscalls.Supported("getpid", Getpid),
		edu.SYS_SBRK:                   syscalls.Supported("sbrk", Sbrk),
		edu.SYS_MUNMAP:                 syscalls.Supported("munmap", Munmap),
		edu.SYS_FORK:                   syscalls.Supported("fork", Fork),
		edu.SYS_EXEC:                   syscalls.Supported("exec", Exec),
		edu.SYS_MMAP:                   syscalls.Supported("mmap", Mmap),
		edu.SYS_WAITPID:                syscalls.Supported("waitpid", Waitpid),
		edu.SYS_SPAWN:                  syscalls.Supported("spawn", Spawn),
		edu.SYS_TASK_INFO:              syscalls.Supported("task_info", TaskInfo),
		edu.SYS_ENABLE_DEADLOCK_DETECT: syscalls.Supported("enable_deadlock_detect", EnableDeadlockDetect),
		edu.SYS_THREAD_CREATE:          syscalls.Supported("thread_create", ThreadCreate),
		edu.SYS_GETTID:                 syscalls.Supported("gettid", Gettid),
		edu.SYS_WAITTID:                syscalls.Supported("waittid", Waittid),
		edu.SYS_MUTEX_CREATE:           syscalls.Supported("mutex_create", MutexCreate),
		edu.SYS_MUTEX_LOCK:             syscalls.Supported("mutex_lock", MutexLock),
		edu.SYS_MUTEX_UNLOCK:           syscalls.Supported("mutex_unlock", MutexUnlock),
		edu.SYS_MUTEX_DESTROY:          syscalls.Supported("mutex_destroy", MutexDestroy),
		edu.SYS_SEMAPHORE_CREATE:       syscalls.Supported("semaphore_create", SemaphoreCreate),
		edu.SYS_SEMAPHORE_UP:           syscalls.Supported("semaphore_up", SemaphoreUp),
		edu.SYS_SEMAPHORE_DOWN:         syscalls.Supported("semaphore_down", SemaphoreDown),
		edu.SYS_SEMAPHORE_DESTROY:      syscalls.Supported("semaphore_destroy", SemaphoreDestroy),
		edu.SYS_CONDVAR_CREATE:         syscalls.Supported("condvar_create", CondvarCreate),
		edu.SYS_CONDVAR_SIGNAL:         syscalls.Supported("condvar_signal", CondvarSignal),
		edu.SYS_CONDVAR_WAIT:           syscalls.Supported("condvar_wait", CondvarWait),
		edu.SYS_CONDVAR_DESTROY:        syscalls.Supported("condvar_destroy", CondvarDestroy),
	},
	Missing:     Missing,
	ReturnValue: ReturnValue,
}

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
	"time"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
)

// Yield implements yield().
func Yield(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Yield()
	return 0, nil, nil
}

// SetPriority implements set_priority(prio).
func SetPriority(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	prio, err := t.SetPriority(args[0].Int64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(prio), nil, nil
}

// Sleep implements sleep(ms).
func Sleep(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	ms := args[0].Uint64()
	if ms > uint64(time.Duration(1<<63-1)/time.Millisecond) {
		return 0, nil, linuxerr.EINVAL
	}
	if !t.Sleep(time.Duration(ms) * time.Millisecond) {
		return 0, nil, linuxerr.EINTR
	}
	return 0, nil, nil
}

// GetTime implements get_time(tv).
func GetTime(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tv := t.Time()
	return 0, nil, t.CopyOutObject(args[0].Pointer(), &tv)
}

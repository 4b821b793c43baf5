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

// Task status values reported in TaskInfo.Status.
const (
	TaskUnInit  = 0
	TaskReady   = 1
	TaskRunning = 2
	TaskExited  = 3
)

// TaskInfo is the structure written by task_info.
type TaskInfo struct {
	// Status is the calling task's status. Always TaskRunning.
	Status uint32

	// SyscallTimes counts the syscalls issued by the calling process,
	// indexed by syscall number.
	SyscallTimes [MaxSyscallNum]uint32

	_ uint32

	// Time is the milliseconds elapsed since the process was first
	// scheduled.
	Time uint64
}

// SizeofTaskInfo is the size of a TaskInfo.
const SizeofTaskInfo = 4 + 4*MaxSyscallNum + 4 + 8

// TimeVal is the structure written by get_time.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// SizeofTimeVal is the size of a TimeVal.
const SizeofTimeVal = 16

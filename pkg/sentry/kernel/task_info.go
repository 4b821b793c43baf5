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

package kernel

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
)

// TaskInfo reports the status of t's process: its syscall counts and the
// milliseconds elapsed since it was created.
func (t *Task) TaskInfo() edu.TaskInfo {
	p := t.p
	info := edu.TaskInfo{Status: edu.TaskRunning}
	p.mu.Lock()
	info.SyscallTimes = p.syscallCounts
	p.mu.Unlock()
	info.Time = uint64(t.k.clock.Now().Sub(p.startTime).Milliseconds())
	return info
}

// Time returns the current time as seen by user code.
func (t *Task) Time() edu.TimeVal {
	now := t.k.clock.Now()
	return edu.TimeVal{
		Sec:  uint64(now.Unix()),
		Usec: uint64(now.Nanosecond() / 1000),
	}
}

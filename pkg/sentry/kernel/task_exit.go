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

// Exit records code as the task's exit status. If the task is the main
// thread, the whole process exits with code and every other task is killed.
// The caller must then switch to the exit state, which the exit syscall does
// by returning CtrlDoExit.
func (t *Task) Exit(code int32) {
	t.mu.Lock()
	t.exitCode = code
	t.exitSet = true
	t.mu.Unlock()
	if t.tid == 0 {
		t.p.exitGroup(code, t)
	}
}

// setExitCode records code unless the exit syscall has already set one.
func (t *Task) setExitCode(code int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.exitSet {
		t.exitCode = code
		t.exitSet = true
	}
}

// The runExit state releases the task's resources. The last task to finish
// releases the process's address space and files and makes the process a
// zombie, after every task has dropped its reference on it.
type runExit struct{}

func (*runExit) execute(t *Task) taskRunState {
	p := t.p
	t.setExitCode(edu.ExitKilled)

	p.mu.Lock()
	p.liveTasks--
	if p.liveTasks == 0 && !p.exiting {
		// The main thread always exits through exitGroup, so the only
		// way here is a kill.
		p.exiting = true
		p.exitCode = edu.ExitKilled
	}
	m := p.mm
	p.mu.Unlock()

	if t.tid != 0 && m != nil {
		// Give back this thread's stack.
		if err := m.MUnmap(t.stack.Start, t.stack.Length()); err != nil {
			t.Debugf("unmapping stack %v: %v", t.stack, err)
		}
	}

	// The thread slot may be freed and reused once exited is visible, so
	// this must follow the stack unmap.
	t.mu.Lock()
	t.exited = true
	t.mu.Unlock()

	t.k.sched.Exit(t)
	p.DecRef()

	p.mu.Lock()
	p.runningTasks--
	last := p.runningTasks == 0
	var fdTable *FDTable
	if last {
		m, fdTable = p.mm, p.fdTable
		p.mm = nil
		p.fdTable = nil
	}
	p.mu.Unlock()
	t.Debugf("exited, last=%t", last)

	if last {
		m.Release()
		fdTable.RemoveAll()
		p.exitNotify()
	}
	return nil
}

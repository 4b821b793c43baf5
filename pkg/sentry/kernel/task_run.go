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
	"fmt"
	"time"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/platform"
)

// A taskRunState is one step of a task goroutine. There are two: runApp
// executes user code on the platform and services the syscalls and faults
// it stops on, and runExit tears the task down. runApp is entered when the
// task starts and returns runExit after an exit syscall, a fatal fault or a
// kill. runExit is terminal.
type taskRunState interface {
	// execute runs the state on t and returns the next one, or nil once
	// the task goroutine should return.
	execute(*Task) taskRunState
}

// faultLogger limits the rate of user fault reports.
var faultLogger = log.BasicRateLimitedLogger(100 * time.Millisecond)

// run runs the task goroutine.
func (t *Task) run() {
	defer t.k.tasks.Done()

	// Wait for the first CPU grant.
	<-t.runCh

	var state taskRunState = (*runApp)(nil)
	for state != nil {
		state = state.execute(t)
	}
}

// The runApp state executes user code until it traps.
type runApp struct{}

func (*runApp) execute(t *Task) taskRunState {
	for {
		if t.Killed() {
			return (*runExit)(nil)
		}
		m := t.MemoryManager()
		if m == nil {
			return (*runExit)(nil)
		}

		fault, err := t.pctx.Switch(m, &t.ctx)
		switch err {
		case nil:
			return t.doSyscall()

		case platform.ErrContextPreempted:
			if !t.Yield() {
				return (*runExit)(nil)
			}

		case platform.ErrContextInterrupt:
			// Loop around to check for a kill.

		case platform.ErrContextFault:
			faultLogger.Warningf("pid[%d] tid[%d] %v at pc %#x, killing process", t.p.pid, t.tid, fault, t.ctx.IP())
			t.setExitCode(edu.ExitFault)
			t.p.exitGroup(edu.ExitFault, t)
			return (*runExit)(nil)

		case platform.ErrContextIllegalInstruction:
			faultLogger.Warningf("pid[%d] tid[%d] illegal instruction at %#x, killing process", t.p.pid, t.tid, fault.Addr)
			t.setExitCode(edu.ExitIllegalInstruction)
			t.p.exitGroup(edu.ExitIllegalInstruction, t)
			return (*runExit)(nil)

		default:
			panic(fmt.Sprintf("unknown platform error: %v", err))
		}
	}
}

// doSyscall invokes the syscall selected by the task's registers and returns
// the next run state.
func (t *Task) doSyscall() taskRunState {
	sysno := t.ctx.SyscallNo()
	args := t.ctx.SyscallArgs()

	if sysno < edu.MaxSyscallNum {
		t.p.mu.Lock()
		t.p.syscallCounts[sysno]++
		t.p.mu.Unlock()
	}

	s := t.k.syscalls
	var (
		rval uintptr
		ctrl *SyscallControl
		err  error
	)
	if fn := s.Lookup(sysno); fn != nil {
		rval, ctrl, err = fn(t, sysno, args)
	} else if s.Missing != nil {
		rval, err = s.Missing(t, sysno, args)
	} else {
		err = linuxerr.ENOSYS
	}
	if log.IsLogging(log.Debug) {
		t.Debugf("%s(%#x, %#x, %#x) = %#x, %v", s.LookupName(sysno), args[0].Value, args[1].Value, args[2].Value, rval, err)
	}

	if ctrl == nil || !ctrl.ignoreReturn {
		t.ctx.SetReturn(s.returnValue(rval, err))
	}
	if ctrl != nil && ctrl.next != nil {
		return ctrl.next
	}
	if t.Killed() {
		return (*runExit)(nil)
	}
	return (*runApp)(nil)
}

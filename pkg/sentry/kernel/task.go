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

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/kernel/locks"
	"gvisor.dev/edukernel/pkg/sentry/mm"
	"gvisor.dev/edukernel/pkg/sentry/platform"
	"gvisor.dev/edukernel/pkg/sync"
)

// ThreadID is a task's index within its process.
type ThreadID int32

// Task represents a thread of execution in a process.
//
// Each task runs on its own task goroutine, which executes user code only
// while the scheduler has granted it a CPU.
type Task struct {
	// k and p are immutable.
	k *Kernel
	p *Process

	// tid is assigned when the task is added to p and is immutable
	// afterward.
	tid int

	// sched is protected by Scheduler.mu.
	sched taskSchedState

	// runCh carries the CPU grant from the scheduler to the task goroutine.
	runCh chan struct{}

	// pctx executes the task's user code. pctx is immutable.
	pctx platform.Context

	// ctx is the saved user register state. It is owned by the task
	// goroutine.
	ctx arch.Context

	// stack is the task's user stack. It is owned by the task goroutine.
	stack hostarch.AddrRange

	// logger prefixes messages with the task's identity. It is set before
	// the task starts and is immutable afterward.
	logger log.Logger

	// The allocation and need vectors are indexed by resource id and are
	// protected by Process.mu.
	mutexAllocation []int64
	mutexNeed       []int64
	semAllocation   []int64
	semNeed         []int64

	// mu protects the fields below.
	mu sync.Mutex

	// exited is set once the task goroutine has stopped running user code.
	exited bool

	// exitCode is the thread's exit status, valid once exited is set.
	exitCode int32

	// exitSet is true if exitCode was set by the exit syscall.
	exitSet bool
}

var _ locks.Waiter = (*Task)(nil)

// newTask returns an unstarted task in p. The caller adds it to p.
func (k *Kernel) newTask(p *Process, stack hostarch.AddrRange, prio int64) *Task {
	t := &Task{
		k:      k,
		p:      p,
		runCh:  make(chan struct{}, 1),
		pctx:   k.NewContext(),
		stack:  stack,
		logger: log.Log(),
	}
	k.sched.init(t, prio)
	return t
}

// updateLogPrefix sets the logger prefix from the task's ids.
func (t *Task) updateLogPrefix() {
	t.logger = log.PrefixLogger(log.Log(), fmt.Sprintf("pid[%d] tid[%d] ", t.p.pid, t.tid))
}

// start launches the task goroutine and makes the task runnable.
//
// Preconditions: The caller holds Kernel.mu or Process.mu, so that the task
// becomes visible to Kill and exitGroup only once it has started.
func (t *Task) start() {
	t.k.tasks.Add(1)
	go t.run() // S/R-SAFE: tasks are not saved.
	t.k.sched.Start(t)
}

// Kernel returns the task's kernel.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Process returns the task's process.
func (t *Task) Process() *Process {
	return t.p
}

// ThreadID returns the task's thread id.
func (t *Task) ThreadID() ThreadID {
	return ThreadID(t.tid)
}

// PID returns the id of the task's process.
func (t *Task) PID() int32 {
	return t.p.pid
}

// Arch returns the task's saved register state. It may only be used by the
// task goroutine.
func (t *Task) Arch() *arch.Context {
	return &t.ctx
}

// Stack returns the task's user stack.
func (t *Task) Stack() hostarch.AddrRange {
	return t.stack
}

// MemoryManager returns the task's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.p.MemoryManager()
}

// FDTable returns the task's file descriptor table.
func (t *Task) FDTable() *FDTable {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.fdTable
}

// Yield implements locks.Waiter.Yield.
func (t *Task) Yield() bool {
	return t.k.sched.Yield(t)
}

// Block implements locks.Waiter.Block.
func (t *Task) Block() bool {
	return t.k.sched.Block(t)
}

// Wake implements locks.Waiter.Wake.
func (t *Task) Wake() bool {
	return t.k.sched.Wake(t)
}

// Killed returns true if the task has been killed.
func (t *Task) Killed() bool {
	return t.k.sched.Killed(t)
}

// Exited returns the thread's exit code and whether it has exited.
func (t *Task) Exited() (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode, t.exited
}

// SetPriority sets the task's scheduling priority and returns it. prio must
// be at least MinPriority.
func (t *Task) SetPriority(prio int64) (int64, error) {
	if !t.k.sched.SetPriority(t, prio) {
		return 0, linuxerr.EINVAL
	}
	return prio, nil
}

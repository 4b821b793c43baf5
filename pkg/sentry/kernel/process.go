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
	"time"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/refs"
	"gvisor.dev/edukernel/pkg/sentry/fsimpl/host"
	"gvisor.dev/edukernel/pkg/sentry/kernel/locks"
	"gvisor.dev/edukernel/pkg/sentry/loader"
	"gvisor.dev/edukernel/pkg/sentry/mm"
	"gvisor.dev/edukernel/pkg/sync"
)

// Process is a group of tasks sharing an address space, open files and
// synchronization resources.
//
// The reference count of a Process is held by its parent's child set (or by
// the Kernel, for init) and by each of its live tasks. Once every task has
// exited and the process is a zombie, exactly the parent's reference
// remains; reaping drops it.
type Process struct {
	refs.AtomicRefCount

	// k is the owning Kernel. k is immutable.
	k *Kernel

	// pid is assigned at registration and is immutable afterward.
	pid int32

	// parent, children and zombie are protected by Kernel.mu.
	parent   *Process
	children map[*Process]struct{}
	zombie   bool

	// mu protects the fields below, and the allocation and need vectors of
	// every task in tasks.
	mu sync.Mutex

	// tasks holds the process's tasks indexed by thread id. An exited task
	// keeps its slot until it is waited for.
	tasks ResourceTable[*Task]

	// liveTasks is the number of tasks that have not exited.
	liveTasks int

	// runningTasks is the number of tasks that still hold a reference on
	// the process. It reaches zero only after liveTasks does.
	runningTasks int

	// mm is the address space. It is nil once the last task has exited.
	mm *mm.MemoryManager

	// fdTable is nil once the last task has exited.
	fdTable *FDTable

	mutexes    ResourceTable[*locks.Mutex]
	semaphores ResourceTable[*locks.Semaphore]
	condvars   ResourceTable[*locks.Condvar]

	// deadlockDetect enables the safety check before blocking on a mutex
	// or semaphore.
	deadlockDetect bool

	// exiting is set when the process begins to exit. exitCode is then
	// the process's exit status.
	exiting  bool
	exitCode int32

	// syscallCounts counts invocations per syscall number below
	// edu.MaxSyscallNum.
	syscallCounts [edu.MaxSyscallNum]uint32

	// startTime is the time the process was created. It is immutable.
	startTime time.Time
}

func (k *Kernel) newProcess(m *mm.MemoryManager, fdTable *FDTable) *Process {
	return &Process{
		k:              k,
		children:       make(map[*Process]struct{}),
		mm:             m,
		fdTable:        fdTable,
		deadlockDetect: k.config.DeadlockDetect,
		startTime:      k.clock.Now(),
	}
}

// newStdioFDTable returns a table with the console installed at fds 0-2.
func (k *Kernel) newStdioFDTable() *FDTable {
	t := NewFDTable()
	t.NewFD(host.NewTTYFile(k.stdin, nil))
	t.NewFD(host.NewTTYFile(nil, k.stdout))
	t.NewFD(host.NewTTYFile(nil, k.stdout))
	return t
}

// newProcessFromImage creates and starts a process running the image at
// path, below parent or as init if parent is nil.
func (k *Kernel) newProcessFromImage(parent *Process, path string) (*Process, error) {
	data, err := k.fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := mm.NewMemoryManager(k.mf)
	li, err := loader.Load(m, data, k.config.StackSize)
	if err != nil {
		m.Release()
		return nil, err
	}

	p := k.newProcess(m, k.newStdioFDTable())
	t := k.newTask(p, li.Stack, DefaultPriority)
	t.ctx.SetIP(uintptr(li.Entry))
	t.ctx.SetStack(uintptr(li.Stack.End))
	p.addTaskLocked(t)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.registerLocked(p, parent); err != nil {
		p.discard()
		return nil, err
	}
	t.updateLogPrefix()
	t.start()
	return p, nil
}

// discard releases a process that was never registered.
func (p *Process) discard() {
	p.mm.Release()
	p.fdTable.RemoveAll()
}

// addTaskLocked installs t in the next free thread slot and accounts for its
// reference on p.
//
// Preconditions: p.mu must be locked, or p must not yet be visible to other
// goroutines.
func (p *Process) addTaskLocked(t *Task) {
	t.tid = p.tasks.Add(t)
	p.liveTasks++
	p.runningTasks++
	p.IncRef()
}

// PID returns the process id.
func (p *Process) PID() int32 {
	return p.pid
}

// Kernel returns the owning kernel.
func (p *Process) Kernel() *Kernel {
	return p.k
}

// ExitCode returns the process's exit code and whether it has begun
// exiting.
func (p *Process) ExitCode() (int32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exiting
}

// Zombie returns true if every task of p has exited.
func (p *Process) Zombie() bool {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.zombie
}

// Parent returns p's parent, or nil for init.
func (p *Process) Parent() *Process {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.parent
}

// DeadlockDetect returns true if deadlock detection is enabled.
func (p *Process) DeadlockDetect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deadlockDetect
}

// LiveTasks returns the number of tasks that have not exited.
func (p *Process) LiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveTasks
}

// MemoryManager returns p's address space, or nil once p has exited.
func (p *Process) MemoryManager() *mm.MemoryManager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mm
}

// exitGroup begins exiting p with the given code, killing every task other
// than except. Only the first call has an effect.
func (p *Process) exitGroup(code int32, except *Task) {
	p.mu.Lock()
	if p.exiting {
		p.mu.Unlock()
		return
	}
	p.exiting = true
	p.exitCode = code
	var victims []*Task
	p.tasks.ForEach(func(_ int, t *Task) {
		if t != except {
			victims = append(victims, t)
		}
	})
	p.mu.Unlock()

	for _, t := range victims {
		p.k.sched.Kill(t)
	}
}

// exitNotify is called after the last task of p has exited. It makes p a
// zombie and hands its children to init.
func (p *Process) exitNotify() {
	k := p.k
	code, _ := p.ExitCode()

	k.mu.Lock()
	defer k.mu.Unlock()
	p.zombie = true
	if init := k.init; init != p && init != nil {
		for child := range p.children {
			child.parent = init
			init.children[child] = struct{}{}
		}
		p.children = make(map[*Process]struct{})
	}
	if p == k.init {
		k.shutdownLocked(code)
	}
}

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

// Package kernel provides an emulation of a small teaching kernel: processes
// made of one or more tasks, a stride scheduler that multiplexes tasks onto
// CPUs, and per-process synchronization resources guarded by deadlock
// avoidance.
//
// Lock order:
//
//	Kernel.mu
//	  Process.mu (parent before child)
//	    Task.mu
//	      locks primitive internal mutexes
//	        Scheduler.mu
//	    mm.MemoryManager.mu
//
// No lock is held across a call that may block the calling task.
package kernel

import (
	"fmt"
	"io"
	"time"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/fs"
	"gvisor.dev/edukernel/pkg/sentry/loader"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
	"gvisor.dev/edukernel/pkg/sentry/platform"
	"gvisor.dev/edukernel/pkg/sync"
)

// Config holds tunables of a Kernel.
type Config struct {
	// CPUs is the number of tasks that may run concurrently.
	CPUs int

	// Tick is the period of the timer loop that wakes sleepers.
	Tick time.Duration

	// StackSize is the size of each thread stack.
	StackSize uint64

	// DeadlockDetect is the initial deadlock detection setting of every
	// new process.
	DeadlockDetect bool
}

// InitKernelArgs holds arguments to Init.
type InitKernelArgs struct {
	Config

	// Platform provides execution contexts for tasks.
	Platform platform.Platform

	// MemoryFile backs all application memory.
	MemoryFile *pgalloc.MemoryFile

	// Filesystem holds executable images and user files.
	Filesystem fs.Filesystem

	// SyscallTable implements system calls.
	SyscallTable *SyscallTable

	// Stdin and Stdout back the console descriptors of spawned processes.
	// Either may be nil.
	Stdin  io.Reader
	Stdout io.Writer

	// Clock is the time source for sleep and get_time. If nil, RealClock
	// is used.
	Clock Clock
}

// Kernel represents an emulated kernel.
type Kernel struct {
	// These fields are immutable after Init.
	platform.Platform
	mf       *pgalloc.MemoryFile
	fsys     fs.Filesystem
	syscalls *SyscallTable
	stdin    io.Reader
	stdout   io.Writer
	clock    Clock
	config   Config
	sched    *Scheduler
	timers   *timerQueue

	// mu protects the fields below, and the parent, children and zombie
	// fields of every Process.
	mu sync.Mutex

	// pids maps pids to processes. A nil entry is a free pid.
	pids []*Process

	// init is the first process. Orphans are reparented to it, and the
	// kernel shuts down when it exits.
	init *Process

	// shutdown is set once init has exited.
	shutdown bool

	// exitCode is init's exit code, valid once exited is closed.
	exitCode int32
	exited   chan struct{}

	// tasks counts live task goroutines.
	tasks sync.WaitGroup
}

// Init initializes a Kernel with no processes.
func (k *Kernel) Init(args InitKernelArgs) error {
	if args.Platform == nil {
		return fmt.Errorf("Platform is nil")
	}
	if args.MemoryFile == nil {
		return fmt.Errorf("MemoryFile is nil")
	}
	if args.Filesystem == nil {
		return fmt.Errorf("Filesystem is nil")
	}
	if args.SyscallTable == nil {
		return fmt.Errorf("SyscallTable is nil")
	}
	if args.CPUs < 0 {
		return fmt.Errorf("invalid CPU count %d", args.CPUs)
	}
	if args.StackSize == 0 {
		args.StackSize = loader.DefaultStackSize
	}
	if args.Tick == 0 {
		args.Tick = DefaultTick
	}
	if args.Clock == nil {
		args.Clock = RealClock{}
	}

	k.Platform = args.Platform
	k.mf = args.MemoryFile
	k.fsys = args.Filesystem
	k.syscalls = args.SyscallTable
	k.stdin = args.Stdin
	k.stdout = args.Stdout
	k.clock = args.Clock
	k.config = args.Config
	k.sched = NewScheduler(args.CPUs)
	k.timers = newTimerQueue(args.Clock, k.sched)
	k.exited = make(chan struct{})
	k.timers.start(args.Tick)
	return nil
}

// MemoryFile returns the kernel's physical memory.
func (k *Kernel) MemoryFile() *pgalloc.MemoryFile {
	return k.mf
}

// Filesystem returns the kernel's file store.
func (k *Kernel) Filesystem() fs.Filesystem {
	return k.fsys
}

// Scheduler returns the kernel's scheduler.
func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

// Clock returns the kernel's time source.
func (k *Kernel) Clock() Clock {
	return k.clock
}

// SyscallTable returns the kernel's system call table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.syscalls
}

// CreateInit creates the init process from the image at path and starts it.
func (k *Kernel) CreateInit(path string) (*Process, error) {
	k.mu.Lock()
	if k.init != nil {
		k.mu.Unlock()
		return nil, fmt.Errorf("init process already exists")
	}
	k.mu.Unlock()

	p, err := k.newProcessFromImage(nil, path)
	if err != nil {
		return nil, fmt.Errorf("creating init process from %q: %w", path, err)
	}
	return p, nil
}

// WaitExited blocks until init has exited and every task goroutine has
// stopped. It returns init's exit code.
func (k *Kernel) WaitExited() int32 {
	<-k.exited
	k.tasks.Wait()
	k.timers.stopLoop()
	return k.exitCode
}

// Exited returns a channel that is closed once init has exited.
func (k *Kernel) Exited() <-chan struct{} {
	return k.exited
}

// Shutdown kills every process. Init's exit code becomes code unless init
// has already exited.
func (k *Kernel) Shutdown(code int32) {
	k.mu.Lock()
	init := k.init
	k.mu.Unlock()
	if init != nil {
		init.exitGroup(code, nil)
	}
}

// shutdownLocked kills every remaining process after init exits.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) shutdownLocked(code int32) {
	if k.shutdown {
		return
	}
	k.shutdown = true
	k.exitCode = code
	log.Infof("init exited with code %d, shutting down", code)
	for _, p := range k.pids {
		if p != nil && !p.zombie {
			p.exitGroup(edu.ExitKilled, nil)
		}
	}
	close(k.exited)
}

// registerLocked assigns p the lowest free pid and links it below parent,
// or installs it as init if parent is nil.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) registerLocked(p, parent *Process) error {
	if k.shutdown {
		return linuxerr.ESRCH
	}
	pid := -1
	for i, cur := range k.pids {
		if cur == nil {
			pid = i
			break
		}
	}
	if pid < 0 {
		pid = len(k.pids)
		k.pids = append(k.pids, nil)
	}
	k.pids[pid] = p
	p.pid = int32(pid)
	p.parent = parent
	if parent != nil {
		parent.children[p] = struct{}{}
	} else {
		k.init = p
	}
	return nil
}

// KernelStats is a snapshot of kernel state.
type KernelStats struct {
	// Processes is the number of live processes.
	Processes int

	// Zombies is the number of exited processes not yet reaped.
	Zombies int

	// Memory is the physical memory usage.
	Memory pgalloc.Usage

	// Scheduler holds scheduler counters.
	Scheduler SchedulerStats
}

// Stats returns a snapshot of kernel state.
func (k *Kernel) Stats() KernelStats {
	var s KernelStats
	k.mu.Lock()
	for _, p := range k.pids {
		switch {
		case p == nil:
		case p.zombie:
			s.Zombies++
		default:
			s.Processes++
		}
	}
	k.mu.Unlock()
	s.Memory = k.mf.Usage()
	s.Scheduler = k.sched.Stats()
	return s
}

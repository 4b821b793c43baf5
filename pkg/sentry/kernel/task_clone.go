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
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/loader"
)

// Fork creates a child process that is a copy of t's process. The child's
// address space is a full copy of the parent's; its file descriptors and
// synchronization resources refer to the same objects as the parent's. The
// child has a single task whose registers are a copy of t's, except that the
// syscall return register is 0.
//
// Fork fails with EINVAL if the process has more than one live task.
func (t *Task) Fork() (*Process, error) {
	k := t.k
	p := t.p

	p.mu.Lock()
	if p.liveTasks != 1 {
		p.mu.Unlock()
		return nil, linuxerr.EINVAL
	}
	m, err := p.mm.Fork()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	child := k.newProcess(m, p.fdTable.Fork())
	child.mutexes = p.mutexes.Clone()
	child.semaphores = p.semaphores.Clone()
	child.condvars = p.condvars.Clone()
	child.deadlockDetect = p.deadlockDetect
	p.mu.Unlock()

	nt := k.newTask(child, t.stack, k.sched.Priority(t))
	nt.ctx = *t.ctx.Fork()
	nt.ctx.SetReturn(0)
	child.addTaskLocked(nt)

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.registerLocked(child, p); err != nil {
		child.discard()
		return nil, err
	}
	nt.updateLogPrefix()
	nt.start()
	t.Debugf("forked pid %d", child.pid)
	return child, nil
}

// Spawn creates a child of parent running the image at path. Unlike Fork,
// nothing is inherited from parent except its console. It fails with ENOENT
// if path does not exist and ENOEXEC if it is not a valid image.
func (k *Kernel) Spawn(parent *Task, path string) (*Process, error) {
	p, err := k.newProcessFromImage(parent.p, path)
	if err != nil {
		return nil, err
	}
	parent.Debugf("spawned pid %d from %q", p.pid, path)
	return p, nil
}

// ThreadCreate starts a new task in t's process with a fresh stack. The task
// begins executing at entry with arg in its first argument register.
func (t *Task) ThreadCreate(entry, arg uint64) (ThreadID, error) {
	k := t.k
	p := t.p
	prio := k.sched.Priority(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exiting {
		return 0, linuxerr.ESRCH
	}
	nt := k.newTask(p, t.stack, prio)
	p.addTaskLocked(nt)
	stack, err := loader.MapStack(p.mm, nt.tid, k.config.StackSize)
	if err != nil {
		p.tasks.Remove(nt.tid)
		p.liveTasks--
		p.runningTasks--
		p.DecRef()
		return 0, err
	}
	nt.stack = stack
	nt.ctx.SetIP(uintptr(entry))
	nt.ctx.SetStack(uintptr(stack.End))
	nt.ctx.SetArg(0, uintptr(arg))
	nt.updateLogPrefix()
	nt.start()
	return ThreadID(nt.tid), nil
}

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
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/log"
)

// AnyChild matches every child in WaitPID.
const AnyChild = -1

// WaitPID reaps a zombie child of t's process. If pid is AnyChild, the
// zombie with the lowest pid is chosen. The child's exit code is written as
// an int32 to statusAddr unless statusAddr is 0.
//
// WaitPID never blocks. It returns ECHILD if no child matches pid, and
// EAGAIN if matching children exist but none has exited.
func (t *Task) WaitPID(pid int32, statusAddr hostarch.Addr) (int32, error) {
	k := t.k
	p := t.p

	k.mu.Lock()
	found := false
	var zombie *Process
	for c := range p.children {
		if pid != AnyChild && c.pid != pid {
			continue
		}
		found = true
		if c.zombie && (zombie == nil || c.pid < zombie.pid) {
			zombie = c
		}
	}
	if !found {
		k.mu.Unlock()
		return 0, linuxerr.ECHILD
	}
	if zombie == nil {
		k.mu.Unlock()
		return 0, linuxerr.EAGAIN
	}

	code, _ := zombie.ExitCode()
	if statusAddr != 0 {
		if err := t.CopyOutObject(statusAddr, code); err != nil {
			k.mu.Unlock()
			return 0, err
		}
	}
	delete(p.children, zombie)
	k.pids[zombie.pid] = nil
	k.mu.Unlock()

	if err := p.release(zombie); err != nil {
		return 0, err
	}
	return zombie.pid, nil
}

// release drops p's reference on its reaped child zombie. Only that
// reference may remain; if other holders exist, the defect is logged and
// release returns EINVAL. The reference is dropped either way, so the
// remaining holders own the zombie.
func (p *Process) release(zombie *Process) error {
	refs := zombie.ReadRefs()
	zombie.DecRef()
	if refs != 1 {
		log.Warningf("pid[%d] reaped pid %d with %d references, expected 1", p.pid, zombie.pid, refs)
		return linuxerr.EINVAL
	}
	return nil
}

// WaitTID returns the exit code of task tid in t's process and frees its
// slot. It returns EINVAL if tid is t itself or no such task exists, and
// EAGAIN if the task has not exited.
func (t *Task) WaitTID(tid ThreadID) (int32, error) {
	if int(tid) == t.tid {
		return 0, linuxerr.EINVAL
	}
	p := t.p
	p.mu.Lock()
	defer p.mu.Unlock()
	target, ok := p.tasks.Get(int(tid))
	if !ok {
		return 0, linuxerr.EINVAL
	}
	code, exited := target.Exited()
	if !exited {
		return 0, linuxerr.EAGAIN
	}
	p.tasks.Remove(int(tid))
	return code, nil
}

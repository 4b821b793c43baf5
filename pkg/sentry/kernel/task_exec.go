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
	"gvisor.dev/edukernel/pkg/sentry/mm"
)

// Exec replaces t's process image with the image at path. The process keeps
// its identity, open files and synchronization resources.
//
// On failure the process is unchanged: ENOENT if path does not exist,
// ENOEXEC if it is not a valid image, EINVAL if other tasks are live.
func (t *Task) Exec(path string) error {
	k := t.k
	p := t.p

	data, err := k.fsys.ReadFile(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	live := p.liveTasks
	p.mu.Unlock()
	if live != 1 {
		return linuxerr.EINVAL
	}

	m := mm.NewMemoryManager(k.mf)
	li, err := loader.Load(m, data, k.config.StackSize)
	if err != nil {
		m.Release()
		return err
	}

	p.mu.Lock()
	old := p.mm
	p.mm = m
	p.mu.Unlock()
	old.Release()

	t.ctx.Reset()
	t.ctx.SetIP(uintptr(li.Entry))
	t.ctx.SetStack(uintptr(li.Stack.End))
	t.stack = li.Stack
	t.Debugf("exec %q, entry %#x", path, li.Entry)
	return nil
}

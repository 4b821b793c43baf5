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

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
	"gvisor.dev/edukernel/pkg/sentry/fsimpl/tmpfs"
	"gvisor.dev/edukernel/pkg/sentry/kernel"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
	"gvisor.dev/edukernel/pkg/sentry/platform/interp"
	"gvisor.dev/edukernel/pkg/sync"
	"gvisor.dev/edukernel/pkg/userprog"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testKernel struct {
	*kernel.Kernel
	fsys   *tmpfs.Filesystem
	stdout *syncBuffer
}

func newTestKernel(t *testing.T, cpus int) *testKernel {
	t.Helper()
	tk := &testKernel{
		Kernel: &kernel.Kernel{},
		fsys:   tmpfs.NewFilesystem(),
		stdout: &syncBuffer{},
	}
	if err := tk.Init(kernel.InitKernelArgs{
		Config:       kernel.Config{CPUs: cpus, DeadlockDetect: false},
		Platform:     interp.New(100),
		MemoryFile:   pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Pages: 1024}),
		Filesystem:   tk.fsys,
		SyscallTable: Table,
		Stdout:       tk.stdout,
	}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return tk
}

// run runs path as init and returns its exit code.
func (tk *testKernel) run(t *testing.T, path string) int32 {
	t.Helper()
	if _, err := tk.CreateInit(path); err != nil {
		t.Fatalf("CreateInit(%q) failed: %v", path, err)
	}
	done := make(chan int32, 1)
	go func() { done <- tk.WaitExited() }()
	select {
	case code := <-done:
		return code
	case <-time.After(30 * time.Second):
		t.Fatalf("%s did not exit", path)
		return 0
	}
}

func TestPrograms(t *testing.T) {
	for _, name := range userprog.Names() {
		for _, cpus := range []int{1, 4} {
			p, _ := userprog.Lookup(name)
			t.Run(fmt.Sprintf("%s/cpus=%d", name, cpus), func(t *testing.T) {
				tk := newTestKernel(t, cpus)
				if err := userprog.Install(tk.fsys, name); err != nil {
					t.Fatalf("Install failed: %v", err)
				}
				if code := tk.run(t, name); code != p.ExitCode {
					t.Errorf("exit code with %d CPUs got: %d, expected: %d", cpus, code, p.ExitCode)
				}
				if got := tk.stdout.String(); got != p.Stdout {
					t.Errorf("stdout with %d CPUs got: %q, expected: %q", cpus, got, p.Stdout)
				}
				if used := tk.Stats().Memory.Used; used != 0 {
					t.Errorf("pages in use after exit got: %d, expected: 0", used)
				}
			})
		}
	}
}

func TestUnknownSyscall(t *testing.T) {
	b := asm.NewProgramBuilder()
	b.Syscall(edu.MaxSyscallNum + 7)
	b.LI(arch.T0, edu.ReturnFailure)
	b.BNE(arch.A0, arch.T0, "fail")
	b.LI(arch.A0, 0)
	b.Syscall(edu.SYS_EXIT)
	b.AddLabel("fail")
	b.LI(arch.A0, 1)
	b.Syscall(edu.SYS_EXIT)
	data, err := b.Binary()
	if err != nil {
		t.Fatalf("Binary failed: %v", err)
	}

	tk := newTestKernel(t, 1)
	tk.fsys.WriteFile("unknown", data)
	if code := tk.run(t, "unknown"); code != 0 {
		t.Errorf("exit code got: %d, expected: 0", code)
	}
}

func TestReturnValue(t *testing.T) {
	for _, tc := range []struct {
		name string
		rval uintptr
		err  error
		want int64
	}{
		{name: "success", rval: 42, want: 42},
		{name: "deadlock", err: linuxerr.EDEADLK, want: edu.ReturnDeadlock},
		{name: "still running", err: linuxerr.EAGAIN, want: edu.ReturnStillRunning},
		{name: "invalid", err: linuxerr.EINVAL, want: edu.ReturnFailure},
		{name: "fault", rval: 3, err: linuxerr.EFAULT, want: edu.ReturnFailure},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := int64(ReturnValue(tc.rval, tc.err)); got != tc.want {
				t.Errorf("ReturnValue got: %d, expected: %d", got, tc.want)
			}
		})
	}
}

func TestPortToAccessType(t *testing.T) {
	for _, tc := range []struct {
		port uint64
		ok   bool
	}{
		{port: 0, ok: false},
		{port: 1, ok: true},
		{port: 3, ok: true},
		{port: 7, ok: true},
		{port: 8, ok: false},
		{port: 9, ok: false},
	} {
		at, ok := portToAccessType(tc.port)
		if ok != tc.ok {
			t.Errorf("portToAccessType(%d) ok got: %t, expected: %t", tc.port, ok, tc.ok)
			continue
		}
		if ok && at.Read != (tc.port&protRead != 0) {
			t.Errorf("portToAccessType(%d) read got: %t", tc.port, at.Read)
		}
	}
}

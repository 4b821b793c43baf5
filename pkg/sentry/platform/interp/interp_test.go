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

package interp

import (
	"testing"

	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
	"gvisor.dev/edukernel/pkg/sentry/loader"
	"gvisor.dev/edukernel/pkg/sentry/mm"
	"gvisor.dev/edukernel/pkg/sentry/pgalloc"
	"gvisor.dev/edukernel/pkg/sentry/platform"
)

// load assembles and loads b, returning its address space and a context
// ready to run it.
func load(t *testing.T, b *asm.ProgramBuilder) (*mm.MemoryManager, *arch.Context) {
	t.Helper()
	img, err := b.Image()
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	m := mm.NewMemoryManager(pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Pages: 16}))
	li, err := loader.LoadImage(m, img, loader.DefaultStackSize)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	ac := &arch.Context{}
	ac.SetIP(uintptr(li.Entry))
	ac.SetStack(uintptr(li.Stack.End))
	return m, ac
}

func TestSyscall(t *testing.T) {
	b := asm.NewProgramBuilder()
	b.LI(arch.A0, 10)
	b.LI(arch.T0, 0)
	b.AddLabel("loop")
	b.ADD(arch.T0, arch.T0, arch.A0)
	b.ADDI(arch.A0, arch.A0, -1)
	b.BNE(arch.A0, arch.Zero, "loop")
	b.MV(arch.A0, arch.T0)
	b.Syscall(93)

	m, ac := load(t, b)
	c := New(0).NewContext()
	f, err := c.Switch(m, ac)
	if f != nil || err != nil {
		t.Fatalf("Switch got: (%v, %v), expected a syscall", f, err)
	}
	if got := ac.SyscallNo(); got != 93 {
		t.Errorf("SyscallNo got: %d, expected: 93", got)
	}
	if got := ac.SyscallArgs()[0].Int(); got != 55 {
		t.Errorf("a0 got: %d, expected: 55", got)
	}
	if got, want := ac.IP(), uintptr(asm.TextBase)+8*arch.InstSize; got != want {
		t.Errorf("IP got: %#x, expected: %#x", got, want)
	}
}

func TestMemory(t *testing.T) {
	b := asm.NewProgramBuilder()
	b.LA(arch.T0, "word")
	b.LI(arch.T1, -5)
	b.SW(arch.T1, arch.T0, 0)
	b.LW(arch.A0, arch.T0, 0)
	b.LBU(arch.A1, arch.T0, 0)
	b.ADDI(arch.SP, arch.SP, -8)
	b.SD(arch.A0, arch.SP, 0)
	b.LD(arch.A2, arch.SP, 0)
	b.Call("fn")
	b.ECALL()
	b.AddLabel("fn")
	b.LI(arch.A3, 7)
	b.Ret()
	b.Space("word", 8)

	m, ac := load(t, b)
	if _, err := New(0).NewContext().Switch(m, ac); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	for _, tc := range []struct {
		reg  uint8
		want uint64
	}{
		{arch.A0, ^uint64(4)},
		{arch.A1, 0xfb},
		{arch.A2, ^uint64(4)},
		{arch.A3, 7},
		{arch.Zero, 0},
	} {
		if got := ac.Regs.X[tc.reg]; got != tc.want {
			t.Errorf("%s got: %#x, expected: %#x", arch.RegName(tc.reg), got, tc.want)
		}
	}
}

func TestFaults(t *testing.T) {
	for _, tc := range []struct {
		name   string
		build  func(b *asm.ProgramBuilder)
		err    error
		access hostarch.AccessType
	}{
		{
			name: "load unmapped",
			build: func(b *asm.ProgramBuilder) {
				b.LD(arch.A0, arch.Zero, 0)
			},
			err:    platform.ErrContextFault,
			access: hostarch.Read,
		},
		{
			name: "store to text",
			build: func(b *asm.ProgramBuilder) {
				b.LI(arch.T0, int32(asm.TextBase))
				b.SD(arch.T0, arch.T0, 0)
			},
			err:    platform.ErrContextFault,
			access: hostarch.Write,
		},
		{
			name: "execute data",
			build: func(b *asm.ProgramBuilder) {
				b.LA(arch.T0, "d")
				b.JALR(arch.Zero, arch.T0, 0)
				b.Space("d", 8)
			},
			err:    platform.ErrContextFault,
			access: hostarch.Execute,
		},
		{
			name: "illegal instruction",
			build: func(b *asm.ProgramBuilder) {
				b.AddInst(arch.Inst{Op: arch.OpECALL + 1})
			},
			err:    platform.ErrContextIllegalInstruction,
			access: hostarch.Execute,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := asm.NewProgramBuilder()
			tc.build(b)
			m, ac := load(t, b)
			f, err := New(0).NewContext().Switch(m, ac)
			if err != tc.err {
				t.Fatalf("Switch got error: %v, expected: %v", err, tc.err)
			}
			if f == nil || f.Access != tc.access {
				t.Errorf("fault got: %+v, expected access %v", f, tc.access)
			}
		})
	}
}

func TestPreemptAndInterrupt(t *testing.T) {
	b := asm.NewProgramBuilder()
	b.AddLabel("spin")
	b.J("spin")

	m, ac := load(t, b)
	c := New(100).NewContext()
	if _, err := c.Switch(m, ac); err != platform.ErrContextPreempted {
		t.Errorf("Switch got error: %v, expected: %v", err, platform.ErrContextPreempted)
	}
	c.Interrupt()
	if _, err := c.Switch(m, ac); err != platform.ErrContextInterrupt {
		t.Errorf("Switch got error: %v, expected: %v", err, platform.ErrContextInterrupt)
	}
	if _, err := c.Switch(m, ac); err != platform.ErrContextPreempted {
		t.Errorf("Switch after interrupt got error: %v, expected: %v", err, platform.ErrContextPreempted)
	}
}

func TestDivideByZero(t *testing.T) {
	b := asm.NewProgramBuilder()
	b.LI(arch.T0, 9)
	b.DIV(arch.A0, arch.T0, arch.Zero)
	b.REM(arch.A1, arch.T0, arch.Zero)
	b.ECALL()

	m, ac := load(t, b)
	if _, err := New(0).NewContext().Switch(m, ac); err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if got := ac.Regs.X[arch.A0]; got != ^uint64(0) {
		t.Errorf("div got: %#x, expected: %#x", got, ^uint64(0))
	}
	if got := ac.Regs.X[arch.A1]; got != 9 {
		t.Errorf("rem got: %d, expected: 9", got)
	}
}

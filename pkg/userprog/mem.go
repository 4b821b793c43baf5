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

package userprog

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
)

// mmapBase is where mmaptest places its mappings.
const mmapBase = 0x10000000

func init() {
	register(&Program{
		Name:        "mmaptest",
		Description: "map, access and unmap anonymous memory, then fault",
		ExitCode:    edu.ExitFault,
		build:       buildMMapTest,
	})

	register(&Program{
		Name:        "sbrktest",
		Description: "grow and shrink the heap",
		build:       buildSbrkTest,
	})

	register(&Program{
		Name:        "segfault",
		Description: "store to the read-only text segment",
		ExitCode:    edu.ExitFault,
		build: func(b *asm.ProgramBuilder) {
			b.LI(arch.T0, int32(asm.TextBase))
			b.SD(arch.T0, arch.T0, 0)
			epilogue(b)
		},
	})

	register(&Program{
		Name:        "illegal",
		Description: "execute an illegal instruction",
		ExitCode:    edu.ExitIllegalInstruction,
		build: func(b *asm.ProgramBuilder) {
			b.AddInst(arch.Inst{Op: arch.OpIllegal})
			epilogue(b)
		},
	})
}

// mmap emits mmap(addr, length, port) followed by a check of its result.
func mmap(b *asm.ProgramBuilder, addr, length, port, want int32) {
	b.LI(arch.A0, addr)
	b.LI(arch.A1, length)
	b.LI(arch.A2, port)
	b.Syscall(edu.SYS_MMAP)
	expect(b, arch.A0, want)
}

// munmap emits munmap(addr, length) followed by a check of its result.
func munmap(b *asm.ProgramBuilder, addr, length, want int32) {
	b.LI(arch.A0, addr)
	b.LI(arch.A1, length)
	b.Syscall(edu.SYS_MUNMAP)
	expect(b, arch.A0, want)
}

func buildMMapTest(b *asm.ProgramBuilder) {
	const page = hostarch.PageSize
	mmap(b, mmapBase, 2*page, 3, 0)

	// Overlapping, empty and out of range protections fail.
	mmap(b, mmapBase+page, page, 3, edu.ReturnFailure)
	mmap(b, mmapBase+4*page, page, 0, edu.ReturnFailure)
	mmap(b, mmapBase+4*page, page, 8, edu.ReturnFailure)
	mmap(b, mmapBase+4*page, page, 0xf, edu.ReturnFailure)
	mmap(b, mmapBase+4*page+1, page, 3, edu.ReturnFailure)

	// Both pages are zero-filled and writable.
	b.LI(arch.S0, mmapBase)
	b.LD(arch.T0, arch.S0, 0)
	expect(b, arch.T0, 0)
	b.LI(arch.T0, 42)
	b.SD(arch.T0, arch.S0, 0)
	b.LI(arch.T0, 43)
	b.SD(arch.T0, arch.S0, page+8)
	b.LD(arch.T1, arch.S0, 0)
	expect(b, arch.T1, 42)
	b.LD(arch.T1, arch.S0, page+8)
	expect(b, arch.T1, 43)

	// Unmapping a range with an unmapped page fails without effect.
	munmap(b, mmapBase+page, 2*page, edu.ReturnFailure)
	b.LD(arch.T1, arch.S0, page+8)
	expect(b, arch.T1, 43)
	munmap(b, mmapBase, 2*page, 0)
	munmap(b, mmapBase, page, edu.ReturnFailure)

	// A read-only mapping can be loaded from.
	mmap(b, mmapBase+8*page, page, 1, 0)
	b.LI(arch.S1, mmapBase+8*page)
	b.LD(arch.T1, arch.S1, 0)
	expect(b, arch.T1, 0)

	// Touching the unmapped range faults.
	b.SD(arch.T0, arch.S0, 0)
	epilogue(b)
}

func buildSbrkTest(b *asm.ProgramBuilder) {
	const page = hostarch.PageSize
	b.LI(arch.A0, 0)
	b.Syscall(edu.SYS_SBRK)
	b.MV(arch.S0, arch.A0)

	b.LI(arch.A0, 2*page)
	b.Syscall(edu.SYS_SBRK)
	b.BNE(arch.A0, arch.S0, FailLabel)

	// The new heap is writable.
	b.LI(arch.T0, 7)
	b.SD(arch.T0, arch.S0, 0)
	b.SD(arch.T0, arch.S0, 2*page-8)
	b.LD(arch.T1, arch.S0, 2*page-8)
	expect(b, arch.T1, 7)

	b.LI(arch.A0, -page)
	b.Syscall(edu.SYS_SBRK)
	b.ADDI(arch.T0, arch.S0, 2*page)
	b.BNE(arch.A0, arch.T0, FailLabel)

	b.LI(arch.A0, 0)
	b.Syscall(edu.SYS_SBRK)
	b.ADDI(arch.T0, arch.S0, page)
	b.BNE(arch.A0, arch.T0, FailLabel)

	// The break cannot move below the heap base.
	b.LI(arch.A0, -4*page)
	b.Syscall(edu.SYS_SBRK)
	expect(b, arch.A0, edu.ReturnFailure)

	b.LI(arch.A0, 0)
	b.Syscall(edu.SYS_SBRK)
	b.ADDI(arch.T0, arch.S0, page)
	b.BNE(arch.A0, arch.T0, FailLabel)

	// Data below the break is intact.
	b.LD(arch.T1, arch.S0, 0)
	expect(b, arch.T1, 7)
	epilogue(b)
}

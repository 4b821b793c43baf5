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
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
)

const (
	fileContents = "hello"
	filesMessage = "files ok\n"
)

func init() {
	register(&Program{
		Name:        "filetest",
		Description: "create, read, link and unlink a file",
		Stdout:      filesMessage,
		build:       buildFileTest,
	})
}

// openPath emits open(label, flags), leaving the result in a0.
func openPath(b *asm.ProgramBuilder, path string, flags int32) {
	b.LA(arch.A0, path)
	b.LI(arch.A1, flags)
	b.Syscall(edu.SYS_OPEN)
}

// pathSyscall emits a syscall taking one or two path labels.
func pathSyscall(b *asm.ProgramBuilder, nr uintptr, paths ...string) {
	for i, p := range paths {
		b.LA(arch.A0+uint8(i), p)
	}
	b.Syscall(nr)
}

// fdSyscall emits a syscall on the fd held in reg with a buffer label and an
// immediate length.
func fdSyscall(b *asm.ProgramBuilder, nr uintptr, reg uint8, buf string, n int32) {
	b.MV(arch.A0, reg)
	b.LA(arch.A1, buf)
	b.LI(arch.A2, n)
	b.Syscall(nr)
}

// expectNlink checks the link count of the fd held in reg.
func expectNlink(b *asm.ProgramBuilder, reg uint8, want int32) {
	b.MV(arch.A0, reg)
	b.LA(arch.A1, "stat")
	b.Syscall(edu.SYS_FSTAT)
	expect(b, arch.A0, 0)
	b.LA(arch.T0, "stat")
	b.LW(arch.T1, arch.T0, 16)
	expect(b, arch.T1, edu.S_IFREG)
	b.LW(arch.T1, arch.T0, 20)
	expect(b, arch.T1, want)
}

func buildFileTest(b *asm.ProgramBuilder) {
	n := int32(len(fileContents))

	openPath(b, "missing", edu.O_RDONLY)
	expect(b, arch.A0, edu.ReturnFailure)

	openPath(b, "path", edu.O_CREATE|edu.O_WRONLY)
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.MV(arch.S0, arch.A0)
	fdSyscall(b, edu.SYS_WRITE, arch.S0, "contents", n)
	expect(b, arch.A0, n)
	// The file is write-only.
	fdSyscall(b, edu.SYS_READ, arch.S0, "buf", 16)
	expect(b, arch.A0, edu.ReturnFailure)
	b.MV(arch.A0, arch.S0)
	b.Syscall(edu.SYS_CLOSE)
	expect(b, arch.A0, 0)
	b.MV(arch.A0, arch.S0)
	b.Syscall(edu.SYS_CLOSE)
	expect(b, arch.A0, edu.ReturnFailure)

	openPath(b, "path", edu.O_RDONLY)
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.MV(arch.S0, arch.A0)
	fdSyscall(b, edu.SYS_READ, arch.S0, "buf", 16)
	expect(b, arch.A0, n)
	fdSyscall(b, edu.SYS_READ, arch.S0, "buf", 16)
	expect(b, arch.A0, 0)
	fdSyscall(b, edu.SYS_WRITE, arch.S0, "contents", n)
	expect(b, arch.A0, edu.ReturnFailure)

	// Compare the bytes read with the bytes written.
	b.LI(arch.S1, 0)
	b.LI(arch.S2, n)
	b.AddLabel("compare")
	b.BGE(arch.S1, arch.S2, "compared")
	b.LA(arch.T0, "buf")
	b.ADD(arch.T0, arch.T0, arch.S1)
	b.LBU(arch.T1, arch.T0, 0)
	b.LA(arch.T0, "contents")
	b.ADD(arch.T0, arch.T0, arch.S1)
	b.LBU(arch.T2, arch.T0, 0)
	b.BNE(arch.T1, arch.T2, FailLabel)
	b.ADDI(arch.S1, arch.S1, 1)
	b.J("compare")
	b.AddLabel("compared")

	expectNlink(b, arch.S0, 1)
	pathSyscall(b, edu.SYS_LINKAT, "path", "alias")
	expect(b, arch.A0, 0)
	pathSyscall(b, edu.SYS_LINKAT, "path", "alias")
	expect(b, arch.A0, edu.ReturnFailure)
	pathSyscall(b, edu.SYS_LINKAT, "path", "path")
	expect(b, arch.A0, edu.ReturnFailure)
	pathSyscall(b, edu.SYS_LINKAT, "missing", "other")
	expect(b, arch.A0, edu.ReturnFailure)
	expectNlink(b, arch.S0, 2)

	// The alias names the same file.
	openPath(b, "alias", edu.O_RDONLY)
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.MV(arch.S1, arch.A0)
	expectNlink(b, arch.S1, 2)
	b.MV(arch.A0, arch.S1)
	b.Syscall(edu.SYS_CLOSE)
	expect(b, arch.A0, 0)

	pathSyscall(b, edu.SYS_UNLINKAT, "alias")
	expect(b, arch.A0, 0)
	pathSyscall(b, edu.SYS_UNLINKAT, "alias")
	expect(b, arch.A0, edu.ReturnFailure)
	expectNlink(b, arch.S0, 1)
	b.MV(arch.A0, arch.S0)
	b.Syscall(edu.SYS_CLOSE)
	expect(b, arch.A0, 0)

	b.LI(arch.A0, edu.STDOUT)
	b.LA(arch.A1, "message")
	b.LI(arch.A2, int32(len(filesMessage)))
	b.Syscall(edu.SYS_WRITE)
	expect(b, arch.A0, int32(len(filesMessage)))
	epilogue(b)

	b.CString("path", "data")
	b.CString("alias", "alias")
	b.CString("missing", "missing")
	b.CString("other", "other")
	b.CString("contents", fileContents)
	b.CString("message", filesMessage)
	b.Space("buf", 16)
	b.Space("stat", edu.SizeofStat)
}

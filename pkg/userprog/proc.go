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

const helloMessage = "Hello, world!\n"

// anyChild makes waitpid reap any child.
const anyChild = -1

func init() {
	register(&Program{
		Name:        "hello",
		Description: "write a greeting to the console",
		Stdout:      helloMessage,
		build: func(b *asm.ProgramBuilder) {
			b.LI(arch.A0, edu.STDOUT)
			b.LA(arch.A1, "msg")
			b.LI(arch.A2, int32(len(helloMessage)))
			b.Syscall(edu.SYS_WRITE)
			expect(b, arch.A0, int32(len(helloMessage)))
			epilogue(b)
			b.CString("msg", helloMessage)
		},
	})

	register(&Program{
		Name:        "forktest",
		Description: "fork five children and reap their exit codes",
		build:       buildForkTest,
	})

	register(&Program{
		Name:        "exectest",
		Description: "exec a missing image, then fork a child that execs hello",
		Stdout:      helloMessage,
		Needs:       []string{"hello"},
		build:       buildExecTest,
	})

	register(&Program{
		Name:        "spawntest",
		Description: "spawn hello and a missing image",
		Stdout:      helloMessage,
		Needs:       []string{"hello"},
		build:       buildSpawnTest,
	})

	register(&Program{
		Name:        "schedtest",
		Description: "set priorities, read thread ids and syscall counts",
		build:       buildSchedTest,
	})

	register(&Program{
		Name:        "sleeptest",
		Description: "sleep and check the elapsed time",
		build:       buildSleepTest,
	})
}

func buildForkTest(b *asm.ProgramBuilder) {
	const children = 5
	b.LI(arch.S0, 0)
	b.LI(arch.S1, children)
	b.AddLabel("fork")
	b.BGE(arch.S0, arch.S1, "reap")
	b.Syscall(edu.SYS_FORK)
	b.BEQ(arch.A0, arch.Zero, "child")
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.ADDI(arch.S0, arch.S0, 1)
	b.J("fork")

	// Each child exits with its index.
	b.AddLabel("child")
	b.MV(arch.A0, arch.S0)
	b.Syscall(edu.SYS_EXIT)

	// s2 sums the exit codes, and s3 counts reaped children.
	b.AddLabel("reap")
	b.LI(arch.S2, 0)
	b.LI(arch.S3, 0)
	b.LI(arch.S4, anyChild)
	b.AddLabel("reap_loop")
	b.BGE(arch.S3, arch.S1, "check")
	waitChild(b, "reap", arch.S4, "status")
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.LA(arch.T0, "status")
	b.LW(arch.T1, arch.T0, 0)
	b.ADD(arch.S2, arch.S2, arch.T1)
	b.ADDI(arch.S3, arch.S3, 1)
	b.J("reap_loop")

	b.AddLabel("check")
	expect(b, arch.S2, 0+1+2+3+4)
	// No children are left.
	b.LI(arch.A0, anyChild)
	b.LI(arch.A1, 0)
	b.Syscall(edu.SYS_WAITPID)
	expect(b, arch.A0, edu.ReturnFailure)
	epilogue(b)
	b.Space("status", 8)
}

func buildExecTest(b *asm.ProgramBuilder) {
	// A failed exec returns to the caller.
	b.LA(arch.A0, "missing")
	b.Syscall(edu.SYS_EXEC)
	expect(b, arch.A0, edu.ReturnFailure)

	b.Syscall(edu.SYS_FORK)
	b.BNE(arch.A0, arch.Zero, "parent")
	b.LA(arch.A0, "path")
	b.Syscall(edu.SYS_EXEC)
	exit(b, 5)

	b.AddLabel("parent")
	b.MV(arch.S0, arch.A0)
	waitChild(b, "child", arch.S0, "status")
	b.BNE(arch.A0, arch.S0, FailLabel)
	b.LA(arch.T0, "status")
	b.LW(arch.T1, arch.T0, 0)
	expect(b, arch.T1, 0)
	epilogue(b)
	b.CString("path", "hello")
	b.CString("missing", "no-such-program")
	b.Space("status", 8)
}

func buildSpawnTest(b *asm.ProgramBuilder) {
	b.LA(arch.A0, "missing")
	b.Syscall(edu.SYS_SPAWN)
	expect(b, arch.A0, edu.ReturnFailure)

	b.LA(arch.A0, "path")
	b.Syscall(edu.SYS_SPAWN)
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.MV(arch.S0, arch.A0)
	waitChild(b, "child", arch.S0, "status")
	b.BNE(arch.A0, arch.S0, FailLabel)
	b.LA(arch.T0, "status")
	b.LW(arch.T1, arch.T0, 0)
	expect(b, arch.T1, 0)
	epilogue(b)
	b.CString("path", "hello")
	b.CString("missing", "no-such-program")
	b.Space("status", 8)
}

func buildSchedTest(b *asm.ProgramBuilder) {
	b.LI(arch.A0, 1)
	b.Syscall(edu.SYS_SET_PRIORITY)
	expect(b, arch.A0, edu.ReturnFailure)
	b.LI(arch.A0, 5)
	b.Syscall(edu.SYS_SET_PRIORITY)
	expect(b, arch.A0, 5)

	b.Syscall(edu.SYS_GETTID)
	expect(b, arch.A0, 0)
	b.Syscall(edu.SYS_YIELD)
	expect(b, arch.A0, 0)

	b.LA(arch.A0, "info")
	b.Syscall(edu.SYS_TASK_INFO)
	expect(b, arch.A0, 0)
	b.LA(arch.T0, "info")
	b.LW(arch.T1, arch.T0, 0)
	expect(b, arch.T1, edu.TaskRunning)
	// SyscallTimes follows the 4-byte status.
	b.LW(arch.T1, arch.T0, 4+4*edu.SYS_SET_PRIORITY)
	expect(b, arch.T1, 2)
	b.LW(arch.T1, arch.T0, 4+4*edu.SYS_TASK_INFO)
	expect(b, arch.T1, 1)
	epilogue(b)
	b.Space("info", edu.SizeofTaskInfo)
}

func buildSleepTest(b *asm.ProgramBuilder) {
	const ms = 20
	b.LA(arch.A0, "t0")
	b.LI(arch.A1, 0)
	b.Syscall(edu.SYS_GET_TIME)
	expect(b, arch.A0, 0)
	b.LI(arch.A0, ms)
	b.Syscall(edu.SYS_SLEEP)
	expect(b, arch.A0, 0)
	b.LA(arch.A0, "t1")
	b.LI(arch.A1, 0)
	b.Syscall(edu.SYS_GET_TIME)
	expect(b, arch.A0, 0)

	// Elapsed microseconds: (sec1-sec0)*1e6 + usec1-usec0.
	b.LA(arch.T0, "t0")
	b.LD(arch.T1, arch.T0, 0)
	b.LD(arch.T2, arch.T0, 8)
	b.LA(arch.T0, "t1")
	b.LD(arch.T3, arch.T0, 0)
	b.LD(arch.T4, arch.T0, 8)
	b.SUB(arch.T3, arch.T3, arch.T1)
	b.LI(arch.T5, 1000000)
	b.MUL(arch.T3, arch.T3, arch.T5)
	b.SUB(arch.T4, arch.T4, arch.T2)
	b.ADD(arch.T3, arch.T3, arch.T4)
	b.LI(arch.T5, ms*1000)
	b.BLT(arch.T3, arch.T5, FailLabel)
	epilogue(b)
	b.Space("t0", edu.SizeofTimeVal)
	b.Space("t1", edu.SizeofTimeVal)
}

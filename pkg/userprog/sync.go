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
	counterThreads = 3
	counterRounds  = 100
)

func init() {
	register(&Program{
		Name:        "mutextest",
		Description: "increment a shared counter from several threads under a blocking mutex",
		build:       func(b *asm.ProgramBuilder) { buildCounter(b, true) },
	})

	register(&Program{
		Name:        "spintest",
		Description: "increment a shared counter from several threads under a spin mutex",
		build:       func(b *asm.ProgramBuilder) { buildCounter(b, false) },
	})

	register(&Program{
		Name:        "deadlocktest",
		Description: "acquire two mutexes in opposite orders with deadlock detection on",
		build:       buildDeadlockTest,
	})

	register(&Program{
		Name:        "semtest",
		Description: "pass five values through a two-slot buffer guarded by semaphores",
		build:       buildSemTest,
	})

	register(&Program{
		Name:        "condtest",
		Description: "wait on a condition variable for a flag set by another thread",
		build:       buildCondTest,
	})
}

// loadID loads the resource id stored at the data label name into rd.
func loadID(b *asm.ProgramBuilder, rd uint8, name string) {
	b.LA(arch.T5, name)
	b.LD(rd, arch.T5, 0)
}

// syscallID issues syscall nr with the id stored at name as the argument.
func syscallID(b *asm.ProgramBuilder, nr uintptr, name string) {
	loadID(b, arch.A0, name)
	b.Syscall(nr)
}

// create issues syscall nr with the immediate argument arg and stores the
// resulting id to name.
func create(b *asm.ProgramBuilder, nr uintptr, arg int32, name string) {
	b.LI(arch.A0, arg)
	b.Syscall(nr)
	b.BLT(arch.A0, arch.Zero, FailLabel)
	b.LA(arch.T5, name)
	b.SD(arch.A0, arch.T5, 0)
}

// spawnThread starts a thread at entry with argument arg, leaving the thread
// id in a0.
func spawnThread(b *asm.ProgramBuilder, entry string, arg uint8) {
	b.LA(arch.A0, entry)
	b.MV(arch.A1, arg)
	b.Syscall(edu.SYS_THREAD_CREATE)
	b.BLT(arch.A0, arch.Zero, FailLabel)
}

func buildCounter(b *asm.ProgramBuilder, blocking bool) {
	kind := int32(0)
	if blocking {
		kind = 1
	}
	create(b, edu.SYS_MUTEX_CREATE, kind, "mutex")

	b.LI(arch.S0, 0)
	b.LI(arch.S1, counterThreads)
	b.AddLabel("create")
	b.BGE(arch.S0, arch.S1, "join")
	spawnThread(b, "worker", arch.S0)
	storeIndexed(b, arch.A0, "tids", arch.S0)
	b.ADDI(arch.S0, arch.S0, 1)
	b.J("create")

	b.AddLabel("join")
	b.LI(arch.S0, 0)
	b.AddLabel("join_loop")
	b.BGE(arch.S0, arch.S1, "check")
	loadIndexed(b, arch.S2, "tids", arch.S0)
	waitThread(b, "join", arch.S2)
	expect(b, arch.A0, 0)
	b.ADDI(arch.S0, arch.S0, 1)
	b.J("join_loop")

	b.AddLabel("check")
	loadID(b, arch.T1, "counter")
	expect(b, arch.T1, counterThreads*counterRounds)
	syscallID(b, edu.SYS_MUTEX_DESTROY, "mutex")
	expect(b, arch.A0, 0)
	epilogue(b)

	// The yield inside the critical section hands the CPU to the other
	// workers while the lock is held.
	b.AddLabel("worker")
	b.LI(arch.S1, counterRounds)
	b.AddLabel("worker_loop")
	syscallID(b, edu.SYS_MUTEX_LOCK, "mutex")
	expect(b, arch.A0, 0)
	b.LA(arch.T0, "counter")
	b.LD(arch.T1, arch.T0, 0)
	b.Syscall(edu.SYS_YIELD)
	b.ADDI(arch.T1, arch.T1, 1)
	b.SD(arch.T1, arch.T0, 0)
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "mutex")
	expect(b, arch.A0, 0)
	b.ADDI(arch.S1, arch.S1, -1)
	b.BNE(arch.S1, arch.Zero, "worker_loop")
	exit(b, 0)

	b.Space("mutex", 8)
	b.Space("counter", 8)
	b.Space("tids", 8*counterThreads)
}

// buildDeadlockTest runs a main thread holding m0 and wanting m1 against a
// worker holding m1 and wanting m0. Whichever request completes the cycle
// is refused, and the refused side releases what it holds.
func buildDeadlockTest(b *asm.ProgramBuilder) {
	b.LI(arch.A0, 2)
	b.Syscall(edu.SYS_ENABLE_DEADLOCK_DETECT)
	expect(b, arch.A0, edu.ReturnFailure)
	b.LI(arch.A0, 1)
	b.Syscall(edu.SYS_ENABLE_DEADLOCK_DETECT)
	expect(b, arch.A0, 0)

	create(b, edu.SYS_MUTEX_CREATE, 1, "m0")
	create(b, edu.SYS_MUTEX_CREATE, 1, "m1")
	syscallID(b, edu.SYS_MUTEX_LOCK, "m0")
	expect(b, arch.A0, 0)

	spawnThread(b, "worker", arch.Zero)
	b.MV(arch.S0, arch.A0)

	b.AddLabel("spin")
	loadID(b, arch.T0, "ready")
	b.BNE(arch.T0, arch.Zero, "contend")
	b.Syscall(edu.SYS_YIELD)
	b.J("spin")

	b.AddLabel("contend")
	syscallID(b, edu.SYS_MUTEX_LOCK, "m1")
	b.BEQ(arch.A0, arch.Zero, "main_won")
	expect(b, arch.A0, edu.ReturnDeadlock)

	// Refused: the worker takes m0 once it is released and finishes.
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m0")
	expect(b, arch.A0, 0)
	waitThread(b, "refused", arch.S0)
	expect(b, arch.A0, 0)
	b.J("done")

	// Granted: the worker was refused and released m1.
	b.AddLabel("main_won")
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m1")
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m0")
	expect(b, arch.A0, 0)
	waitThread(b, "granted", arch.S0)
	expect(b, arch.A0, 2)

	b.AddLabel("done")
	syscallID(b, edu.SYS_MUTEX_DESTROY, "m0")
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_MUTEX_DESTROY, "m1")
	expect(b, arch.A0, 0)
	epilogue(b)

	b.AddLabel("worker")
	syscallID(b, edu.SYS_MUTEX_LOCK, "m1")
	expect(b, arch.A0, 0)
	b.LI(arch.T0, 1)
	b.LA(arch.T1, "ready")
	b.SD(arch.T0, arch.T1, 0)
	syscallID(b, edu.SYS_MUTEX_LOCK, "m0")
	b.BEQ(arch.A0, arch.Zero, "worker_won")
	expect(b, arch.A0, edu.ReturnDeadlock)
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m1")
	exit(b, 2)
	b.AddLabel("worker_won")
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m0")
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "m1")
	exit(b, 0)

	b.Space("m0", 8)
	b.Space("m1", 8)
	b.Space("ready", 8)
}

func buildSemTest(b *asm.ProgramBuilder) {
	const values = 5
	b.LI(arch.A0, -1)
	b.Syscall(edu.SYS_SEMAPHORE_CREATE)
	expect(b, arch.A0, edu.ReturnFailure)
	create(b, edu.SYS_SEMAPHORE_CREATE, 2, "slots")
	create(b, edu.SYS_SEMAPHORE_CREATE, 0, "items")

	spawnThread(b, "producer", arch.Zero)
	b.MV(arch.S0, arch.A0)

	// Consume: s1 indexes the buffer, s2 sums the values.
	b.LI(arch.S1, 0)
	b.LI(arch.S2, 0)
	b.LI(arch.S3, values)
	b.AddLabel("consume")
	b.BGE(arch.S1, arch.S3, "check")
	syscallID(b, edu.SYS_SEMAPHORE_DOWN, "items")
	expect(b, arch.A0, 0)
	b.ANDI(arch.T0, arch.S1, 1)
	loadIndexed(b, arch.T1, "buf", arch.T0)
	b.ADD(arch.S2, arch.S2, arch.T1)
	syscallID(b, edu.SYS_SEMAPHORE_UP, "slots")
	expect(b, arch.A0, 0)
	b.ADDI(arch.S1, arch.S1, 1)
	b.J("consume")

	b.AddLabel("check")
	expect(b, arch.S2, 1+2+3+4+5)
	waitThread(b, "producer", arch.S0)
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_SEMAPHORE_DESTROY, "slots")
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_SEMAPHORE_DESTROY, "items")
	expect(b, arch.A0, 0)
	epilogue(b)

	// Produce 1 through values, alternating between the two slots.
	b.AddLabel("producer")
	b.LI(arch.S1, 0)
	b.LI(arch.S3, values)
	b.AddLabel("produce")
	b.BGE(arch.S1, arch.S3, "produced")
	syscallID(b, edu.SYS_SEMAPHORE_DOWN, "slots")
	b.ANDI(arch.T0, arch.S1, 1)
	b.ADDI(arch.T1, arch.S1, 1)
	storeIndexed(b, arch.T1, "buf", arch.T0)
	syscallID(b, edu.SYS_SEMAPHORE_UP, "items")
	b.ADDI(arch.S1, arch.S1, 1)
	b.J("produce")
	b.AddLabel("produced")
	exit(b, 0)

	b.Space("slots", 8)
	b.Space("items", 8)
	b.Space("buf", 16)
}

func buildCondTest(b *asm.ProgramBuilder) {
	create(b, edu.SYS_MUTEX_CREATE, 1, "mutex")
	create(b, edu.SYS_CONDVAR_CREATE, 0, "cond")

	syscallID(b, edu.SYS_MUTEX_LOCK, "mutex")
	expect(b, arch.A0, 0)
	spawnThread(b, "setter", arch.Zero)
	b.MV(arch.S0, arch.A0)

	// The mutex is held whenever the flag is tested, and a wait returns
	// with it released.
	b.AddLabel("test")
	loadID(b, arch.T0, "flag")
	b.BNE(arch.T0, arch.Zero, "set")
	loadID(b, arch.A0, "cond")
	loadID(b, arch.A1, "mutex")
	b.Syscall(edu.SYS_CONDVAR_WAIT)
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_MUTEX_LOCK, "mutex")
	expect(b, arch.A0, 0)
	b.J("test")

	b.AddLabel("set")
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "mutex")
	expect(b, arch.A0, 0)
	waitThread(b, "setter", arch.S0)
	expect(b, arch.A0, 0)
	syscallID(b, edu.SYS_CONDVAR_DESTROY, "cond")
	expect(b, arch.A0, 0)
	epilogue(b)

	b.AddLabel("setter")
	syscallID(b, edu.SYS_MUTEX_LOCK, "mutex")
	b.LI(arch.T0, 1)
	b.LA(arch.T1, "flag")
	b.SD(arch.T0, arch.T1, 0)
	syscallID(b, edu.SYS_CONDVAR_SIGNAL, "cond")
	syscallID(b, edu.SYS_MUTEX_UNLOCK, "mutex")
	exit(b, 0)

	b.Space("mutex", 8)
	b.Space("cond", 8)
	b.Space("flag", 8)
}

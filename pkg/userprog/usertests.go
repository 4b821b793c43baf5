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
	"fmt"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
)

// suite lists the programs usertests runs, in order.
var suite = []string{
	"hello",
	"forktest",
	"exectest",
	"spawntest",
	"schedtest",
	"sleeptest",
	"mmaptest",
	"sbrktest",
	"segfault",
	"illegal",
	"mutextest",
	"spintest",
	"deadlocktest",
	"semtest",
	"condtest",
	"filetest",
}

func init() {
	register(&Program{
		Name:        "usertests",
		Description: "spawn every test program and check its exit code",
		Stdout:      helloMessage + helloMessage + helloMessage + filesMessage,
		Needs:       suite,
		build:       buildUserTests,
	})
}

// buildUserTests spawns each program of the suite in turn. The exit codes
// are looked up when the program is assembled.
func buildUserTests(b *asm.ProgramBuilder) {
	for i, name := range suite {
		p, ok := Lookup(name)
		if !ok {
			panic(fmt.Sprintf("usertests: unknown program %q", name))
		}
		path := fmt.Sprintf("path%d", i)
		b.LA(arch.A0, path)
		b.Syscall(edu.SYS_SPAWN)
		b.BLT(arch.A0, arch.Zero, FailLabel)
		b.MV(arch.S0, arch.A0)
		waitChild(b, fmt.Sprintf("run%d", i), arch.S0, "status")
		b.BNE(arch.A0, arch.S0, FailLabel)
		b.LA(arch.T0, "status")
		b.LW(arch.T1, arch.T0, 0)
		expect(b, arch.T1, p.ExitCode)
	}
	epilogue(b)
	for i, name := range suite {
		b.CString(fmt.Sprintf("path%d", i), name)
	}
	b.Space("status", 8)
}

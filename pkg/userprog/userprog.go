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

// Package userprog provides a library of user programs for the teaching
// kernel, written with the asm program builder. Each program checks the
// results of the syscalls it makes and exits with a known code.
package userprog

import (
	"fmt"
	"slices"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/arch/asm"
	"gvisor.dev/edukernel/pkg/sentry/loader"
)

// FailLabel is the label every program jumps to when a check fails.
const FailLabel = "fail"

// ExitFailed is the exit code of a program whose checks failed.
const ExitFailed = 1

// Program is a user program.
type Program struct {
	// Name is the file name the program is installed under.
	Name string

	// Description is a one-line summary.
	Description string

	// ExitCode is the exit code of a successful run.
	ExitCode int32

	// Stdout is the console output of a successful run.
	Stdout string

	// Needs lists the other programs that must be installed.
	Needs []string

	build func(b *asm.ProgramBuilder)
}

// Image assembles the program.
func (p *Program) Image() (*loader.Image, error) {
	b := asm.NewProgramBuilder()
	p.build(b)
	img, err := b.Image()
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", p.Name, err)
	}
	return img, nil
}

// Binary assembles and encodes the program.
func (p *Program) Binary() ([]byte, error) {
	img, err := p.Image()
	if err != nil {
		return nil, err
	}
	return img.MarshalBinary()
}

var programs = map[string]*Program{}

func register(p *Program) {
	if _, ok := programs[p.Name]; ok {
		panic(fmt.Sprintf("duplicate program %q", p.Name))
	}
	programs[p.Name] = p
}

// Lookup returns the program with the given name.
func Lookup(name string) (*Program, bool) {
	p, ok := programs[name]
	return p, ok
}

// Names returns the names of all programs in sorted order.
func Names() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Writer is implemented by filesystems that programs can be installed into.
type Writer interface {
	WriteFile(path string, data []byte)
}

// Install assembles the named programs, and the programs they need, and
// writes each to fsys under its name.
func Install(fsys Writer, names ...string) error {
	seen := make(map[string]bool)
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		p, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("unknown program %q", name)
		}
		bin, err := p.Binary()
		if err != nil {
			return err
		}
		fsys.WriteFile(p.Name, bin)
		queue = append(queue, p.Needs...)
	}
	return nil
}

// Helpers shared by the programs. Syscalls clobber only a0, so values kept
// in other registers survive them.

// exit exits with an immediate code.
func exit(b *asm.ProgramBuilder, code int32) {
	b.LI(arch.A0, code)
	b.Syscall(edu.SYS_EXIT)
}

// expect branches to FailLabel unless reg holds want. It clobbers t6.
func expect(b *asm.ProgramBuilder, reg uint8, want int32) {
	b.LI(arch.T6, want)
	b.BNE(reg, arch.T6, FailLabel)
}

// epilogue emits the success exit followed by the failure exit.
func epilogue(b *asm.ProgramBuilder) {
	exit(b, 0)
	b.AddLabel(FailLabel)
	exit(b, ExitFailed)
}

// waitThread loops until thread tid, held in reg, has exited, leaving its
// exit code in a0. Each use needs a distinct label prefix.
func waitThread(b *asm.ProgramBuilder, prefix string, reg uint8) {
	b.AddLabel(prefix + "_wait")
	b.MV(arch.A0, reg)
	b.Syscall(edu.SYS_WAITTID)
	b.LI(arch.T6, edu.ReturnStillRunning)
	b.BNE(arch.A0, arch.T6, prefix+"_done")
	b.Syscall(edu.SYS_YIELD)
	b.J(prefix + "_wait")
	b.AddLabel(prefix + "_done")
}

// waitChild loops until child pid, held in reg, has exited, storing its exit
// code to the data label status and leaving the reaped pid in a0.
func waitChild(b *asm.ProgramBuilder, prefix string, reg uint8, status string) {
	b.AddLabel(prefix + "_wait")
	b.MV(arch.A0, reg)
	b.LA(arch.A1, status)
	b.Syscall(edu.SYS_WAITPID)
	b.LI(arch.T6, edu.ReturnStillRunning)
	b.BNE(arch.A0, arch.T6, prefix+"_done")
	b.Syscall(edu.SYS_YIELD)
	b.J(prefix + "_wait")
	b.AddLabel(prefix + "_done")
}

// loadIndexed loads the 64-bit word at label[idx], with idx held in reg,
// into rd. It clobbers t5.
func loadIndexed(b *asm.ProgramBuilder, rd uint8, label string, reg uint8) {
	b.LA(arch.T5, label)
	b.SLLI(rd, reg, 3)
	b.ADD(arch.T5, arch.T5, rd)
	b.LD(rd, arch.T5, 0)
}

// storeIndexed stores rs to the 64-bit word at label[idx], with idx held in
// reg. It clobbers t4 and t5.
func storeIndexed(b *asm.ProgramBuilder, rs uint8, label string, reg uint8) {
	b.LA(arch.T5, label)
	b.SLLI(arch.T4, reg, 3)
	b.ADD(arch.T5, arch.T5, arch.T4)
	b.SD(rs, arch.T5, 0)
}

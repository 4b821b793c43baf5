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

// Package interp implements a Platform that interprets user code.
//
// Each Context executes instructions from its AddressSpace until a syscall
// instruction, a fault, an interrupt or the end of its time slice.
package interp

import (
	"encoding/binary"
	"sync/atomic"

	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/platform"
)

// DefaultQuantum is the default number of instructions per time slice.
const DefaultQuantum = 10000

// Interp is a platform.Platform.
type Interp struct {
	// quantum is the number of instructions a Context executes per call to
	// Switch.
	quantum int
}

// New returns a new interpreter platform. If quantum is not positive,
// DefaultQuantum is used.
func New(quantum int) *Interp {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &Interp{quantum: quantum}
}

// NewContext implements platform.Platform.NewContext.
func (i *Interp) NewContext() platform.Context {
	return &context{quantum: i.quantum}
}

// context is a platform.Context.
type context struct {
	quantum int

	// interrupted is set by Interrupt and consumed by Switch.
	interrupted atomic.Bool
}

// Interrupt implements platform.Context.Interrupt.
func (c *context) Interrupt() {
	c.interrupted.Store(true)
}

func fault(addr uint64, at hostarch.AccessType) *platform.Fault {
	return &platform.Fault{Addr: hostarch.Addr(addr), Access: at}
}

// Switch implements platform.Context.Switch.
func (c *context) Switch(as platform.AddressSpace, ac *arch.Context) (*platform.Fault, error) {
	regs := &ac.Regs
	var ibuf [arch.InstSize]byte
	var dbuf [8]byte

	for n := 0; n < c.quantum; n++ {
		if c.interrupted.Swap(false) {
			return nil, platform.ErrContextInterrupt
		}

		pc := regs.PC
		if err := as.Fetch(hostarch.Addr(pc), ibuf[:]); err != nil {
			return fault(pc, hostarch.Execute), platform.ErrContextFault
		}
		inst, ok := arch.Decode(ibuf[:])
		if !ok {
			return fault(pc, hostarch.Execute), platform.ErrContextIllegalInstruction
		}

		rs1 := regs.X[inst.Rs1]
		rs2 := regs.X[inst.Rs2]
		imm := int64(inst.Imm)
		next := pc + arch.InstSize
		var rd uint64
		writeRd := true

		switch inst.Op {
		case arch.OpLI:
			rd = uint64(imm)
		case arch.OpADDI:
			rd = rs1 + uint64(imm)
		case arch.OpANDI:
			rd = rs1 & uint64(imm)
		case arch.OpSLLI:
			rd = rs1 << (uint64(imm) & 63)
		case arch.OpSRLI:
			rd = rs1 >> (uint64(imm) & 63)
		case arch.OpADD:
			rd = rs1 + rs2
		case arch.OpSUB:
			rd = rs1 - rs2
		case arch.OpMUL:
			rd = rs1 * rs2
		case arch.OpDIV:
			// Division by zero yields all ones, as on RISC-V.
			if rs2 == 0 {
				rd = ^uint64(0)
			} else {
				rd = uint64(int64(rs1) / int64(rs2))
			}
		case arch.OpREM:
			if rs2 == 0 {
				rd = rs1
			} else {
				rd = uint64(int64(rs1) % int64(rs2))
			}
		case arch.OpAND:
			rd = rs1 & rs2
		case arch.OpOR:
			rd = rs1 | rs2
		case arch.OpXOR:
			rd = rs1 ^ rs2
		case arch.OpSLT:
			if int64(rs1) < int64(rs2) {
				rd = 1
			}

		case arch.OpLD, arch.OpLW, arch.OpLBU:
			addr := rs1 + uint64(imm)
			size := loadSize(inst.Op)
			if err := as.Load(hostarch.Addr(addr), dbuf[:size]); err != nil {
				return fault(addr, hostarch.Read), platform.ErrContextFault
			}
			switch inst.Op {
			case arch.OpLD:
				rd = binary.LittleEndian.Uint64(dbuf[:])
			case arch.OpLW:
				rd = uint64(int64(int32(binary.LittleEndian.Uint32(dbuf[:]))))
			case arch.OpLBU:
				rd = uint64(dbuf[0])
			}

		case arch.OpSD, arch.OpSW, arch.OpSB:
			addr := rs1 + uint64(imm)
			size := loadSize(inst.Op)
			binary.LittleEndian.PutUint64(dbuf[:], rs2)
			if err := as.Store(hostarch.Addr(addr), dbuf[:size]); err != nil {
				return fault(addr, hostarch.Write), platform.ErrContextFault
			}
			writeRd = false

		case arch.OpBEQ, arch.OpBNE, arch.OpBLT, arch.OpBGE:
			var taken bool
			switch inst.Op {
			case arch.OpBEQ:
				taken = rs1 == rs2
			case arch.OpBNE:
				taken = rs1 != rs2
			case arch.OpBLT:
				taken = int64(rs1) < int64(rs2)
			case arch.OpBGE:
				taken = int64(rs1) >= int64(rs2)
			}
			if taken {
				next = pc + uint64(imm)
			}
			writeRd = false

		case arch.OpJAL:
			rd = next
			next = pc + uint64(imm)
		case arch.OpJALR:
			rd = next
			next = rs1 + uint64(imm)

		case arch.OpECALL:
			regs.PC = next
			return nil, nil
		}

		if writeRd && inst.Rd != arch.Zero {
			regs.X[inst.Rd] = rd
		}
		regs.PC = next
	}
	return nil, platform.ErrContextPreempted
}

func loadSize(op arch.Opcode) int {
	switch op {
	case arch.OpLD, arch.OpSD:
		return 8
	case arch.OpLW, arch.OpSW:
		return 4
	default:
		return 1
	}
}

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

package arch

import (
	"encoding/binary"
	"fmt"
)

// InstSize is the size in bytes of every encoded instruction.
const InstSize = 8

// Opcode identifies an instruction.
type Opcode uint8

// Instruction set. Immediates are signed 32-bit values. Branch and JAL
// offsets are relative to the address of the branch instruction.
const (
	OpIllegal Opcode = iota

	// rd = imm
	OpLI
	// rd = rs1 + imm
	OpADDI
	// rd = rs1 & imm
	OpANDI
	// rd = rs1 << imm
	OpSLLI
	// rd = rs1 >> imm (logical)
	OpSRLI

	// rd = rs1 op rs2
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpREM
	OpAND
	OpOR
	OpXOR
	OpSLT

	// rd = mem[rs1 + imm]
	OpLD
	OpLW
	OpLBU

	// mem[rs1 + imm] = rs2
	OpSD
	OpSW
	OpSB

	// if rs1 op rs2 { pc += imm }
	OpBEQ
	OpBNE
	OpBLT
	OpBGE

	// rd = pc + InstSize; pc += imm
	OpJAL
	// rd = pc + InstSize; pc = rs1 + imm
	OpJALR

	// Trap into the kernel.
	OpECALL

	numOpcodes
)

var opNames = [numOpcodes]string{
	OpIllegal: "illegal",
	OpLI:      "li",
	OpADDI:    "addi",
	OpANDI:    "andi",
	OpSLLI:    "slli",
	OpSRLI:    "srli",
	OpADD:     "add",
	OpSUB:     "sub",
	OpMUL:     "mul",
	OpDIV:     "div",
	OpREM:     "rem",
	OpAND:     "and",
	OpOR:      "or",
	OpXOR:     "xor",
	OpSLT:     "slt",
	OpLD:      "ld",
	OpLW:      "lw",
	OpLBU:     "lbu",
	OpSD:      "sd",
	OpSW:      "sw",
	OpSB:      "sb",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpBLT:     "blt",
	OpBGE:     "bge",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpECALL:   "ecall",
}

// String implements fmt.Stringer.String.
func (op Opcode) String() string {
	if op < numOpcodes {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Inst is a decoded instruction.
//
// The encoding is:
//
//	byte 0   opcode
//	byte 1   rd
//	byte 2   rs1
//	byte 3   rs2
//	bytes 4-7 imm (little-endian, signed)
type Inst struct {
	Op  Opcode
	Rd  uint8
	Rs1 uint8
	Rs2 uint8
	Imm int32
}

// Encode writes the encoding of i to b, which must be at least InstSize
// bytes long.
func (i Inst) Encode(b []byte) {
	b[0] = byte(i.Op)
	b[1] = i.Rd
	b[2] = i.Rs1
	b[3] = i.Rs2
	binary.LittleEndian.PutUint32(b[4:InstSize], uint32(i.Imm))
}

// Decode decodes the instruction at the start of b. ok is false if b does not
// hold a valid instruction.
func Decode(b []byte) (i Inst, ok bool) {
	if len(b) < InstSize {
		return Inst{}, false
	}
	i = Inst{
		Op:  Opcode(b[0]),
		Rd:  b[1],
		Rs1: b[2],
		Rs2: b[3],
		Imm: int32(binary.LittleEndian.Uint32(b[4:InstSize])),
	}
	if i.Op == OpIllegal || i.Op >= numOpcodes {
		return i, false
	}
	if i.Rd >= NumRegisters || i.Rs1 >= NumRegisters || i.Rs2 >= NumRegisters {
		return i, false
	}
	return i, true
}

// String implements fmt.Stringer.String.
func (i Inst) String() string {
	switch i.Op {
	case OpECALL:
		return "ecall"
	case OpLI:
		return fmt.Sprintf("li %s, %d", RegName(i.Rd), i.Imm)
	case OpJAL:
		return fmt.Sprintf("jal %s, %d", RegName(i.Rd), i.Imm)
	case OpLD, OpLW, OpLBU, OpJALR, OpADDI, OpANDI, OpSLLI, OpSRLI:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rd), RegName(i.Rs1), i.Imm)
	case OpSD, OpSW, OpSB:
		return fmt.Sprintf("%s %s, %d(%s)", i.Op, RegName(i.Rs2), i.Imm, RegName(i.Rs1))
	case OpBEQ, OpBNE, OpBLT, OpBGE:
		return fmt.Sprintf("%s %s, %s, %d", i.Op, RegName(i.Rs1), RegName(i.Rs2), i.Imm)
	default:
		return fmt.Sprintf("%s %s, %s, %s", i.Op, RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2))
	}
}

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

// Package asm assembles user programs for the interpreter platform.
package asm

import (
	"fmt"
	"math"

	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
	"gvisor.dev/edukernel/pkg/sentry/loader"
)

// TextBase is the load address of every program's text segment.
const TextBase hostarch.Addr = 0x10000

// EntryLabel names the entry point. Programs without it start at TextBase.
const EntryLabel = "_start"

type refType int

const (
	// refRelative patches a pc-relative branch or jump offset.
	refRelative refType = iota

	// refAbsolute patches a load of the label's address.
	refAbsolute
)

// label contains information to resolve a label to an address.
type label struct {
	// sources lists the instructions that reference the label.
	sources []source

	// text is the instruction index of a text label, or -1.
	text int

	// data is the offset of a data label, or -1.
	data int
}

// source contains information about a single reference to a label.
type source struct {
	// line is the index of the referencing instruction.
	line int
	typ  refType
}

// ProgramBuilder assists with building a program with labels that are
// resolved to their proper offsets and addresses.
type ProgramBuilder struct {
	// labels maps label names to label objects.
	labels map[string]*label

	// text holds the program's instructions.
	text []arch.Inst

	// data holds the contents of the data segment.
	data []byte

	// err is the first error encountered while building.
	err error
}

// NewProgramBuilder creates a new ProgramBuilder instance.
func NewProgramBuilder() *ProgramBuilder {
	return &ProgramBuilder{labels: map[string]*label{}}
}

func (b *ProgramBuilder) label(name string) *label {
	l, ok := b.labels[name]
	if !ok {
		l = &label{text: -1, data: -1}
		b.labels[name] = l
	}
	return l
}

func (b *ProgramBuilder) setErr(format string, v ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, v...)
	}
}

// AddLabel sets the given label name at the current location in the text.
// The next instruction is executed when any code jumps to this label.
func (b *ProgramBuilder) AddLabel(name string) {
	l := b.label(name)
	if l.text != -1 || l.data != -1 {
		b.setErr("label %q defined twice", name)
		return
	}
	l.text = len(b.text)
}

// AddInst adds an instruction to the text.
func (b *ProgramBuilder) AddInst(inst arch.Inst) {
	b.text = append(b.text, inst)
}

func (b *ProgramBuilder) addRef(name string, typ refType, inst arch.Inst) {
	l := b.label(name)
	l.sources = append(l.sources, source{line: len(b.text), typ: typ})
	b.AddInst(inst)
}

// LI loads an immediate.
func (b *ProgramBuilder) LI(rd uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpLI, Rd: rd, Imm: imm})
}

// LA loads the address of a text or data label.
func (b *ProgramBuilder) LA(rd uint8, name string) {
	b.addRef(name, refAbsolute, arch.Inst{Op: arch.OpLI, Rd: rd})
}

// MV copies rs into rd.
func (b *ProgramBuilder) MV(rd, rs uint8) {
	b.ADDI(rd, rs, 0)
}

// ADDI adds an immediate.
func (b *ProgramBuilder) ADDI(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpADDI, Rd: rd, Rs1: rs1, Imm: imm})
}

// ANDI ands an immediate.
func (b *ProgramBuilder) ANDI(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpANDI, Rd: rd, Rs1: rs1, Imm: imm})
}

// SLLI shifts left by an immediate.
func (b *ProgramBuilder) SLLI(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpSLLI, Rd: rd, Rs1: rs1, Imm: imm})
}

// SRLI shifts right by an immediate.
func (b *ProgramBuilder) SRLI(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpSRLI, Rd: rd, Rs1: rs1, Imm: imm})
}

// Op adds a register-register instruction.
func (b *ProgramBuilder) Op(op arch.Opcode, rd, rs1, rs2 uint8) {
	b.AddInst(arch.Inst{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2})
}

// ADD adds two registers.
func (b *ProgramBuilder) ADD(rd, rs1, rs2 uint8) { b.Op(arch.OpADD, rd, rs1, rs2) }

// SUB subtracts two registers.
func (b *ProgramBuilder) SUB(rd, rs1, rs2 uint8) { b.Op(arch.OpSUB, rd, rs1, rs2) }

// MUL multiplies two registers.
func (b *ProgramBuilder) MUL(rd, rs1, rs2 uint8) { b.Op(arch.OpMUL, rd, rs1, rs2) }

// DIV divides two registers.
func (b *ProgramBuilder) DIV(rd, rs1, rs2 uint8) { b.Op(arch.OpDIV, rd, rs1, rs2) }

// REM computes the remainder of two registers.
func (b *ProgramBuilder) REM(rd, rs1, rs2 uint8) { b.Op(arch.OpREM, rd, rs1, rs2) }

// LD loads a doubleword.
func (b *ProgramBuilder) LD(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpLD, Rd: rd, Rs1: rs1, Imm: imm})
}

// LW loads a sign-extended word.
func (b *ProgramBuilder) LW(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpLW, Rd: rd, Rs1: rs1, Imm: imm})
}

// LBU loads a zero-extended byte.
func (b *ProgramBuilder) LBU(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpLBU, Rd: rd, Rs1: rs1, Imm: imm})
}

// SD stores the doubleword rs2 at rs1+imm.
func (b *ProgramBuilder) SD(rs2, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpSD, Rs1: rs1, Rs2: rs2, Imm: imm})
}

// SW stores the word rs2 at rs1+imm.
func (b *ProgramBuilder) SW(rs2, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpSW, Rs1: rs1, Rs2: rs2, Imm: imm})
}

// SB stores the byte rs2 at rs1+imm.
func (b *ProgramBuilder) SB(rs2, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpSB, Rs1: rs1, Rs2: rs2, Imm: imm})
}

// Branch adds a conditional branch to a text label.
func (b *ProgramBuilder) Branch(op arch.Opcode, rs1, rs2 uint8, name string) {
	b.addRef(name, refRelative, arch.Inst{Op: op, Rs1: rs1, Rs2: rs2})
}

// BEQ branches if rs1 == rs2.
func (b *ProgramBuilder) BEQ(rs1, rs2 uint8, name string) { b.Branch(arch.OpBEQ, rs1, rs2, name) }

// BNE branches if rs1 != rs2.
func (b *ProgramBuilder) BNE(rs1, rs2 uint8, name string) { b.Branch(arch.OpBNE, rs1, rs2, name) }

// BLT branches if rs1 < rs2, signed.
func (b *ProgramBuilder) BLT(rs1, rs2 uint8, name string) { b.Branch(arch.OpBLT, rs1, rs2, name) }

// BGE branches if rs1 >= rs2, signed.
func (b *ProgramBuilder) BGE(rs1, rs2 uint8, name string) { b.Branch(arch.OpBGE, rs1, rs2, name) }

// J jumps to a text label.
func (b *ProgramBuilder) J(name string) {
	b.addRef(name, refRelative, arch.Inst{Op: arch.OpJAL, Rd: arch.Zero})
}

// Call jumps to a text label, leaving the return address in ra.
func (b *ProgramBuilder) Call(name string) {
	b.addRef(name, refRelative, arch.Inst{Op: arch.OpJAL, Rd: arch.RA})
}

// Ret returns to the address in ra.
func (b *ProgramBuilder) Ret() {
	b.AddInst(arch.Inst{Op: arch.OpJALR, Rd: arch.Zero, Rs1: arch.RA})
}

// JALR jumps to rs1+imm, leaving the return address in rd.
func (b *ProgramBuilder) JALR(rd, rs1 uint8, imm int32) {
	b.AddInst(arch.Inst{Op: arch.OpJALR, Rd: rd, Rs1: rs1, Imm: imm})
}

// ECALL traps into the kernel.
func (b *ProgramBuilder) ECALL() {
	b.AddInst(arch.Inst{Op: arch.OpECALL})
}

// Syscall invokes system call nr with whatever arguments are already in
// a0-a5. The result is left in a0.
func (b *ProgramBuilder) Syscall(nr uintptr) {
	b.LI(arch.A7, int32(nr))
	b.ECALL()
}

func (b *ProgramBuilder) addData(name string, d []byte, align int) {
	for len(b.data)%align != 0 {
		b.data = append(b.data, 0)
	}
	if name != "" {
		l := b.label(name)
		if l.text != -1 || l.data != -1 {
			b.setErr("label %q defined twice", name)
			return
		}
		l.data = len(b.data)
	}
	b.data = append(b.data, d...)
}

// CString adds a NUL-terminated string to the data segment.
func (b *ProgramBuilder) CString(name, s string) {
	b.addData(name, append([]byte(s), 0), 1)
}

// Bytes adds raw bytes to the data segment.
func (b *ProgramBuilder) Bytes(name string, d []byte) {
	b.addData(name, d, 1)
}

// Space adds n zero bytes, doubleword aligned, to the data segment.
func (b *ProgramBuilder) Space(name string, n int) {
	b.addData(name, make([]byte, n), 8)
}

// textSize returns the page-rounded size of the text segment.
func (b *ProgramBuilder) textSize() uint64 {
	size, _ := hostarch.PageRoundUp(uint64(len(b.text) * arch.InstSize))
	return size
}

// DataBase returns the load address of the data segment, which immediately
// follows the text. It changes as instructions are added.
func (b *ProgramBuilder) DataBase() hostarch.Addr {
	return TextBase + hostarch.Addr(b.textSize())
}

// address returns the address of the label l.
func (b *ProgramBuilder) address(l *label) hostarch.Addr {
	if l.text != -1 {
		return TextBase + hostarch.Addr(l.text*arch.InstSize)
	}
	return b.DataBase() + hostarch.Addr(l.data)
}

func (b *ProgramBuilder) resolveLabels() error {
	for name, l := range b.labels {
		if l.text == -1 && l.data == -1 {
			return fmt.Errorf("undefined label %q", name)
		}
		target := int64(b.address(l))
		for _, s := range l.sources {
			var v int64
			switch s.typ {
			case refRelative:
				if l.text == -1 {
					return fmt.Errorf("jump to data label %q", name)
				}
				v = target - int64(TextBase) - int64(s.line*arch.InstSize)
			case refAbsolute:
				v = target
			}
			if v < math.MinInt32 || v > math.MaxInt32 {
				return fmt.Errorf("label %q out of range: %d", name, v)
			}
			b.text[s.line].Imm = int32(v)
		}
	}
	return nil
}

// Instructions returns the program's instructions with all labels resolved.
func (b *ProgramBuilder) Instructions() ([]arch.Inst, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.resolveLabels(); err != nil {
		return nil, err
	}
	return b.text, nil
}

// Image returns the assembled program.
func (b *ProgramBuilder) Image() (*loader.Image, error) {
	insts, err := b.Instructions()
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	text := make([]byte, len(insts)*arch.InstSize)
	for i, inst := range insts {
		inst.Encode(text[i*arch.InstSize:])
	}

	img := &loader.Image{
		Entry: TextBase,
		Segments: []loader.Segment{{
			Addr:    TextBase,
			Perms:   hostarch.ReadExecute,
			Data:    text,
			MemSize: uint64(len(text)),
		}},
	}
	if l, ok := b.labels[EntryLabel]; ok {
		if l.text == -1 {
			return nil, fmt.Errorf("entry label %q is not in the text", EntryLabel)
		}
		img.Entry = b.address(l)
	}
	if len(b.data) > 0 {
		img.Segments = append(img.Segments, loader.Segment{
			Addr:    b.DataBase(),
			Perms:   hostarch.ReadWrite,
			Data:    b.data,
			MemSize: uint64(len(b.data)),
		})
	}
	return img, nil
}

// Binary returns the encoded program.
func (b *ProgramBuilder) Binary() ([]byte, error) {
	img, err := b.Image()
	if err != nil {
		return nil, err
	}
	return img.MarshalBinary()
}

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

// Package arch describes the simulated machine: its register file, calling
// convention and instruction encoding.
package arch

import (
	"fmt"

	"github.com/mohae/deepcopy"
	"gvisor.dev/edukernel/pkg/hostarch"
)

// NumRegisters is the number of general purpose registers. Register 0 always
// reads as zero and ignores writes.
const NumRegisters = 32

// ABI register numbers.
const (
	Zero = 0
	RA   = 1
	SP   = 2
	GP   = 3
	TP   = 4
	T0   = 5
	T1   = 6
	T2   = 7
	S0   = 8
	S1   = 9
	A0   = 10
	A1   = 11
	A2   = 12
	A3   = 13
	A4   = 14
	A5   = 15
	A6   = 16
	A7   = 17
	S2   = 18
	S3   = 19
	S4   = 20
	S5   = 21
	S6   = 22
	S7   = 23
	S8   = 24
	S9   = 25
	S10  = 26
	S11  = 27
	T3   = 28
	T4   = 29
	T5   = 30
	T6   = 31
)

var regNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of register r.
func RegName(r uint8) string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("x%d", r)
}

// Registers is the user register file.
type Registers struct {
	// X holds the general purpose registers.
	X [NumRegisters]uint64

	// PC is the program counter.
	PC uint64
}

// Context is the saved user context of a task: its registers, as seen on
// trap entry.
type Context struct {
	Regs Registers
}

// Fork creates and returns an identical copy of this context.
func (c *Context) Fork() *Context {
	return deepcopy.Copy(c).(*Context)
}

// Reset clears all registers.
func (c *Context) Reset() {
	c.Regs = Registers{}
}

// IP returns the current instruction pointer.
func (c *Context) IP() uintptr {
	return uintptr(c.Regs.PC)
}

// SetIP sets the current instruction pointer.
func (c *Context) SetIP(value uintptr) {
	c.Regs.PC = uint64(value)
}

// Stack returns the current stack pointer.
func (c *Context) Stack() uintptr {
	return uintptr(c.Regs.X[SP])
}

// SetStack sets the current stack pointer.
func (c *Context) SetStack(value uintptr) {
	c.Regs.X[SP] = uint64(value)
}

// Return returns the current syscall return value.
func (c *Context) Return() uintptr {
	return uintptr(c.Regs.X[A0])
}

// SetReturn sets the syscall return value.
func (c *Context) SetReturn(value uintptr) {
	c.Regs.X[A0] = uint64(value)
}

// SetArg sets the i-th argument register, as seen by a function entered
// through SetIP.
func (c *Context) SetArg(i int, value uintptr) {
	c.Regs.X[A0+i] = uint64(value)
}

// SyscallNo returns the syscall number according to the calling convention:
// the number is passed in a7.
func (c *Context) SyscallNo() uintptr {
	return uintptr(c.Regs.X[A7])
}

// SyscallArgs provides syscall arguments according to the calling
// convention: arguments are passed in a0 through a5.
func (c *Context) SyscallArgs() SyscallArguments {
	return SyscallArguments{
		SyscallArgument{Value: uintptr(c.Regs.X[A0])},
		SyscallArgument{Value: uintptr(c.Regs.X[A1])},
		SyscallArgument{Value: uintptr(c.Regs.X[A2])},
		SyscallArgument{Value: uintptr(c.Regs.X[A3])},
		SyscallArgument{Value: uintptr(c.Regs.X[A4])},
		SyscallArgument{Value: uintptr(c.Regs.X[A5])},
	}
}

// String implements fmt.Stringer.String.
func (c *Context) String() string {
	return fmt.Sprintf("pc=%#x sp=%#x ra=%#x a0=%#x a7=%d", c.Regs.PC, c.Regs.X[SP], c.Regs.X[RA], c.Regs.X[A0], c.Regs.X[A7])
}

// SyscallArgument is an argument supplied to a syscall implementation. The
// methods used to access the arguments are named after the ***C type name***
// and they convert to the closest Go type available. For example, Int()
// refers to a 32-bit signed integer argument represented in Go as an int32.
//
// Using the accessor methods guarantees that the conversion between types is
// correct, taking into account size and signedness (i.e., zero-extension vs
// signed-extension).
type SyscallArgument struct {
	// Prefer to use accessor methods instead of 'Value' directly.
	Value uintptr
}

// SyscallArguments represents the set of arguments passed to a syscall.
type SyscallArguments [6]SyscallArgument

// Pointer returns the hostarch.Addr representation of a pointer argument.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the int32 representation of a 32-bit signed integer argument.
func (a SyscallArgument) Int() int32 {
	return int32(a.Value)
}

// Uint returns the uint32 representation of a 32-bit unsigned integer argument.
func (a SyscallArgument) Uint() uint32 {
	return uint32(a.Value)
}

// Int64 returns the int64 representation of a 64-bit signed integer argument.
func (a SyscallArgument) Int64() int64 {
	return int64(a.Value)
}

// Uint64 returns the uint64 representation of a 64-bit unsigned integer argument.
func (a SyscallArgument) Uint64() uint64 {
	return uint64(a.Value)
}

// SizeT returns the uint representation of a size_t argument.
func (a SyscallArgument) SizeT() uint {
	return uint(a.Value)
}

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

// Package platform provides a Platform abstraction.
//
// See Platform for more information.
package platform

import (
	"fmt"

	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/arch"
)

// Platform provides execution contexts for tasks.
type Platform interface {
	// NewContext returns a new execution context.
	NewContext() Context
}

// AddressSpace is the memory a Context executes against. Each method checks
// that every page touched is mapped for user access with the matching
// permission, failing with an error otherwise.
type AddressSpace interface {
	// Fetch reads instruction bytes. It requires execute permission.
	Fetch(addr hostarch.Addr, dst []byte) error

	// Load reads data. It requires read permission.
	Load(addr hostarch.Addr, dst []byte) error

	// Store writes data. It requires write permission.
	Store(addr hostarch.Addr, src []byte) error
}

// Context represents the execution context for a single thread.
type Context interface {
	// Switch resumes execution of the thread specified by the arch.Context
	// in the provided address space. This call will block while the thread
	// is executing.
	//
	// Switch may return one of the following special errors:
	//
	// - nil: The Context invoked a system call. The instruction pointer
	// has been advanced past the system call instruction.
	//
	// - ErrContextPreempted: The Context used up its time slice.
	//
	// - ErrContextInterrupt: The Context was interrupted by a call to
	// Interrupt().
	//
	// - ErrContextFault: The Context performed an access not permitted by
	// the address space. The returned *Fault describes the access.
	//
	// - ErrContextIllegalInstruction: The Context attempted to execute an
	// undecodable instruction. The returned *Fault holds its address.
	Switch(as AddressSpace, ac *arch.Context) (*Fault, error)

	// Interrupt interrupts a concurrent call to Switch(), causing it to return
	// ErrContextInterrupt. If there is no concurrent call, the next call to
	// Switch returns ErrContextInterrupt.
	Interrupt()
}

// Fault describes a failed user access.
type Fault struct {
	// Addr is the faulting address.
	Addr hostarch.Addr

	// Access is the access type that failed.
	Access hostarch.AccessType
}

// String implements fmt.Stringer.String.
func (f *Fault) String() string {
	return fmt.Sprintf("%s access at %s", f.Access, f.Addr)
}

var (
	// ErrContextPreempted is returned by Context.Switch() to indicate that
	// the Context exhausted its time slice.
	ErrContextPreempted = fmt.Errorf("interrupted by time slice expiry")

	// ErrContextInterrupt is returned by Context.Switch() to indicate that the
	// Context was interrupted by a call to Context.Interrupt().
	ErrContextInterrupt = fmt.Errorf("interrupted by platform.Context.Interrupt()")

	// ErrContextFault is returned by Context.Switch() to indicate a memory
	// access fault.
	ErrContextFault = fmt.Errorf("memory access fault")

	// ErrContextIllegalInstruction is returned by Context.Switch() to
	// indicate an undecodable instruction.
	ErrContextIllegalInstruction = fmt.Errorf("illegal instruction")
)

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

package edu

// Syscall return codes. Successful calls return a non-negative value.
const (
	// ReturnFailure is the generic failure code.
	ReturnFailure = -1

	// ReturnStillRunning is returned by waitpid and waittid when a matching
	// child exists but has not exited.
	ReturnStillRunning = -2

	// ReturnDeadlock is returned by mutex_lock and semaphore_down when the
	// request was refused because granting it could deadlock.
	ReturnDeadlock = -0xDEAD
)

// Exit codes assigned by the kernel to processes it terminates.
const (
	// ExitFault is the exit code of a process killed by a memory fault.
	ExitFault = -2

	// ExitIllegalInstruction is the exit code of a process killed by an
	// undecodable instruction.
	ExitIllegalInstruction = -3

	// ExitKilled is the exit code of a process terminated by the kernel
	// after an internal consistency check failed.
	ExitKilled = -9
)

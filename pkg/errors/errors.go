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

// Package errors defines the error type returned by kernel operations.
//
// Every kernel failure is an errno. Kernel code returns the shared values in
// linuxerr, and the syscall table turns the errno into the user-visible
// return value, so the package holds no other error kinds.
package errors

import (
	"golang.org/x/sys/unix"
)

// Error is an errno with the message shown in logs.
type Error struct {
	errno   unix.Errno
	message string
}

// New returns an Error for errno. linuxerr creates one per errno; other
// packages compare against those values rather than calling New.
func New(errno unix.Errno, message string) *Error {
	return &Error{errno: errno, message: message}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the errno e stands for.
func (e *Error) Errno() unix.Errno { return e.errno }

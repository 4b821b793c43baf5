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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	"golang.org/x/sys/unix"
	"gvisor.dev/edukernel/pkg/errors"
)

// The following errors are semantically identical to the unix.Errno of the
// same name, but are distinct *errors.Error values. Use Equals to compare
// against either form.
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(unix.EPERM, "operation not permitted")
	ENOENT                = errors.New(unix.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(unix.ESRCH, "no such process")
	EINTR                 = errors.New(unix.EINTR, "interrupted system call")
	ENOEXEC               = errors.New(unix.ENOEXEC, "exec format error")
	EBADF                 = errors.New(unix.EBADF, "bad file number")
	ECHILD                = errors.New(unix.ECHILD, "no child processes")
	EAGAIN                = errors.New(unix.EAGAIN, "try again")
	ENOMEM                = errors.New(unix.ENOMEM, "out of memory")
	EACCES                = errors.New(unix.EACCES, "permission denied")
	EFAULT                = errors.New(unix.EFAULT, "bad address")
	EBUSY                 = errors.New(unix.EBUSY, "device or resource busy")
	EEXIST                = errors.New(unix.EEXIST, "file exists")
	EISDIR                = errors.New(unix.EISDIR, "is a directory")
	EINVAL                = errors.New(unix.EINVAL, "invalid argument")
	EMFILE                = errors.New(unix.EMFILE, "too many open files")
	ESPIPE                = errors.New(unix.ESPIPE, "illegal seek")
	EROFS                 = errors.New(unix.EROFS, "read-only file system")
	EMLINK                = errors.New(unix.EMLINK, "too many links")
	EDEADLK               = errors.New(unix.EDEADLK, "resource deadlock would occur")
	ENAMETOOLONG          = errors.New(unix.ENAMETOOLONG, "file name too long")
	ENOSYS                = errors.New(unix.ENOSYS, "invalid system call number")
)

var errNotValidError = errors.New(unix.Errno(0), "not a valid error")

var errnoTable = map[unix.Errno]*errors.Error{
	0:                 noError,
	unix.EPERM:        EPERM,
	unix.ENOENT:       ENOENT,
	unix.ESRCH:        ESRCH,
	unix.EINTR:        EINTR,
	unix.ENOEXEC:      ENOEXEC,
	unix.EBADF:        EBADF,
	unix.ECHILD:       ECHILD,
	unix.EAGAIN:       EAGAIN,
	unix.ENOMEM:       ENOMEM,
	unix.EACCES:       EACCES,
	unix.EFAULT:       EFAULT,
	unix.EBUSY:        EBUSY,
	unix.EEXIST:       EEXIST,
	unix.EISDIR:       EISDIR,
	unix.EINVAL:       EINVAL,
	unix.EMFILE:       EMFILE,
	unix.ESPIPE:       ESPIPE,
	unix.EROFS:        EROFS,
	unix.EMLINK:       EMLINK,
	unix.EDEADLK:      EDEADLK,
	unix.ENAMETOOLONG: ENAMETOOLONG,
	unix.ENOSYS:       ENOSYS,
}

// ErrorFromUnix returns the *errors.Error for the given unix.Errno. Errnos
// without a registered error map to a "not a valid error" sentinel.
func ErrorFromUnix(err unix.Errno) error {
	e, ok := errnoTable[err]
	if !ok {
		return errNotValidError
	}
	if e == noError {
		return nil
	}
	return e
}

// ToError converts an *errors.Error to a plain error, turning a nil
// *errors.Error into a nil interface.
func ToError(err *errors.Error) error {
	if err == noError {
		return nil
	}
	return err
}

// ToUnix converts to a unix.Errno. It returns 0 for a nil error.
func ToUnix(e *errors.Error) unix.Errno {
	if e == noError {
		return 0
	}
	return e.Errno()
}

// Equals compares a linuxerr to a given error. It returns true if the errors
// carry the same errno, whether err is an *errors.Error or a unix.Errno.
func Equals(e *errors.Error, err error) bool {
	switch v := err.(type) {
	case nil:
		return e == noError
	case *errors.Error:
		if v == nil {
			return e == noError
		}
		return e != noError && e.Errno() == v.Errno()
	case unix.Errno:
		return e != noError && e.Errno() == v
	default:
		return false
	}
}

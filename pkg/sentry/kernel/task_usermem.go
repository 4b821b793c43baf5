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

package kernel

import (
	"bytes"
	"encoding/binary"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
)

// MaxPathLen bounds path strings copied from user memory.
const MaxPathLen = 256

// CopyInBytes copies len(dst) bytes from the task's memory at addr.
func (t *Task) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	m := t.MemoryManager()
	if m == nil {
		return 0, linuxerr.EFAULT
	}
	return m.CopyIn(addr, dst)
}

// CopyOutBytes copies src to the task's memory at addr.
func (t *Task) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	m := t.MemoryManager()
	if m == nil {
		return 0, linuxerr.EFAULT
	}
	return m.CopyOut(addr, src)
}

// CopyInString copies a NUL-terminated string of at most MaxPathLen bytes
// from the task's memory at addr.
func (t *Task) CopyInString(addr hostarch.Addr) (string, error) {
	m := t.MemoryManager()
	if m == nil {
		return "", linuxerr.EFAULT
	}
	return m.CopyInString(addr, MaxPathLen)
}

// CopyOutObject encodes v, a fixed-size value, in little-endian byte order
// and copies it to the task's memory at addr. Nothing is written unless the
// whole destination is writable.
func (t *Task) CopyOutObject(addr hostarch.Addr, v any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return linuxerr.EINVAL
	}
	m := t.MemoryManager()
	if m == nil {
		return linuxerr.EFAULT
	}
	if _, err := m.CopyOut(addr, buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// CopyInObject copies a fixed-size little-endian value from the task's
// memory at addr into v, which must be a pointer.
func (t *Task) CopyInObject(addr hostarch.Addr, v any) error {
	buf := make([]byte, binary.Size(v))
	if _, err := t.CopyInBytes(addr, buf); err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, v); err != nil {
		return linuxerr.EINVAL
	}
	return nil
}

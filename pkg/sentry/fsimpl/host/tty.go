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

// Package host provides files backed by host I/O streams.
package host

import (
	"io"

	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/refs"
	"gvisor.dev/edukernel/pkg/sentry/fs"
	"gvisor.dev/edukernel/pkg/sync"
)

// TTYFile is a console file. Reads come from the host reader and writes go
// to the host writer. A nil reader reads as end of file.
type TTYFile struct {
	refs.AtomicRefCount

	// mu serializes host I/O.
	mu sync.Mutex
	r  io.Reader
	w  io.Writer
}

var _ fs.File = (*TTYFile)(nil)

// NewTTYFile returns a console file. Either stream may be nil.
func NewTTYFile(r io.Reader, w io.Writer) *TTYFile {
	return &TTYFile{r: r, w: w}
}

// Readable implements fs.File.Readable.
func (t *TTYFile) Readable() bool { return true }

// Writable implements fs.File.Writable.
func (t *TTYFile) Writable() bool { return t.w != nil }

// Read implements fs.File.Read.
func (t *TTYFile) Read(dst []byte) (int, error) {
	if t.r == nil {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.r.Read(dst)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Write implements fs.File.Write.
func (t *TTYFile) Write(src []byte) (int, error) {
	if t.w == nil {
		return 0, linuxerr.EBADF
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Write(src)
}

// Stat implements fs.File.Stat.
func (t *TTYFile) Stat() fs.Stat {
	return fs.Stat{Mode: edu.S_IFCHR, Nlink: 1}
}

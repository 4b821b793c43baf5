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
	"testing"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/sentry/fsimpl/host"
)

func TestFDTableLowestFree(t *testing.T) {
	fdt := NewFDTable()
	files := []*host.TTYFile{host.NewTTYFile(nil, nil), host.NewTTYFile(nil, nil), host.NewTTYFile(nil, nil)}
	for i, f := range files {
		fd, err := fdt.NewFD(f)
		if err != nil || fd != i {
			t.Fatalf("NewFD got: (%d, %v), expected: (%d, nil)", fd, err, i)
		}
	}
	if err := fdt.Remove(1); err != nil {
		t.Fatalf("Remove(1) failed: %v", err)
	}
	if err := fdt.Remove(1); !linuxerr.Equals(linuxerr.EBADF, err) {
		t.Errorf("second Remove(1) got error: %v, expected: %v", err, linuxerr.EBADF)
	}
	if got := files[1].ReadRefs(); got != 0 {
		t.Errorf("closed file refs got: %d, expected: 0", got)
	}
	if fd, _ := fdt.NewFD(host.NewTTYFile(nil, nil)); fd != 1 {
		t.Errorf("NewFD after Remove got: %d, expected: 1", fd)
	}
	if _, err := fdt.Get(7); !linuxerr.Equals(linuxerr.EBADF, err) {
		t.Errorf("Get(7) got error: %v, expected: %v", err, linuxerr.EBADF)
	}
}

func TestFDTableForkSharesFiles(t *testing.T) {
	fdt := NewFDTable()
	f := host.NewTTYFile(nil, nil)
	fdt.NewFD(f)

	child := fdt.Fork()
	if got := f.ReadRefs(); got != 2 {
		t.Errorf("refs after Fork got: %d, expected: 2", got)
	}
	got, err := child.Get(0)
	if err != nil || got != f {
		t.Fatalf("child Get(0) got: (%v, %v), expected the shared file", got, err)
	}
	got.DecRef()

	fdt.RemoveAll()
	if got := f.ReadRefs(); got != 1 {
		t.Errorf("refs after parent RemoveAll got: %d, expected: 1", got)
	}
	if got := child.Len(); got != 1 {
		t.Errorf("child Len got: %d, expected: 1", got)
	}
	child.RemoveAll()
	if got := f.ReadRefs(); got != 0 {
		t.Errorf("refs after child RemoveAll got: %d, expected: 0", got)
	}
}

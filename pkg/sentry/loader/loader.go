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

// Package loader loads executable images into a MemoryManager.
package loader

import (
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/sentry/mm"
)

const (
	// UserStackTop is the exclusive top of the main thread's stack.
	UserStackTop hostarch.Addr = 0x80000000

	// DefaultStackSize is the default size of each thread stack.
	DefaultStackSize = 2 * hostarch.PageSize
)

// StackRange returns the stack range of thread tid. Stacks are laid out
// downward from UserStackTop, one guard page apart.
func StackRange(tid int, size uint64) hostarch.AddrRange {
	size, _ = hostarch.PageRoundUp(size)
	top := UserStackTop - hostarch.Addr(uint64(tid)*(size+hostarch.PageSize))
	return hostarch.AddrRange{Start: top - hostarch.Addr(size), End: top}
}

// MapStack maps the stack of thread tid into m.
func MapStack(m *mm.MemoryManager, tid int, size uint64) (hostarch.AddrRange, error) {
	ar := StackRange(tid, size)
	err := m.MMap(mm.MMapOpts{
		Addr:   ar.Start,
		Length: ar.Length(),
		Perms:  hostarch.ReadWrite,
		Hint:   "[stack]",
	})
	return ar, err
}

// LoadedImage describes a freshly loaded program.
type LoadedImage struct {
	// Entry is the initial instruction pointer.
	Entry hostarch.Addr

	// Stack is the main thread's stack.
	Stack hostarch.AddrRange

	// Brk is the initial program break, just past the last segment.
	Brk hostarch.Addr
}

// Load parses data as an image and maps it into m, which should be empty,
// along with the main thread's stack. The program break is set to the first
// page past the highest segment.
//
// It returns ENOEXEC if data is not a valid image.
func Load(m *mm.MemoryManager, data []byte, stackSize uint64) (LoadedImage, error) {
	img, err := Parse(data)
	if err != nil {
		return LoadedImage{}, err
	}
	return LoadImage(m, img, stackSize)
}

// LoadImage maps an already parsed image into m.
func LoadImage(m *mm.MemoryManager, img *Image, stackSize uint64) (LoadedImage, error) {
	var end hostarch.Addr
	for _, s := range img.Segments {
		ar, _ := s.Range()
		if err := m.MMap(mm.MMapOpts{
			Addr:   ar.Start,
			Length: ar.Length(),
			Perms:  s.Perms,
			Hint:   "[image]",
		}); err != nil {
			return LoadedImage{}, err
		}
		if _, err := m.WriteKernel(s.Addr, s.Data); err != nil {
			return LoadedImage{}, err
		}
		if ar.End > end {
			end = ar.End
		}
	}

	stack, err := MapStack(m, 0, stackSize)
	if err != nil {
		return LoadedImage{}, err
	}
	m.BrkSetup(end)

	return LoadedImage{
		Entry: img.Entry,
		Stack: stack,
		Brk:   end,
	}, nil
}

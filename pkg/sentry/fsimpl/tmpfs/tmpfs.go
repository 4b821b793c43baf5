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

// Package tmpfs provides an in-memory filesystem whose contents never
// persist.
//
// Names are kept in a flat hard-link table mapping each path to an inode.
// Several names may share one inode; an inode lives as long as a name or an
// open File refers to it.
package tmpfs

import (
	"gvisor.dev/edukernel/pkg/abi/edu"
	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/log"
	"gvisor.dev/edukernel/pkg/sentry/fs"
	"gvisor.dev/edukernel/pkg/sync"
)

// Filesystem is a fs.Filesystem.
type Filesystem struct {
	// mu protects the fields below.
	mu sync.Mutex

	// links is the hard-link table.
	links map[string]*inode

	// nextIno is the number of the next inode to be created. Inode 0 is
	// reserved for the root.
	nextIno uint64
}

var _ fs.Filesystem = (*Filesystem)(nil)

// NewFilesystem returns an empty filesystem.
func NewFilesystem() *Filesystem {
	return &Filesystem{
		links:   make(map[string]*inode),
		nextIno: 1,
	}
}

// inode is a regular file.
type inode struct {
	ino uint64

	// mu protects the fields below.
	mu sync.Mutex

	// nlink is protected by Filesystem.mu.
	nlink uint32

	data []byte
}

func (i *inode) truncate() {
	i.mu.Lock()
	i.data = nil
	i.mu.Unlock()
}

func (fsys *Filesystem) newInodeLocked() *inode {
	i := &inode{ino: fsys.nextIno}
	fsys.nextIno++
	return i
}

// Open implements fs.Filesystem.Open.
func (fsys *Filesystem) Open(path string, flags uint32) (fs.File, error) {
	if path == "" {
		return nil, linuxerr.ENOENT
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	i, ok := fsys.links[path]
	switch {
	case !ok && flags&edu.O_CREATE == 0:
		return nil, linuxerr.ENOENT
	case !ok:
		i = fsys.newInodeLocked()
		i.nlink = 1
		fsys.links[path] = i
		log.Debugf("tmpfs: created %q as inode %d", path, i.ino)
	case flags&(edu.O_CREATE|edu.O_TRUNC) != 0:
		i.truncate()
	}

	readable, writable := fs.AccessMode(flags)
	return &regularFile{fsys: fsys, inode: i, readable: readable, writable: writable}, nil
}

// Link implements fs.Filesystem.Link.
func (fsys *Filesystem) Link(oldpath, newpath string) error {
	if oldpath == newpath {
		return linuxerr.EINVAL
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	i, ok := fsys.links[oldpath]
	if !ok {
		return linuxerr.ENOENT
	}
	if _, ok := fsys.links[newpath]; ok {
		return linuxerr.EEXIST
	}
	fsys.links[newpath] = i
	i.nlink++
	return nil
}

// Unlink implements fs.Filesystem.Unlink.
func (fsys *Filesystem) Unlink(path string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	i, ok := fsys.links[path]
	if !ok {
		return linuxerr.ENOENT
	}
	delete(fsys.links, path)
	i.nlink--
	return nil
}

// ReadFile implements fs.Filesystem.ReadFile.
func (fsys *Filesystem) ReadFile(path string) ([]byte, error) {
	fsys.mu.Lock()
	i, ok := fsys.links[path]
	fsys.mu.Unlock()
	if !ok {
		return nil, linuxerr.ENOENT
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]byte(nil), i.data...), nil
}

// WriteFile creates or replaces the file linked at path with data.
func (fsys *Filesystem) WriteFile(path string, data []byte) {
	fsys.mu.Lock()
	i, ok := fsys.links[path]
	if !ok {
		i = fsys.newInodeLocked()
		i.nlink = 1
		fsys.links[path] = i
	}
	fsys.mu.Unlock()
	i.mu.Lock()
	i.data = append([]byte(nil), data...)
	i.mu.Unlock()
}

// Names returns the number of names in the hard-link table.
func (fsys *Filesystem) Names() int {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return len(fsys.links)
}

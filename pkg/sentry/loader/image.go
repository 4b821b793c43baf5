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

package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gvisor.dev/edukernel/pkg/errors/linuxerr"
	"gvisor.dev/edukernel/pkg/hostarch"
	"gvisor.dev/edukernel/pkg/log"
)

const (
	// imageMagic identifies an executable image.
	imageMagic = "EDUX"

	// imageVersion is the only supported format version.
	imageVersion = 1

	// maxSegments bounds the number of segments in an image.
	maxSegments = 16
)

// Segment flag bits. They match the mmap port bits.
const (
	SegmentRead = 1 << iota
	SegmentWrite
	SegmentExecute
)

// fileHeader begins every image.
type fileHeader struct {
	Magic       [4]byte
	Version     uint32
	Entry       uint64
	NumSegments uint32
	_           uint32
}

// segmentHeader follows the file header, once per segment. Segment contents
// follow the last header, in segment order.
type segmentHeader struct {
	Addr     uint64
	MemSize  uint64
	FileSize uint64
	Flags    uint32
	_        uint32
}

// Segment is a loadable region of an image.
type Segment struct {
	// Addr is the page-aligned load address.
	Addr hostarch.Addr

	// Perms are the mapping permissions.
	Perms hostarch.AccessType

	// Data is copied to the start of the segment.
	Data []byte

	// MemSize is the size of the segment in memory. Bytes past len(Data)
	// are zero.
	MemSize uint64
}

// Range returns the page-rounded range occupied by s.
func (s *Segment) Range() (hostarch.AddrRange, bool) {
	length, ok := hostarch.PageRoundUp(s.MemSize)
	if !ok {
		return hostarch.AddrRange{}, false
	}
	return s.Addr.ToRange(length)
}

// Image is an executable program.
type Image struct {
	// Entry is the initial instruction pointer.
	Entry hostarch.Addr

	// Segments are the regions to map.
	Segments []Segment
}

func permsToFlags(at hostarch.AccessType) uint32 {
	var f uint32
	if at.Read {
		f |= SegmentRead
	}
	if at.Write {
		f |= SegmentWrite
	}
	if at.Execute {
		f |= SegmentExecute
	}
	return f
}

func flagsToPerms(f uint32) hostarch.AccessType {
	return hostarch.AccessType{
		Read:    f&SegmentRead != 0,
		Write:   f&SegmentWrite != 0,
		Execute: f&SegmentExecute != 0,
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.MarshalBinary.
func (img *Image) MarshalBinary() ([]byte, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	hdr := fileHeader{
		Version:     imageVersion,
		Entry:       uint64(img.Entry),
		NumSegments: uint32(len(img.Segments)),
	}
	copy(hdr.Magic[:], imageMagic)
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	for _, s := range img.Segments {
		sh := segmentHeader{
			Addr:     uint64(s.Addr),
			MemSize:  s.MemSize,
			FileSize: uint64(len(s.Data)),
			Flags:    permsToFlags(s.Perms),
		}
		if err := binary.Write(&buf, binary.LittleEndian, &sh); err != nil {
			return nil, err
		}
	}
	for _, s := range img.Segments {
		buf.Write(s.Data)
	}
	return buf.Bytes(), nil
}

// Parse decodes an image. It returns ENOEXEC if data is not a valid image.
func Parse(data []byte) (*Image, error) {
	r := bytes.NewReader(data)
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, linuxerr.ENOEXEC
	}
	if string(hdr.Magic[:]) != imageMagic {
		log.Infof("Image has bad magic %q", hdr.Magic[:])
		return nil, linuxerr.ENOEXEC
	}
	if hdr.Version != imageVersion || hdr.NumSegments == 0 || hdr.NumSegments > maxSegments {
		log.Infof("Unsupported image: version %d, %d segments", hdr.Version, hdr.NumSegments)
		return nil, linuxerr.ENOEXEC
	}

	img := &Image{Entry: hostarch.Addr(hdr.Entry)}
	shs := make([]segmentHeader, hdr.NumSegments)
	if err := binary.Read(r, binary.LittleEndian, shs); err != nil {
		return nil, linuxerr.ENOEXEC
	}
	for _, sh := range shs {
		if sh.FileSize > uint64(r.Len()) {
			return nil, linuxerr.ENOEXEC
		}
		d := make([]byte, sh.FileSize)
		r.Read(d)
		img.Segments = append(img.Segments, Segment{
			Addr:    hostarch.Addr(sh.Addr),
			Perms:   flagsToPerms(sh.Flags),
			Data:    d,
			MemSize: sh.MemSize,
		})
	}
	if err := img.validate(); err != nil {
		log.Infof("Invalid image: %v", err)
		return nil, linuxerr.ENOEXEC
	}
	return img, nil
}

// validate checks that segments are page-aligned, non-overlapping and
// accessible, and that the entry point lies in an executable segment.
func (img *Image) validate() error {
	if len(img.Segments) == 0 || len(img.Segments) > maxSegments {
		return fmt.Errorf("image has %d segments", len(img.Segments))
	}
	entryOK := false
	var ranges []hostarch.AddrRange
	for i, s := range img.Segments {
		if !s.Addr.IsPageAligned() {
			return fmt.Errorf("segment %d address %s is not page-aligned", i, s.Addr)
		}
		if !s.Perms.Any() {
			return fmt.Errorf("segment %d has no permissions", i)
		}
		if uint64(len(s.Data)) > s.MemSize {
			return fmt.Errorf("segment %d has %d bytes of data but size %d", i, len(s.Data), s.MemSize)
		}
		ar, ok := s.Range()
		if !ok || ar.Length() == 0 {
			return fmt.Errorf("segment %d has invalid size %d", i, s.MemSize)
		}
		for _, prev := range ranges {
			if prev.Overlaps(ar) {
				return fmt.Errorf("segment %d %v overlaps %v", i, ar, prev)
			}
		}
		ranges = append(ranges, ar)
		if s.Perms.Execute && ar.Contains(img.Entry) {
			entryOK = true
		}
	}
	if !entryOK {
		return fmt.Errorf("entry point %s is not in an executable segment", img.Entry)
	}
	return nil
}

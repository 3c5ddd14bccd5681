// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package devreader

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

// MMap is the default Reader backend: it maps the whole image into
// the address space once at Open time, turning every ReadAt into a
// plain memory copy instead of a pread(2) syscall. This is the
// backend the scanner's worker pool uses, since workers do large
// numbers of small reads across the same image.
type MMap struct {
	name string
	f    *os.File
	data mmap.MMap
}

var _ Reader = (*MMap)(nil)

func OpenMMap(name string) (*MMap, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("devreader: mmap %q: %w", name, err)
	}
	return &MMap{name: name, f: f, data: data}, nil
}

func (r *MMap) Name() string { return r.name }

func (r *MMap) Size() btrfsvol.PhysicalAddr {
	return btrfsvol.PhysicalAddr(len(r.data))
}

func (r *MMap) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	if off < 0 || int64(off) > int64(len(r.data)) {
		return 0, fmt.Errorf("devreader: read at %v: out of range (size=%v)", off, len(r.data))
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("devreader: short read at %v: got %v bytes, wanted %v", off, n, len(p))
	}
	return n, nil
}

func (r *MMap) Close() error {
	if err := r.data.Unmap(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

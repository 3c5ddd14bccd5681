// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package devreader

import (
	"io"
	"os"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/diskio"
)

// osFileAdapter satisfies diskio.File so osFile can be handed to
// diskio.NewBufferedFile; it never has more than the raw pread(2)/
// pwrite(2) semantics of *os.File.
type osFileAdapter struct{ f *os.File }

var _ diskio.File[btrfsvol.PhysicalAddr] = osFileAdapter{}

func (a osFileAdapter) Name() string { return a.f.Name() }

func (a osFileAdapter) Size() btrfsvol.PhysicalAddr {
	size, err := a.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0
	}
	return btrfsvol.PhysicalAddr(size)
}

func (a osFileAdapter) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	return a.f.ReadAt(p, int64(off))
}

func (a osFileAdapter) WriteAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	return a.f.WriteAt(p, int64(off))
}

func (a osFileAdapter) Close() error { return a.f.Close() }

// osFileBlockSize/osFileCacheBlocks pick the block-buffer granularity
// for OSFile's read cache: one tree-node's worth of bytes at the
// scanner's default alignment, cached 256 blocks deep -- enough to
// hold a chunk-tree BFS frontier's worth of hot nodes without
// re-reading them from disk on every worklist pop.
const (
	osFileBlockSize   = btrfsvol.PhysicalAddr(0x10000)
	osFileCacheBlocks = 256
)

// OSFile is the plain pread(2)-backed Reader, grounded on the
// teacher's diskio.OSFile, with reads block-cached through
// diskio.NewBufferedFile (an ARC cache backed by
// hashicorp/golang-lru, the same containers.LRUCache the teacher's
// own diskio package already wraps it in). It is the fallback when
// mmap is unavailable (network filesystems, sparse devices larger
// than the address space allows to map).
type OSFile struct {
	f     *os.File
	inner diskio.File[btrfsvol.PhysicalAddr]
}

var _ Reader = (*OSFile)(nil)

func OpenOSFile(name string, flag int) (*OSFile, error) {
	f, err := os.OpenFile(name, flag, 0)
	if err != nil {
		return nil, err
	}
	adapter := osFileAdapter{f: f}
	return &OSFile{
		f:     f,
		inner: diskio.NewBufferedFile[btrfsvol.PhysicalAddr](adapter, osFileBlockSize, osFileCacheBlocks),
	}, nil
}

func (r *OSFile) Name() string { return r.f.Name() }

func (r *OSFile) Size() btrfsvol.PhysicalAddr {
	return r.inner.Size()
}

func (r *OSFile) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	return r.inner.ReadAt(p, off)
}

func (r *OSFile) Close() error { return r.f.Close() }

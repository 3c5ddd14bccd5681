// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package devreader implements the Device Reader collaborator (C1):
// it opens a raw block-device image (local file, memory-mapped file,
// or an object in S3) and exposes seek-free, concurrency-safe
// read-at-offset access plus the image's length.
package devreader

import (
	"fmt"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

// Reader is the external collaborator contract of §1: open, seek (via
// ReadAt's offset), read at offset, and report length. It is safe for
// concurrent use by multiple goroutines, each doing independent
// ReadAt calls -- no internal seek cursor is shared between callers.
type Reader interface {
	Name() string
	Size() btrfsvol.PhysicalAddr
	ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error)
	Close() error
}

// ReadFull reads exactly len(p) bytes at off, the way every
// structure parser in btrfstree expects to be able to.
func ReadFull(r Reader, p []byte, off btrfsvol.PhysicalAddr) error {
	n, err := r.ReadAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("devreader: short read at %v: got %v bytes, wanted %v", off, n, len(p))
	}
	return nil
}

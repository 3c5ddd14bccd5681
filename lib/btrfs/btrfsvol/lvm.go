// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol

import (
	"bytes"
	"fmt"

	"github.com/yakfsrecon/btrfs-forensic/lib/diskio"
)

// Volume joins a Cache (the logical->physical chunk map, C4) with a
// set of open physical devices to present the logical address space
// of a multi-device filesystem as a single diskio.ReaderAt.
//
// This is read-only: reconstruction never writes back to the
// filesystem it's recovering, only to the record store.
type Volume[PhysicalVolume diskio.ReaderAt[PhysicalAddr]] struct {
	Cache *Cache

	devs map[DeviceID]PhysicalVolume
}

var _ diskio.ReaderAt[LogicalAddr] = (*Volume[diskio.ReaderAt[PhysicalAddr]])(nil)

func NewVolume[PhysicalVolume diskio.ReaderAt[PhysicalAddr]](cache *Cache) *Volume[PhysicalVolume] {
	if cache == nil {
		cache = new(Cache)
	}
	return &Volume[PhysicalVolume]{
		Cache: cache,
		devs:  make(map[DeviceID]PhysicalVolume),
	}
}

func (lv *Volume[PhysicalVolume]) AddPhysicalVolume(id DeviceID, dev PhysicalVolume) error {
	if lv.devs == nil {
		lv.devs = make(map[DeviceID]PhysicalVolume)
	}
	if _, exists := lv.devs[id]; exists {
		return fmt.Errorf("(%p).AddPhysicalVolume: already have a physical volume with id=%v", lv, id)
	}
	lv.devs[id] = dev
	return nil
}

func (lv *Volume[PhysicalVolume]) PhysicalVolumes() map[DeviceID]PhysicalVolume {
	dup := make(map[DeviceID]PhysicalVolume, len(lv.devs))
	for k, v := range lv.devs {
		dup[k] = v
	}
	return dup
}

// ReadAt reads len(dat) bytes of logical data starting at laddr,
// resolving each extent through the Cache.
func (lv *Volume[PhysicalVolume]) ReadAt(dat []byte, laddr LogicalAddr) (int, error) {
	done := 0
	for done < len(dat) {
		n, err := lv.readChunk(dat[done:], laddr+LogicalAddr(done))
		done += n
		if err != nil {
			return done, err
		}
		if n == 0 {
			return done, fmt.Errorf("read: no progress at logical address %v", laddr+LogicalAddr(done))
		}
	}
	return done, nil
}

func (lv *Volume[PhysicalVolume]) readChunk(dat []byte, laddr LogicalAddr) (int, error) {
	mappings, err := lv.Cache.Translate(laddr, AddrDelta(len(dat)))
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, &UnmappedError{Logical: laddr}
	}
	first := mappings[0]
	buf := make([]byte, first.Len)
	dev, ok := lv.devs[first.PAddr.Dev]
	if !ok {
		return 0, fmt.Errorf("read: device=%v is not open", first.PAddr.Dev)
	}
	if _, err := dev.ReadAt(buf, first.PAddr.Addr); err != nil {
		return 0, fmt.Errorf("read device=%v paddr=%v: %w", first.PAddr.Dev, first.PAddr.Addr, err)
	}
	copy(dat, buf)
	return int(first.Len), nil
}

// ReadAtChecked is like ReadAt, but for chunks with multiple stripe
// copies at the same logical offset (DUP/RAID1/RAID10/RAID1C3/
// RAID1C4), it reads every copy and returns an error if they
// disagree, rather than silently trusting the first.
func (lv *Volume[PhysicalVolume]) ReadAtChecked(dat []byte, laddr LogicalAddr, mirrors []Extent) (int, error) {
	if len(mirrors) == 0 {
		return 0, &UnmappedError{Logical: laddr}
	}
	n := mirrors[0].Len
	if AddrDelta(len(dat)) < n {
		n = AddrDelta(len(dat))
	}
	buf := make([]byte, n)
	var first []byte
	for i, m := range mirrors {
		dev, ok := lv.devs[m.PAddr.Dev]
		if !ok {
			return 0, fmt.Errorf("read: device=%v is not open", m.PAddr.Dev)
		}
		if _, err := dev.ReadAt(buf, m.PAddr.Addr); err != nil {
			return 0, fmt.Errorf("read device=%v paddr=%v: %w", m.PAddr.Dev, m.PAddr.Addr, err)
		}
		if i == 0 {
			first = append([]byte(nil), buf...)
			copy(dat, buf)
		} else if !bytes.Equal(first, buf) {
			return 0, fmt.Errorf("inconsistent mirrors at laddr=%v len=%v", laddr, len(buf))
		}
	}
	return int(n), nil
}

// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package internal

import (
	"fmt"
	"math"
	"time"

	"github.com/yakfsrecon/btrfs-forensic/lib/binstruct"
	"github.com/yakfsrecon/btrfs-forensic/lib/containers"
)

type Generation uint64

type Key struct {
	ObjectID      ObjID    `bin:"off=0x0, siz=0x8"` // Each tree has its own set of Object IDs.
	ItemType      ItemType `bin:"off=0x8, siz=0x1"`
	Offset        uint64   `bin:"off=0x9, siz=0x8"` // The meaning depends on the item type.
	binstruct.End `bin:"off=0x11"`
}

const MaxOffset = uint64(math.MaxUint64)

var MaxKey = Key{
	ObjectID: ObjID(math.MaxUint64),
	ItemType: MAX_KEY,
	Offset:   MaxOffset,
}

// mimics btrfs-progs' print-tree.c:btrfs_print_key()
func (k Key) Format(tree ObjID) string {
	switch tree {
	case UUID_TREE_OBJECTID:
		return fmt.Sprintf("(%v %v %#08x)", k.ObjectID.Format(k.ItemType), k.ItemType, k.Offset)
	case ROOT_TREE_OBJECTID, QUOTA_TREE_OBJECTID:
		return fmt.Sprintf("(%v %v %v)", k.ObjectID.Format(k.ItemType), k.ItemType, ObjID(k.Offset).Format(k.ItemType))
	default:
		if k.Offset == MaxOffset {
			return fmt.Sprintf("(%v %v -1)", k.ObjectID.Format(k.ItemType), k.ItemType)
		}
		return fmt.Sprintf("(%v %v %v)", k.ObjectID.Format(k.ItemType), k.ItemType, k.Offset)
	}
}

func (k Key) String() string {
	return k.Format(0)
}

// Mm returns the key immediately preceding k in (objectid,type,offset)
// order, saturating at the zero key.
func (k Key) Mm() Key {
	switch {
	case k.Offset > 0:
		k.Offset--
	case k.ItemType > 0:
		k.ItemType--
		k.Offset = MaxOffset
	case k.ObjectID > 0:
		k.ObjectID--
		k.ItemType = MAX_KEY
		k.Offset = MaxOffset
	}
	return k
}

// Pp returns the key immediately following k, saturating at MaxKey.
func (k Key) Pp() Key {
	switch {
	case k.Offset < MaxOffset:
		k.Offset++
	case k.ItemType < MAX_KEY:
		k.ItemType++
		k.Offset = 0
	case k.ObjectID < MAX_OBJECTID:
		k.ObjectID++
		k.ItemType = 0
		k.Offset = 0
	}
	return k
}

func (a Key) Cmp(b Key) int {
	if d := containers.CmpUint(a.ObjectID, b.ObjectID); d != 0 {
		return d
	}
	if d := containers.CmpUint(a.ItemType, b.ItemType); d != 0 {
		return d
	}
	return containers.CmpUint(a.Offset, b.Offset)
}

var _ containers.Ordered[Key] = Key{}

type Time struct {
	Sec           int64  `bin:"off=0x0, siz=0x8"` // Number of seconds since 1970-01-01T00:00:00Z.
	NSec          uint32 `bin:"off=0x8, siz=0x4"` // Number of nanoseconds since the beginning of the second.
	binstruct.End `bin:"off=0xc"`
}

func (t Time) ToStd() time.Time {
	return time.Unix(t.Sec, int64(t.NSec))
}

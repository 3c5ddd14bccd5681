// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/internal"
)

// Key, ItemType, and ObjID live in lib/btrfs/internal so that both
// btrfsprim and btrfsitem can depend on them without depending on
// each other.
type (
	Key      = internal.Key
	ItemType = internal.ItemType
	ObjID    = internal.ObjID
)

const (
	MaxOffset      = internal.MaxOffset
	MAX_KEY        = internal.MAX_KEY
	MAX_OBJECTID   = internal.MAX_OBJECTID
	CHUNK_ITEM_KEY = internal.CHUNK_ITEM_KEY

	INODE_ITEM_KEY       = internal.INODE_ITEM_KEY
	INODE_REF_KEY        = internal.INODE_REF_KEY
	XATTR_ITEM_KEY       = internal.XATTR_ITEM_KEY
	DIR_ITEM_KEY         = internal.DIR_ITEM_KEY
	DIR_INDEX_KEY        = internal.DIR_INDEX_KEY
	ROOT_ITEM_KEY        = internal.ROOT_ITEM_KEY
	ROOT_BACKREF_KEY     = internal.ROOT_BACKREF_KEY
	ROOT_REF_KEY         = internal.ROOT_REF_KEY
	EXTENT_ITEM_KEY      = internal.EXTENT_ITEM_KEY
	DEV_EXTENT_KEY       = internal.DEV_EXTENT_KEY
	DEV_ITEM_KEY         = internal.DEV_ITEM_KEY
	FILE_EXTENT_ITEM_KEY = internal.FILE_EXTENT_ITEM_KEY
)

var MaxKey = internal.MaxKey

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/internal"
)

// The well-known static object IDs, re-exported from lib/btrfs/internal
// (where they live so that btrfsitem can use them without importing
// btrfsprim).
const (
	ROOT_TREE_OBJECTID        = internal.ROOT_TREE_OBJECTID
	EXTENT_TREE_OBJECTID      = internal.EXTENT_TREE_OBJECTID
	CHUNK_TREE_OBJECTID       = internal.CHUNK_TREE_OBJECTID
	DEV_TREE_OBJECTID         = internal.DEV_TREE_OBJECTID
	FS_TREE_OBJECTID          = internal.FS_TREE_OBJECTID
	ROOT_TREE_DIR_OBJECTID    = internal.ROOT_TREE_DIR_OBJECTID
	CSUM_TREE_OBJECTID        = internal.CSUM_TREE_OBJECTID
	QUOTA_TREE_OBJECTID       = internal.QUOTA_TREE_OBJECTID
	UUID_TREE_OBJECTID        = internal.UUID_TREE_OBJECTID
	FREE_SPACE_TREE_OBJECTID  = internal.FREE_SPACE_TREE_OBJECTID
	BLOCK_GROUP_TREE_OBJECTID = internal.BLOCK_GROUP_TREE_OBJECTID

	DEV_STATS_OBJECTID = internal.DEV_STATS_OBJECTID

	BALANCE_OBJECTID         = internal.BALANCE_OBJECTID
	ORPHAN_OBJECTID          = internal.ORPHAN_OBJECTID
	TREE_LOG_OBJECTID        = internal.TREE_LOG_OBJECTID
	TREE_LOG_FIXUP_OBJECTID  = internal.TREE_LOG_FIXUP_OBJECTID
	TREE_RELOC_OBJECTID      = internal.TREE_RELOC_OBJECTID
	DATA_RELOC_TREE_OBJECTID = internal.DATA_RELOC_TREE_OBJECTID
	EXTENT_CSUM_OBJECTID     = internal.EXTENT_CSUM_OBJECTID
	FREE_SPACE_OBJECTID      = internal.FREE_SPACE_OBJECTID
	FREE_INO_OBJECTID        = internal.FREE_INO_OBJECTID

	MULTIPLE_OBJECTIDS = internal.MULTIPLE_OBJECTIDS

	FIRST_FREE_OBJECTID = internal.FIRST_FREE_OBJECTID
	LAST_FREE_OBJECTID  = internal.LAST_FREE_OBJECTID

	DEV_ITEMS_OBJECTID        = internal.DEV_ITEMS_OBJECTID
	FIRST_CHUNK_TREE_OBJECTID = internal.FIRST_CHUNK_TREE_OBJECTID

	EMPTY_SUBVOL_DIR_OBJECTID = internal.EMPTY_SUBVOL_DIR_OBJECTID
)

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfstree

import (
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
)

// Trees is implemented by whatever can do a binary search over a
// given tree's leaf items: the Translation Walker (C6), once it has
// enough of the chunk tree translated to read arbitrary tree nodes.
//
// TreeSearch performs a binary search over the leaves of the tree
// named by treeID: search is called with each candidate key and the
// size of its item, and must return <0 if the candidate is before the
// wanted item, >0 if it is after, and 0 on a match.
type Trees interface {
	TreeSearch(treeID btrfsprim.ObjID, search func(key btrfsprim.Key, itemSize uint32) int) (Item, error)
}

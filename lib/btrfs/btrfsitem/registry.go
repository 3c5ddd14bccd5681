// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsitem

import (
	"reflect"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
)

// Key-type constants, re-exported unqualified the way UnmarshalItem
// in items.go expects to find them.
const (
	UNTYPED_KEY              = btrfsprim.ItemType(0)
	INODE_ITEM_KEY           = btrfsprim.ItemType(1)
	INODE_REF_KEY            = btrfsprim.ItemType(12)
	XATTR_ITEM_KEY           = btrfsprim.ItemType(24)
	ORPHAN_ITEM_KEY          = btrfsprim.ItemType(48)
	DIR_ITEM_KEY             = btrfsprim.ItemType(84)
	DIR_INDEX_KEY            = btrfsprim.ItemType(96)
	ROOT_ITEM_KEY            = btrfsprim.ItemType(132)
	ROOT_BACKREF_KEY         = btrfsprim.ItemType(144)
	ROOT_REF_KEY             = btrfsprim.ItemType(156)
	EXTENT_ITEM_KEY          = btrfsprim.ItemType(168)
	METADATA_ITEM_KEY        = btrfsprim.ItemType(169)
	TREE_BLOCK_REF_KEY       = btrfsprim.ItemType(176)
	EXTENT_DATA_REF_KEY      = btrfsprim.ItemType(178)
	SHARED_BLOCK_REF_KEY     = btrfsprim.ItemType(182)
	SHARED_DATA_REF_KEY      = btrfsprim.ItemType(184)
	BLOCK_GROUP_ITEM_KEY     = btrfsprim.ItemType(192)
	FREE_SPACE_INFO_KEY      = btrfsprim.ItemType(198)
	FREE_SPACE_EXTENT_KEY    = btrfsprim.ItemType(199)
	FREE_SPACE_BITMAP_KEY    = btrfsprim.ItemType(200)
	DEV_EXTENT_KEY           = btrfsprim.ItemType(204)
	DEV_ITEM_KEY             = btrfsprim.ItemType(216)
	CHUNK_ITEM_KEY           = btrfsprim.ItemType(228)
	QGROUP_STATUS_KEY        = btrfsprim.ItemType(240)
	QGROUP_INFO_KEY          = btrfsprim.ItemType(242)
	QGROUP_LIMIT_KEY         = btrfsprim.ItemType(244)
	QGROUP_RELATION_KEY      = btrfsprim.ItemType(246)
	PERSISTENT_ITEM_KEY      = btrfsprim.ItemType(249)
	UUID_SUBVOL_KEY          = btrfsprim.ItemType(251)
	UUID_RECEIVED_SUBVOL_KEY = btrfsprim.ItemType(252)
	EXTENT_CSUM_KEY          = btrfsprim.ItemType(128)
	FILE_EXTENT_ITEM_KEY     = btrfsprim.ItemType(108)
)

// keytype2gotype dispatches a typed key (key.ItemType != UNTYPED_KEY)
// to the Go type that decodes its item payload.
var keytype2gotype = map[btrfsprim.ItemType]reflect.Type{
	INODE_ITEM_KEY:       reflect.TypeOf(Inode{}),
	INODE_REF_KEY:        reflect.TypeOf(InodeRef{}),
	XATTR_ITEM_KEY:       reflect.TypeOf(DirEntry{}),
	ORPHAN_ITEM_KEY:      reflect.TypeOf(Empty{}),
	DIR_ITEM_KEY:         reflect.TypeOf(DirEntry{}),
	DIR_INDEX_KEY:        reflect.TypeOf(DirEntry{}),
	ROOT_ITEM_KEY:        reflect.TypeOf(Root{}),
	ROOT_BACKREF_KEY:     reflect.TypeOf(RootRef{}),
	ROOT_REF_KEY:         reflect.TypeOf(RootRef{}),
	EXTENT_ITEM_KEY:      reflect.TypeOf(Extent{}),
	METADATA_ITEM_KEY:    reflect.TypeOf(Metadata{}),
	TREE_BLOCK_REF_KEY:   reflect.TypeOf(Empty{}),
	EXTENT_DATA_REF_KEY:  reflect.TypeOf(ExtentDataRef{}),
	SHARED_BLOCK_REF_KEY: reflect.TypeOf(Empty{}),
	SHARED_DATA_REF_KEY:  reflect.TypeOf(SharedDataRef{}),
	BLOCK_GROUP_ITEM_KEY: reflect.TypeOf(BlockGroup{}),
	FREE_SPACE_INFO_KEY:  reflect.TypeOf(FreeSpaceInfo{}),
	FREE_SPACE_EXTENT_KEY: reflect.TypeOf(Empty{}),
	FREE_SPACE_BITMAP_KEY: reflect.TypeOf(FreeSpaceBitmap{}),
	DEV_EXTENT_KEY:       reflect.TypeOf(DevExtent{}),
	DEV_ITEM_KEY:         reflect.TypeOf(Dev{}),
	CHUNK_ITEM_KEY:       reflect.TypeOf(Chunk{}),
	QGROUP_STATUS_KEY:    reflect.TypeOf(QGroupStatus{}),
	QGROUP_INFO_KEY:      reflect.TypeOf(QGroupInfo{}),
	QGROUP_LIMIT_KEY:     reflect.TypeOf(QGroupLimit{}),
	QGROUP_RELATION_KEY:  reflect.TypeOf(Empty{}),
	UUID_SUBVOL_KEY:          reflect.TypeOf(UUIDMap{}),
	UUID_RECEIVED_SUBVOL_KEY: reflect.TypeOf(UUIDMap{}),
	EXTENT_CSUM_KEY:          reflect.TypeOf(ExtentCSum{}),
	FILE_EXTENT_ITEM_KEY:     reflect.TypeOf(FileExtent{}),
}

// untypedObjID2gotype dispatches an UNTYPED_KEY item by its key's
// ObjectID (rather than by ItemType), for the handful of item kinds
// that predate the typed-key scheme.
var untypedObjID2gotype = map[btrfsprim.ObjID]reflect.Type{
	btrfsprim.FREE_SPACE_OBJECTID: reflect.TypeOf(FreeSpaceHeader{}),
}

func (BlockGroup) isItem()      {}
func (Chunk) isItem()           {}
func (Dev) isItem()             {}
func (DevExtent) isItem()       {}
func (DirEntry) isItem()        {}
func (Empty) isItem()           {}
func (Extent) isItem()          {}
func (ExtentCSum) isItem()      {}
func (ExtentDataRef) isItem()   {}
func (FileExtent) isItem()      {}
func (FreeSpaceBitmap) isItem() {}
func (FreeSpaceInfo) isItem()   {}
func (Inode) isItem()           {}
func (InodeRef) isItem()        {}
func (Metadata) isItem()        {}
func (QGroupInfo) isItem()      {}
func (QGroupLimit) isItem()     {}
func (QGroupStatus) isItem()    {}
func (Root) isItem()            {}
func (RootRef) isItem()         {}
func (SharedDataRef) isItem()   {}
func (FreeSpaceHeader) isItem() {}
func (UUIDMap) isItem()         {}

// Free is a no-op for all of these item types. Chunk is the only one
// whose storage comes from a pool (its Stripes slice is taken from
// chunkStripePool), and Chunk.Free does not return that slice to the
// pool; it is left to the garbage collector. ExtentCSum's Sums slice
// is ordinary garbage-collected memory, not pool-backed.
func (BlockGroup) Free()      {}
func (Chunk) Free()           {}
func (Dev) Free()             {}
func (DevExtent) Free()       {}
func (DirEntry) Free()        {}
func (Empty) Free()           {}
func (Extent) Free()          {}
func (ExtentCSum) Free()      {}
func (ExtentDataRef) Free()   {}
func (FileExtent) Free()      {}
func (FreeSpaceBitmap) Free() {}
func (FreeSpaceInfo) Free()   {}
func (Inode) Free()           {}
func (InodeRef) Free()        {}
func (Metadata) Free()        {}
func (QGroupInfo) Free()      {}
func (QGroupLimit) Free()     {}
func (QGroupStatus) Free()    {}
func (Root) Free()            {}
func (RootRef) Free()         {}
func (SharedDataRef) Free()   {}
func (FreeSpaceHeader) Free() {}
func (UUIDMap) Free()         {}

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/jsonutil"
)

// canonicalUUID re-parses a btrfsprim.UUID's string form through
// google/uuid so that every persisted *_uuid/fsid field is the
// canonical lowercase RFC 4122 form a querying tool expects.
func canonicalUUID(u btrfsprim.UUID) string {
	parsed, err := uuid.Parse(u.String())
	if err != nil {
		return u.String()
	}
	return parsed.String()
}

// Builtins is the Registry populated with this package's built-in
// mappers: the superblock, the chunk/dev-tree items the Translation
// Walker (C6) consumes, the fs-tree items (inode, inode ref, dir
// entry, file extent, root, root ref) and extent-tree items needed to
// reconstruct a directory hierarchy and its file contents, and a
// fallback for leaf items with no specific mapper. Callers that need
// additional mappers (e.g. for more btrfsitem types) should Register
// them into Builtins at init time rather than constructing a fresh
// Registry.
var Builtins = NewRegistry()

func init() {
	Builtins.MustRegister(superblockMapper{})
	Builtins.MustRegister(nodeMapper{})
	Builtins.MustRegister(chunkMapper{})
	Builtins.MustRegister(devExtentMapper{})
	Builtins.MustRegister(devMapper{})
	Builtins.MustRegister(inodeMapper{})
	Builtins.MustRegister(inodeRefMapper{})
	Builtins.MustRegister(dirItemMapper{})
	Builtins.MustRegister(dirIndexMapper{})
	Builtins.MustRegister(xattrItemMapper{})
	Builtins.MustRegister(fileExtentMapper{})
	Builtins.MustRegister(rootMapper{})
	Builtins.MustRegister(rootRefMapper{})
	Builtins.MustRegister(rootBackrefMapper{})
	Builtins.MustRegister(extentMapper{})
}

// superblockMapper maps a parsed superblock to a "btrfs.superblock"
// record. It isn't reached via leaf-item dispatch (superblocks
// aren't tree items), so LeafKeyType is the zero ItemType.
type superblockMapper struct{}

func (superblockMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfstree.Superblock{}) }
func (superblockMapper) RecordType() string              { return "btrfs.superblock" }
func (superblockMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.ItemType(0) }
func (superblockMapper) SchemaVersion() int              { return 1 }
func (superblockMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	sb := parsed.(btrfstree.Superblock)
	env := &Envelope{
		Type:          "btrfs.superblock",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"fsid":                  canonicalUUID(sb.FSUUID),
			"metadata_uuid":         canonicalUUID(sb.EffectiveMetadataUUID()),
			"generation":            uint64(sb.Generation),
			"root_tree":             int64(sb.RootTree),
			"chunk_tree":            int64(sb.ChunkTree),
			"log_tree":              int64(sb.LogTree),
			"chunk_root_generation": uint64(sb.ChunkRootGeneration),
			"total_bytes":           sb.TotalBytes,
			"bytes_used":            sb.BytesUsed,
			"num_devices":           sb.NumDevices,
			"sector_size":           sb.SectorSize,
			"node_size":             sb.NodeSize,
			"stripe_size":           sb.StripeSize,
			"label":                 cstring(sb.Label[:]),
		},
		Address: loc.Address(),
	}
	return env, nil
}

// cstring trims a fixed-width NUL-padded byte array down to its
// NUL-terminated prefix, the way the on-disk Label field is stored.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// nodeMapper maps a parsed tree-node header to a "btrfs.tree_node"
// record: one row per surviving metadata block the Forensic Scanner
// (C5) turns up, regardless of whether it's an interior or leaf
// node. This is the structure §3's "Tree node" paragraph describes;
// its leaf items (if any) are mapped separately via MapLeafItem and
// staged as records of their own, with no Owner or Children link to
// this record, since a leaf item's own Address (its byte range within
// the node) is distinct from the node's.
type nodeMapper struct{}

func (nodeMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfstree.NodeHeader{}) }
func (nodeMapper) RecordType() string              { return "btrfs.tree_node" }
func (nodeMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.ItemType(0) }
func (nodeMapper) SchemaVersion() int              { return 1 }
func (nodeMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	h := parsed.(btrfstree.NodeHeader)
	return &Envelope{
		Type:          "btrfs.tree_node",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"metadata_uuid": canonicalUUID(h.MetadataUUID),
			"addr":          int64(h.Addr),
			"generation":    uint64(h.Generation),
			"owner":         int64(h.Owner),
			"num_items":     h.NumItems,
			"level":         h.Level,
			"flags":         h.Flags.String(),
		},
		Address: loc.Address(),
	}, nil
}

// chunkMapper maps a btrfsitem.Chunk (CHUNK_ITEM) to a "btrfs.chunk"
// record, with one "btrfs.chunk_stripe" child record per stripe.
type chunkMapper struct{}

func (chunkMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.Chunk{}) }
func (chunkMapper) RecordType() string              { return "btrfs.chunk" }
func (chunkMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.CHUNK_ITEM_KEY }
func (chunkMapper) SchemaVersion() int              { return 1 }
func (chunkMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	chunk := parsed.(btrfsitem.Chunk)
	env := &Envelope{
		Type:          "btrfs.chunk",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"size":             int64(chunk.Head.Size),
			"owner":            int64(chunk.Head.Owner),
			"stripe_len":       chunk.Head.StripeLen,
			"type":             chunk.Head.Type.String(),
			"io_optimal_align": chunk.Head.IOOptimalAlign,
			"io_optimal_width": chunk.Head.IOOptimalWidth,
			"io_min_size":      chunk.Head.IOMinSize,
			"num_stripes":      chunk.Head.NumStripes,
			"sub_stripes":      chunk.Head.SubStripes,
		},
		Address: loc.Address(),
	}
	for i, stripe := range chunk.Stripes {
		env.Children = append(env.Children, &Envelope{
			Type:          "btrfs.chunk_stripe",
			SchemaVersion: 1,
			Fields: map[string]interface{}{
				"index":       i,
				"device_id":   uint64(stripe.DeviceID),
				"offset":      int64(stripe.Offset),
				"device_uuid": canonicalUUID(stripe.DeviceUUID),
			},
		})
	}
	return env, nil
}

// devExtentMapper maps a btrfsitem.DevExtent (DEV_EXTENT) to a
// "btrfs.dev_extent" record.
type devExtentMapper struct{}

func (devExtentMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.DevExtent{}) }
func (devExtentMapper) RecordType() string              { return "btrfs.dev_extent" }
func (devExtentMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.DEV_EXTENT_KEY }
func (devExtentMapper) SchemaVersion() int              { return 1 }
func (devExtentMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	de := parsed.(btrfsitem.DevExtent)
	return &Envelope{
		Type:          "btrfs.dev_extent",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"chunk_tree":      int64(de.ChunkTree),
			"chunk_object_id": int64(de.ChunkObjectID),
			"chunk_offset":    int64(de.ChunkOffset),
			"length":          int64(de.Length),
			"chunk_tree_uuid": canonicalUUID(de.ChunkTreeUUID),
		},
		Address: loc.Address(),
	}, nil
}

// devMapper maps a btrfsitem.Dev (DEV_ITEM) -- the device table entry
// in the chunk tree, distinct from the superblock's own copy of the
// current device -- to a "btrfs.dev" record.
type devMapper struct{}

func (devMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.Dev{}) }
func (devMapper) RecordType() string              { return "btrfs.dev" }
func (devMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.DEV_ITEM_KEY }
func (devMapper) SchemaVersion() int              { return 1 }
func (devMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	d := parsed.(btrfsitem.Dev)
	return &Envelope{
		Type:          "btrfs.dev",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"dev_id":           uint64(d.DevID),
			"num_bytes":        d.NumBytes,
			"num_bytes_used":   d.NumBytesUsed,
			"io_optimal_align": d.IOOptimalAlign,
			"io_optimal_width": d.IOOptimalWidth,
			"io_min_size":      d.IOMinSize,
			"type":             d.Type,
			"generation":       uint64(d.Generation),
			"start_offset":     d.StartOffset,
			"dev_group":        d.DevGroup,
			"seek_speed":       d.SeekSpeed,
			"bandwidth":        d.Bandwidth,
			"dev_uuid":         canonicalUUID(d.DevUUID),
			"fsid":             canonicalUUID(d.FSUUID),
		},
		Address: loc.Address(),
	}, nil
}

// inodeMapper maps a btrfsitem.Inode (INODE_ITEM) to a "btrfs.inode"
// record: the stat(2)-shaped metadata for a file or directory.
type inodeMapper struct{}

func (inodeMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.Inode{}) }
func (inodeMapper) RecordType() string              { return "btrfs.inode" }
func (inodeMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.INODE_ITEM_KEY }
func (inodeMapper) SchemaVersion() int              { return 1 }
func (inodeMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	i := parsed.(btrfsitem.Inode)
	return &Envelope{
		Type:          "btrfs.inode",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"generation": uint64(i.Generation),
			"trans_id":   i.TransID,
			"size":       i.Size,
			"num_bytes":  i.NumBytes,
			"block_group": i.BlockGroup,
			"nlink":      i.NLink,
			"uid":        i.UID,
			"gid":        i.GID,
			"mode":       uint32(i.Mode),
			"rdev":       i.RDev,
			"flags":      i.Flags.String(),
			"sequence":   i.Sequence,
			"atime":      i.ATime.ToStd().Unix(),
			"ctime":      i.CTime.ToStd().Unix(),
			"mtime":      i.MTime.ToStd().Unix(),
			"otime":      i.OTime.ToStd().Unix(),
		},
		Address: loc.Address(),
	}, nil
}

// inodeRefMapper maps a btrfsitem.InodeRef (INODE_REF) -- a hardlink
// from a directory entry back to this inode -- to a "btrfs.inode_ref"
// record.
type inodeRefMapper struct{}

func (inodeRefMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.InodeRef{}) }
func (inodeRefMapper) RecordType() string              { return "btrfs.inode_ref" }
func (inodeRefMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.INODE_REF_KEY }
func (inodeRefMapper) SchemaVersion() int              { return 1 }
func (inodeRefMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	r := parsed.(btrfsitem.InodeRef)
	return &Envelope{
		Type:          "btrfs.inode_ref",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"index": r.Index,
			"name":  string(r.Name),
		},
		Address: loc.Address(),
	}, nil
}

// dirEntryEnvelope builds the common shape shared by DIR_ITEM,
// DIR_INDEX, and XATTR_ITEM, which all parse into btrfsitem.DirEntry
// and differ only in record type and how key.offset is interpreted.
func dirEntryEnvelope(recordType string, version int, d btrfsitem.DirEntry, loc Location) *Envelope {
	return &Envelope{
		Type:          recordType,
		SchemaVersion: version,
		Fields: map[string]interface{}{
			"location_objectid": int64(d.Location.ObjectID),
			"location_itemtype": d.Location.ItemType.String(),
			"location_offset":   uint64(d.Location.Offset),
			"trans_id":          d.TransID,
			"type":              d.Type.String(),
			"name":              string(d.Name),
			"data":              d.Data,
		},
		Address: loc.Address(),
	}
}

// dirItemMapper maps a btrfsitem.DirEntry (DIR_ITEM) -- a directory
// entry looked up by name hash -- to a "btrfs.dir_item" record.
type dirItemMapper struct{}

func (dirItemMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.DirEntry{}) }
func (dirItemMapper) RecordType() string              { return "btrfs.dir_item" }
func (dirItemMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.DIR_ITEM_KEY }
func (dirItemMapper) SchemaVersion() int              { return 1 }
func (dirItemMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return dirEntryEnvelope("btrfs.dir_item", 1, parsed.(btrfsitem.DirEntry), loc), nil
}

// dirIndexMapper maps a btrfsitem.DirEntry (DIR_INDEX) -- the same
// directory entry indexed by readdir position instead of name hash
// -- to a "btrfs.dir_index" record.
type dirIndexMapper struct{}

func (dirIndexMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.DirEntry{}) }
func (dirIndexMapper) RecordType() string              { return "btrfs.dir_index" }
func (dirIndexMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.DIR_INDEX_KEY }
func (dirIndexMapper) SchemaVersion() int              { return 1 }
func (dirIndexMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return dirEntryEnvelope("btrfs.dir_index", 1, parsed.(btrfsitem.DirEntry), loc), nil
}

// xattrItemMapper maps a btrfsitem.DirEntry (XATTR_ITEM) -- an
// extended attribute, which reuses the directory-entry wire format
// with .Data holding the xattr value -- to a "btrfs.xattr_item"
// record.
type xattrItemMapper struct{}

func (xattrItemMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.DirEntry{}) }
func (xattrItemMapper) RecordType() string              { return "btrfs.xattr_item" }
func (xattrItemMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.XATTR_ITEM_KEY }
func (xattrItemMapper) SchemaVersion() int              { return 1 }
func (xattrItemMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return dirEntryEnvelope("btrfs.xattr_item", 1, parsed.(btrfsitem.DirEntry), loc), nil
}

// fileExtentMapper maps a btrfsitem.FileExtent (EXTENT_DATA) to a
// "btrfs.file_extent" record: either inline file data or a pointer
// to a regular/preallocated extent elsewhere in the filesystem.
type fileExtentMapper struct{}

func (fileExtentMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.FileExtent{}) }
func (fileExtentMapper) RecordType() string              { return "btrfs.file_extent" }
func (fileExtentMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.FILE_EXTENT_ITEM_KEY }
func (fileExtentMapper) SchemaVersion() int              { return 1 }
func (fileExtentMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	fe := parsed.(btrfsitem.FileExtent)
	fields := map[string]interface{}{
		"generation":  uint64(fe.Generation),
		"ram_bytes":   fe.RAMBytes,
		"compression": fe.Compression.String(),
		"encryption":  fe.Encryption,
		"type":        fe.Type.String(),
	}
	switch fe.Type {
	case btrfsitem.FILE_EXTENT_INLINE:
		// Inline file content is a raw byte blob, not a JSON scalar;
		// jsonutil.RawBytes renders it as a (length-split) hex string
		// instead of lowmemjson's default array-of-numbers encoding
		// for []byte.
		fields["inline_data"] = jsonutil.RawBytes(fe.BodyInline)
	case btrfsitem.FILE_EXTENT_REG, btrfsitem.FILE_EXTENT_PREALLOC:
		fields["disk_bytenr"] = int64(fe.BodyExtent.DiskByteNr)
		fields["disk_num_bytes"] = int64(fe.BodyExtent.DiskNumBytes)
		fields["offset"] = int64(fe.BodyExtent.Offset)
		fields["num_bytes"] = fe.BodyExtent.NumBytes
	}
	return &Envelope{
		Type:          "btrfs.file_extent",
		SchemaVersion: 1,
		Fields:        fields,
		Address:       loc.Address(),
	}, nil
}

// rootMapper maps a btrfsitem.Root (ROOT_ITEM) -- a subvolume or
// tree-of-tree-roots root -- to a "btrfs.root" record.
type rootMapper struct{}

func (rootMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.Root{}) }
func (rootMapper) RecordType() string              { return "btrfs.root" }
func (rootMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.ROOT_ITEM_KEY }
func (rootMapper) SchemaVersion() int              { return 1 }
func (rootMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	root := parsed.(btrfsitem.Root)
	return &Envelope{
		Type:          "btrfs.root",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"generation":     uint64(root.Generation),
			"root_dir_id":    int64(root.RootDirID),
			"bytenr":         int64(root.ByteNr),
			"byte_limit":     root.ByteLimit,
			"bytes_used":     root.BytesUsed,
			"last_snapshot":  root.LastSnapshot,
			"flags":          root.Flags.String(),
			"refs":           root.Refs,
			"drop_level":     root.DropLevel,
			"level":          root.Level,
			"generation_v2":  uint64(root.GenerationV2),
			"uuid":           canonicalUUID(root.UUID),
			"parent_uuid":    canonicalUUID(root.ParentUUID),
			"received_uuid":  canonicalUUID(root.ReceivedUUID),
			"ctransid":       root.CTransID,
			"otransid":       root.OTransID,
			"stransid":       root.STransID,
			"rtransid":       root.RTransID,
			"ctime":          root.CTime.ToStd().Unix(),
			"otime":          root.OTime.ToStd().Unix(),
			"stime":          root.STime.ToStd().Unix(),
			"rtime":          root.RTime.ToStd().Unix(),
			"global_tree_id": int64(root.GlobalTreeID),
		},
		Address: loc.Address(),
	}, nil
}

// rootRefEnvelope builds the common shape shared by ROOT_REF and
// ROOT_BACKREF, which both parse into btrfsitem.RootRef and differ
// only in which end of the parent/child relationship key.objectid
// and key.offset name.
func rootRefEnvelope(recordType string, version int, r btrfsitem.RootRef, loc Location) *Envelope {
	return &Envelope{
		Type:          recordType,
		SchemaVersion: version,
		Fields: map[string]interface{}{
			"dir_id":   int64(r.DirID),
			"sequence": r.Sequence,
			"name":     string(r.Name),
		},
		Address: loc.Address(),
	}
}

// rootRefMapper maps a btrfsitem.RootRef (ROOT_REF) -- the forward
// link from a parent subvolume to a child subvolume's root -- to a
// "btrfs.root_ref" record.
type rootRefMapper struct{}

func (rootRefMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.RootRef{}) }
func (rootRefMapper) RecordType() string              { return "btrfs.root_ref" }
func (rootRefMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.ROOT_REF_KEY }
func (rootRefMapper) SchemaVersion() int              { return 1 }
func (rootRefMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return rootRefEnvelope("btrfs.root_ref", 1, parsed.(btrfsitem.RootRef), loc), nil
}

// rootBackrefMapper maps a btrfsitem.RootRef (ROOT_BACKREF) -- the
// reverse link from a child subvolume back to its parent -- to a
// "btrfs.root_backref" record.
type rootBackrefMapper struct{}

func (rootBackrefMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.RootRef{}) }
func (rootBackrefMapper) RecordType() string              { return "btrfs.root_backref" }
func (rootBackrefMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.ROOT_BACKREF_KEY }
func (rootBackrefMapper) SchemaVersion() int              { return 1 }
func (rootBackrefMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return rootRefEnvelope("btrfs.root_backref", 1, parsed.(btrfsitem.RootRef), loc), nil
}

// extentMapper maps a btrfsitem.Extent (EXTENT_ITEM) -- the
// extent-tree record of everything that references one physical
// extent -- to a "btrfs.extent" record, with one "btrfs.extent_ref"
// child record per inline back-reference.
type extentMapper struct{}

func (extentMapper) ParsedType() reflect.Type       { return reflect.TypeOf(btrfsitem.Extent{}) }
func (extentMapper) RecordType() string              { return "btrfs.extent" }
func (extentMapper) LeafKeyType() btrfsprim.ItemType { return btrfsprim.EXTENT_ITEM_KEY }
func (extentMapper) SchemaVersion() int              { return 1 }
func (extentMapper) Map(parsed interface{}, loc Location) (*Envelope, error) {
	e := parsed.(btrfsitem.Extent)
	env := &Envelope{
		Type:          "btrfs.extent",
		SchemaVersion: 1,
		Fields: map[string]interface{}{
			"refs":       e.Head.Refs,
			"generation": uint64(e.Head.Generation),
			"flags":      e.Head.Flags.String(),
		},
		Address: loc.Address(),
	}
	if e.Head.Flags.Has(btrfsitem.EXTENT_FLAG_TREE_BLOCK) {
		env.Fields["tree_block_level"] = e.Info.Level
		env.Fields["tree_block_objectid"] = int64(e.Info.Key.ObjectID)
	}
	for i, ref := range e.Refs {
		env.Children = append(env.Children, &Envelope{
			Type:          "btrfs.extent_ref",
			SchemaVersion: 1,
			Fields: map[string]interface{}{
				"index":  i,
				"type":   ref.Type.String(),
				"offset": ref.Offset,
			},
		})
	}
	return env, nil
}

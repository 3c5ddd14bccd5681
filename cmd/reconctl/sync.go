// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/yakfsrecon/btrfs-forensic/lib/binstruct"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/devreader"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	"github.com/yakfsrecon/btrfs-forensic/lib/walk"
)

// superblockSize is the on-disk size of a Superblock, used to build
// the Location a superblock's own record.Address covers.
var superblockSize = btrfsvol.AddrDelta(binstruct.StaticSize(btrfstree.Superblock{}))

// nodeHeaderSize is the on-disk size of a node header; a leaf item's
// DataOffset counts from the end of it, not from the start of the node.
var nodeHeaderSize = btrfsvol.AddrDelta(binstruct.StaticSize(btrfstree.NodeHeader{}))

// runSync opens every device in cfg.Devices, stages a "btrfs.superblock"
// record for each one's primary superblock, then walks the chunk tree,
// staging a "btrfs.tree_node" record for every node it reads and one
// leaf-item record per item in every leaf it reads. It's the shared
// body behind both `create` (fresh store) and `sync` (existing store):
// the two subcommands differ only in which store they hand it.
func runSync(ctx context.Context, cfg Config, store record.Store) (walk.Result, error) {
	opened, err := openImages(cfg.Devices)
	if err != nil {
		return walk.Result{}, err
	}
	defer func() {
		for _, img := range opened {
			img.reader.Close()
		}
	}()

	vol := buildVolume(opened)

	for _, img := range opened {
		env, err := record.Builtins.MapStruct(img.sb, record.Location{
			DeviceID: btrfsvol.DeviceID(img.sb.DevItem.DevID),
			Phys:     img.sb.Self,
			Size:     superblockSize,
		})
		if err != nil {
			return walk.Result{}, err
		}
		if err := stageOne(store, env); err != nil {
			return walk.Result{}, err
		}
	}

	visit := &walk.Visitor{
		OnNode: func(addr btrfsvol.LogicalAddr, node *btrfstree.Node) {
			syncNode(ctx, store, vol, addr, node)
		},
	}

	return walk.WalkChunkTree(ctx, opened[0].sb, vol, visit)
}

// syncNode maps and stages one chunk-tree node plus, for a leaf, its
// items. Per-node and per-item mapping failures are logged and
// skipped -- consistent with WalkChunkTree's own tolerance of bad
// nodes -- rather than aborting the whole sync over one bad block.
func syncNode(ctx context.Context, store record.Store, vol *btrfsvol.Volume[devreader.Reader], addr btrfsvol.LogicalAddr, node *btrfstree.Node) {
	exts, err := vol.Cache.Translate(addr, btrfsvol.AddrDelta(node.Size))
	if err != nil || len(exts) == 0 {
		dlog.Errorf(ctx, "sync: translate node at %v: %v", addr, err)
		return
	}
	// Chunks are contiguous on their owning device for the node sizes
	// in practice (nodes never straddle a chunk boundary), so the
	// first extent's device/offset describes the whole node.
	loc := record.Location{DeviceID: exts[0].PAddr.Dev, Phys: exts[0].PAddr.Addr, Size: btrfsvol.AddrDelta(node.Size)}

	nodeEnv, err := record.Builtins.MapStruct(node.Head, loc)
	if err != nil {
		dlog.Errorf(ctx, "sync: map node at %v: %v", addr, err)
		return
	}
	if err := stageOne(store, nodeEnv); err != nil {
		dlog.Errorf(ctx, "sync: stage node at %v: %v", addr, err)
		return
	}

	for _, item := range node.BodyLeaf {
		itemLoc := record.Location{
			DeviceID: loc.DeviceID,
			Phys:     loc.Phys.Add(nodeHeaderSize + btrfsvol.AddrDelta(item.DataOffset)),
			Size:     btrfsvol.AddrDelta(item.BodySize),
		}
		itemEnv, err := record.Builtins.MapLeafItem(item.Key.ItemType, item.Body, itemLoc)
		if err != nil {
			dlog.Errorf(ctx, "sync: map leaf item %v at %v: %v", item.Key, addr, err)
			continue
		}
		if err := stageOne(store, itemEnv); err != nil {
			dlog.Errorf(ctx, "sync: stage leaf item %v at %v: %v", item.Key, addr, err)
		}
	}
}

// stageOne runs a one-record transaction: stage env, let the store's
// pre-commit hook reconcile it against whatever already claims its
// Address, and commit.
func stageOne(store record.Store, env *record.Envelope) error {
	return store.Transaction(func(tx record.Tx) error {
		tx.Stage(env)
		return nil
	})
}

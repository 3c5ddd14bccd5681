// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package walk implements the Translation Walker (C6): it seeds a
// chunk cache from a superblock's bootstrap system-chunk array, then
// BFS-walks the chunk tree to learn every remaining chunk, so that
// logical addresses anywhere else in the filesystem can be
// translated.
//
// Grounded on the *shape* of btrfsutil.WalkAllTrees's tree traversal
// (a worklist of pending subtrees, callbacks for bad nodes/items)
// but not its damage-tolerant "rebuilt forest" lookup machinery --
// this walk only ever has one tree (the chunk tree) and one starting
// point (the superblock's chunk_root), so a plain BFS worklist over
// btrfstree.ReadNode suffices.
package walk

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/containers"
	"github.com/yakfsrecon/btrfs-forensic/lib/diskio"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
)

// BootstrapChunkCache seeds cache with every (key, chunk) pair in
// the superblock's inline system-chunk array -- the bootstrap
// mappings needed before the chunk tree itself can be read.
func BootstrapChunkCache(sb btrfstree.Superblock, cache *btrfsvol.Cache) error {
	sysChunks, err := sb.ParseSysChunkArray()
	if err != nil {
		return fmt.Errorf("walk: parse system chunk array: %w", err)
	}
	for _, sc := range sysChunks {
		if err := cache.InsertMappings(btrfsvol.AddrDelta(sc.Chunk.Head.StripeLen), sc.Chunk.Mappings(sc.Key)...); err != nil {
			return fmt.Errorf("walk: seed chunk cache from system chunk array: %w", err)
		}
	}
	return nil
}

// pending is one not-yet-visited chunk-tree node.
type pending struct {
	addr  btrfsvol.LogicalAddr
	level containers.Optional[uint8]
}

// Result summarizes one run of WalkChunkTree: how many interior and
// leaf nodes were visited, how many CHUNK_ITEM entries were folded
// into the cache, and any per-node-or-item failures that were
// logged and skipped rather than aborting the walk.
type Result struct {
	NodesVisited int
	ChunksFound  int
	SkippedCount int
}

// Visitor lets a caller observe every node WalkChunkTree reads, in
// addition to its own cache-seeding job -- e.g. the CLI's `create`/
// `sync` subcommands use it to persist a "btrfs.tree_node" plus one
// leaf-item record per CHUNK_ITEM/DEV_ITEM the walk already has to
// parse, instead of re-deriving the same traversal a second time.
// A nil Visitor (or a nil field on one) is a no-op.
type Visitor struct {
	OnNode func(addr btrfsvol.LogicalAddr, node *btrfstree.Node)
}

func (v *Visitor) onNode(addr btrfsvol.LogicalAddr, node *btrfstree.Node) {
	if v != nil && v.OnNode != nil {
		v.OnNode(addr, node)
	}
}

// WalkChunkTree seeds cache from sb's system-chunk array, translates
// sb.ChunkTree, and BFS-walks the chunk tree, inserting every
// CHUNK_ITEM leaf it finds into cache. vol must already have its
// devices registered and will be consulted (via its Cache) to
// translate each node's logical address. visit (may be nil) is
// invoked once per node read, before that node is freed.
//
// If sb.ChunkTree itself cannot be translated, WalkChunkTree aborts
// with a *record.BootstrapFailure. A translation or parse failure on
// any other node is logged and that subtree is skipped.
func WalkChunkTree[PhysicalVolume diskio.ReaderAt[btrfsvol.PhysicalAddr]](ctx context.Context, sb btrfstree.Superblock, vol *btrfsvol.Volume[PhysicalVolume], visit *Visitor) (Result, error) {
	var result Result

	if err := BootstrapChunkCache(sb, vol.Cache); err != nil {
		return result, &record.BootstrapFailure{Err: err}
	}

	rootExp := btrfstree.NodeExpectations{
		LAddr:      containers.OptionalValue(sb.ChunkTree),
		Generation: containers.OptionalValue(sb.ChunkRootGeneration),
		Level:      containers.OptionalValue(sb.ChunkLevel),
	}
	rootNode, err := btrfstree.ReadNode[btrfsvol.LogicalAddr](vol, sb, sb.ChunkTree, rootExp)
	if err != nil {
		return result, &record.BootstrapFailure{Err: fmt.Errorf("translate/read chunk-tree root at %v: %w", sb.ChunkTree, err)}
	}

	worklist := []pending{{addr: sb.ChunkTree, level: containers.OptionalValue(sb.ChunkLevel)}}
	nodes := map[btrfsvol.LogicalAddr]*btrfstree.Node{sb.ChunkTree: rootNode}

	for len(worklist) > 0 {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		cur := worklist[0]
		worklist = worklist[1:]

		node, ok := nodes[cur.addr]
		if !ok {
			var err error
			node, err = btrfstree.ReadNode[btrfsvol.LogicalAddr](vol, sb, cur.addr, btrfstree.NodeExpectations{
				LAddr: containers.OptionalValue(cur.addr),
				Level: cur.level,
			})
			if err != nil {
				dlog.Errorf(ctx, "walk: skip chunk-tree node at %v: %v", cur.addr, err)
				result.SkippedCount++
				continue
			}
		}
		delete(nodes, cur.addr)
		result.NodesVisited++
		visit.onNode(cur.addr, node)

		if node.Head.Level > 0 {
			for _, kp := range node.BodyInterior {
				worklist = append(worklist, pending{addr: kp.BlockPtr, level: containers.OptionalValue(node.Head.Level - 1)})
			}
		} else {
			for _, item := range node.BodyLeaf {
				if item.Key.ItemType != btrfsprim.CHUNK_ITEM_KEY {
					continue
				}
				chunk, ok := item.Body.(btrfsitem.Chunk)
				if !ok {
					dlog.Errorf(ctx, "walk: chunk-tree leaf item at key %v is not a Chunk (got %T)", item.Key, item.Body)
					result.SkippedCount++
					continue
				}
				if err := vol.Cache.InsertMappings(btrfsvol.AddrDelta(chunk.Head.StripeLen), chunk.Mappings(item.Key)...); err != nil {
					dlog.Errorf(ctx, "walk: insert chunk at key %v: %v", item.Key, err)
					result.SkippedCount++
					continue
				}
				result.ChunksFound++
			}
		}
		node.Free()
	}

	return result, nil
}

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package walk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfssum"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	"github.com/yakfsrecon/btrfs-forensic/lib/walk"
)

// fakePhysicalVolume is an in-memory diskio.ReaderAt[btrfsvol.PhysicalAddr],
// standing in for an opened device image.
type fakePhysicalVolume struct {
	data []byte
}

func (f *fakePhysicalVolume) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}

const testNodeSize = 4096

func mkChunkRootNode(sb btrfstree.Superblock, items []btrfstree.Item) []byte {
	node := btrfstree.Node{
		Size:         testNodeSize,
		ChecksumType: sb.ChecksumType,
		Head: btrfstree.NodeHeader{
			MetadataUUID: sb.EffectiveMetadataUUID(),
			Addr:         sb.ChunkTree,
			Generation:   sb.ChunkRootGeneration,
			Owner:        btrfsprim.ObjID(3), // CHUNK_TREE_OBJECTID
			Level:        sb.ChunkLevel,
		},
		BodyLeaf: items,
	}
	csum, err := node.CalculateChecksum()
	if err != nil {
		panic(err)
	}
	node.Head.Checksum = csum
	dat, err := node.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return dat
}

func baseSuperblock() btrfstree.Superblock {
	var sb btrfstree.Superblock
	sb.FSUUID = btrfsprim.MustParseUUID("a0dd94ed-e60c-42e8-8632-64e8d4765a43")
	sb.ChecksumType = btrfssum.TYPE_CRC32
	sb.NodeSize = testNodeSize
	sb.ChunkTree = btrfsvol.LogicalAddr(0x10000000)
	sb.ChunkRootGeneration = btrfsprim.Generation(7)
	sb.ChunkLevel = 0
	sb.SysChunkArraySize = 0
	return sb
}

func TestWalkChunkTreeFindsChunk(t *testing.T) {
	t.Parallel()

	sb := baseSuperblock()
	chunkItem := btrfstree.Item{
		Key: btrfsprim.Key{ObjectID: btrfsprim.ObjID(0xfffffffffffffffe), ItemType: btrfsprim.ItemType(228), Offset: 0x20000000},
		Body: btrfsitem.Chunk{
			Head: btrfsitem.ChunkHeader{
				Size:      0x100000,
				Owner:     btrfsprim.ObjID(2),
				StripeLen: 0x10000,
			},
			Stripes: []btrfsitem.ChunkStripe{
				{DeviceID: 1, Offset: 0x2000},
			},
		},
	}
	nodeBytes := mkChunkRootNode(sb, []btrfstree.Item{chunkItem})

	phys := &fakePhysicalVolume{data: make([]byte, 0x1000+len(nodeBytes))}
	copy(phys.data[0x1000:], nodeBytes)

	vol := btrfsvol.NewVolume[*fakePhysicalVolume](nil)
	require.NoError(t, vol.AddPhysicalVolume(1, phys))
	require.NoError(t, vol.Cache.Insert(sb.ChunkTree, btrfsvol.AddrDelta(testNodeSize), btrfsvol.AddrDelta(testNodeSize), []btrfsvol.QualifiedPhysicalAddr{
		{Dev: 1, Addr: 0x1000},
	}))

	result, err := walk.WalkChunkTree[*fakePhysicalVolume](context.Background(), sb, vol, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NodesVisited)
	assert.Equal(t, 1, result.ChunksFound)
	assert.Zero(t, result.SkippedCount)

	extents, err := vol.Cache.Translate(btrfsvol.LogicalAddr(0x20000000), 0x1000)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	assert.Equal(t, btrfsvol.DeviceID(1), extents[0].PAddr.Dev)
}

func TestWalkChunkTreeBadRootIsFatal(t *testing.T) {
	t.Parallel()

	sb := baseSuperblock()
	phys := &fakePhysicalVolume{data: make([]byte, 0x1000)}
	vol := btrfsvol.NewVolume[*fakePhysicalVolume](nil)
	require.NoError(t, vol.AddPhysicalVolume(1, phys))
	// No chunk cache mapping at all for sb.ChunkTree: translation must fail.

	_, err := walk.WalkChunkTree[*fakePhysicalVolume](context.Background(), sb, vol, nil)
	require.Error(t, err)
	var bootstrapErr *record.BootstrapFailure
	assert.ErrorAs(t, err, &bootstrapErr)
}

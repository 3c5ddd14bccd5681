// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfstree

import (
	"fmt"
	"reflect"

	"github.com/yakfsrecon/btrfs-forensic/lib/binstruct"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfssum"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/devreader"
	"github.com/yakfsrecon/btrfs-forensic/lib/fmtutil"
)

// SuperblockAddrs are the three fixed physical offsets a superblock
// copy can live at: the primary at 64KiB, and two mirrors, present
// only if the image is large enough to hold them.
var SuperblockAddrs = []btrfsvol.PhysicalAddr{
	0x00_0001_0000, // 64KiB
	0x00_4000_0000, // 1GiB
	0x40_0000_0000, // 256GiB
}

// ReadSuperblocks reads and parses every superblock copy present in
// r, in SuperblockAddrs order. It checks neither magic nor checksum,
// and does not cross-check the copies against each other -- that's
// ValidateMagic, ValidateChecksum and Equal, left to the caller
// (ReadSuperblock does all three).
func ReadSuperblocks(r devreader.Reader) ([]Superblock, error) {
	superblockSize := btrfsvol.PhysicalAddr(binstruct.StaticSize(Superblock{}))
	size := r.Size()

	var ret []Superblock
	for i, addr := range SuperblockAddrs {
		if addr+superblockSize > size {
			continue
		}
		buf := make([]byte, superblockSize)
		if err := devreader.ReadFull(r, buf, addr); err != nil {
			return nil, fmt.Errorf("btrfstree: read superblock %d: %w", i, err)
		}
		var sb Superblock
		if _, err := binstruct.Unmarshal(buf, &sb); err != nil {
			return nil, fmt.Errorf("btrfstree: parse superblock %d: %w", i, err)
		}
		ret = append(ret, sb)
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("btrfstree: %s: no superblocks found", r.Name())
	}
	return ret, nil
}

// ReadSuperblock reads every superblock copy in r, validates each
// copy's checksum and that all copies agree, and returns the primary.
func ReadSuperblock(r devreader.Reader) (Superblock, error) {
	sbs, err := ReadSuperblocks(r)
	if err != nil {
		return Superblock{}, err
	}
	for i, sb := range sbs {
		if err := sb.ValidateMagic(); err != nil {
			return Superblock{}, fmt.Errorf("btrfstree: %s: superblock %d: %w", r.Name(), i, err)
		}
		if err := sb.ValidateChecksum(); err != nil {
			return Superblock{}, fmt.Errorf("btrfstree: %s: superblock %d: %w", r.Name(), i, err)
		}
		if i > 0 && !sb.Equal(sbs[0]) {
			return Superblock{}, fmt.Errorf("btrfstree: %s: superblock %d disagrees with superblock 0", r.Name(), i)
		}
	}
	return sbs[0], nil
}

// Magic is the 8-byte constant every valid superblock starts its
// fixed-layout region with (at offset 0x40).
var Magic = [8]byte{'_', 'B', 'H', 'R', 'f', 'S', '_', 'M'}

// Superblock is the primary (at byte offset 0x10000) or a mirror (at
// 0x4000_0000 or 0x40_0000_0000) on-disk superblock. The whole
// structure fits in 0x1000 bytes.
type Superblock struct {
	Checksum   btrfssum.CSum         `bin:"off=0x0,  siz=0x20"` // covers everything from 0x20 to 0x1000
	FSUUID     btrfsprim.UUID        `bin:"off=0x20, siz=0x10"`
	Self       btrfsvol.PhysicalAddr `bin:"off=0x30, siz=0x8"` // physical address of this copy
	Flags      uint64                `bin:"off=0x38, siz=0x8"`
	Magic      [8]byte               `bin:"off=0x40, siz=0x8"`
	Generation btrfsprim.Generation  `bin:"off=0x48, siz=0x8"`

	RootTree  btrfsvol.LogicalAddr `bin:"off=0x50, siz=0x8"`
	ChunkTree btrfsvol.LogicalAddr `bin:"off=0x58, siz=0x8"`
	LogTree   btrfsvol.LogicalAddr `bin:"off=0x60, siz=0x8"`

	LogRootTransID  uint64          `bin:"off=0x68, siz=0x8"`
	TotalBytes      uint64          `bin:"off=0x70, siz=0x8"`
	BytesUsed       uint64          `bin:"off=0x78, siz=0x8"`
	RootDirObjectID btrfsprim.ObjID `bin:"off=0x80, siz=0x8"` // usually 6
	NumDevices      uint64          `bin:"off=0x88, siz=0x8"`

	SectorSize        uint32 `bin:"off=0x90, siz=0x4"`
	NodeSize          uint32 `bin:"off=0x94, siz=0x4"`
	LeafSize          uint32 `bin:"off=0x98, siz=0x4"` // unused; must equal NodeSize
	StripeSize        uint32 `bin:"off=0x9c, siz=0x4"`
	SysChunkArraySize uint32 `bin:"off=0xa0, siz=0x4"`

	ChunkRootGeneration btrfsprim.Generation `bin:"off=0xa4, siz=0x8"`
	CompatFlags         uint64               `bin:"off=0xac, siz=0x8"`
	CompatROFlags       uint64               `bin:"off=0xb4, siz=0x8"`
	IncompatFlags       IncompatFlags        `bin:"off=0xbc, siz=0x8"`
	ChecksumType        btrfssum.CSumType    `bin:"off=0xc4, siz=0x2"`

	RootLevel  uint8 `bin:"off=0xc6, siz=0x1"`
	ChunkLevel uint8 `bin:"off=0xc7, siz=0x1"`
	LogLevel   uint8 `bin:"off=0xc8, siz=0x1"`

	DevItem            btrfsitem.Dev `bin:"off=0xc9,  siz=0x62"`
	Label              [0x100]byte   `bin:"off=0x12b, siz=0x100"`
	CacheGeneration    btrfsprim.Generation `bin:"off=0x22b, siz=0x8"`
	UUIDTreeGeneration btrfsprim.Generation `bin:"off=0x233, siz=0x8"`

	MetadataUUID btrfsprim.UUID `bin:"off=0x23b, siz=0x10"` // valid iff FeatureIncompatMetadataUUID

	NumGlobalRoots uint64 `bin:"off=0x24b, siz=0x8"` // valid iff FeatureIncompatExtentTreeV2

	BlockGroupRoot           btrfsvol.LogicalAddr `bin:"off=0x253, siz=0x8"` // valid iff FeatureIncompatExtentTreeV2
	BlockGroupRootGeneration btrfsprim.Generation `bin:"off=0x25b, siz=0x8"`
	BlockGroupRootLevel      uint8                `bin:"off=0x263, siz=0x1"`

	Reserved [199]byte `bin:"off=0x264, siz=0xc7"`

	// SysChunkArray contains (Key, Chunk) pairs for every SYSTEM chunk,
	// needed to bootstrap the logical-to-physical mapping before any
	// tree can be walked. Only the first SysChunkArraySize bytes are
	// meaningful.
	SysChunkArray [0x800]byte `bin:"off=0x32b, siz=0x800"`
	SuperRoots    [4]RootBackup `bin:"off=0xb2b, siz=0x2a0"`

	Padding       [565]byte `bin:"off=0xdcb, siz=0x235"`
	binstruct.End `bin:"off=0x1000"`
}

func (sb Superblock) CalculateChecksum() (btrfssum.CSum, error) {
	data, err := binstruct.Marshal(sb)
	if err != nil {
		return btrfssum.CSum{}, err
	}
	return sb.ChecksumType.Sum(data[binstruct.StaticSize(btrfssum.CSum{}):])
}

func (sb Superblock) ValidateChecksum() error {
	stored := sb.Checksum
	calced, err := sb.CalculateChecksum()
	if err != nil {
		return err
	}
	if calced != stored {
		return fmt.Errorf("superblock checksum mismatch: stored=%v calculated=%v", stored, calced)
	}
	return nil
}

func (sb Superblock) ValidateMagic() error {
	if sb.Magic != Magic {
		return fmt.Errorf("superblock magic mismatch: got %q, want %q", sb.Magic, Magic)
	}
	return nil
}

// Equal compares two superblocks ignoring the fields that legitimately
// differ between the primary and its mirrors (the checksum, and Self).
func (a Superblock) Equal(b Superblock) bool {
	a.Checksum = btrfssum.CSum{}
	a.Self = 0
	b.Checksum = btrfssum.CSum{}
	b.Self = 0
	return reflect.DeepEqual(a, b)
}

func (sb Superblock) EffectiveMetadataUUID() btrfsprim.UUID {
	if !sb.IncompatFlags.Has(FeatureIncompatMetadataUUID) {
		return sb.FSUUID
	}
	return sb.MetadataUUID
}

// SysChunk is one (Key, Chunk) pair out of the superblock's inline
// system-chunk array.
type SysChunk struct {
	Key   btrfsprim.Key
	Chunk btrfsitem.Chunk
}

func (sc SysChunk) MarshalBinary() ([]byte, error) {
	dat, err := binstruct.Marshal(sc.Key)
	if err != nil {
		return dat, err
	}
	chunkDat, err := binstruct.Marshal(sc.Chunk)
	dat = append(dat, chunkDat...)
	return dat, err
}

func (sc *SysChunk) UnmarshalBinary(dat []byte) (int, error) {
	n, err := binstruct.Unmarshal(dat, &sc.Key)
	if err != nil {
		return n, err
	}
	m, err := binstruct.Unmarshal(dat[n:], &sc.Chunk)
	n += m
	return n, err
}

// ParseSysChunkArray decodes the superblock's bootstrap chunk list:
// the Translation Walker (C6) seeds the chunk cache from these before
// it can translate anything else, including the chunk tree root
// itself.
func (sb Superblock) ParseSysChunkArray() ([]SysChunk, error) {
	dat := sb.SysChunkArray[:sb.SysChunkArraySize]
	var ret []SysChunk
	for len(dat) > 0 {
		var pair SysChunk
		n, err := binstruct.Unmarshal(dat, &pair)
		dat = dat[n:]
		if err != nil {
			return ret, err
		}
		ret = append(ret, pair)
	}
	return ret, nil
}

// RootBackup is a snapshot of the tree-root pointers, kept so that an
// implementation can fall back to a recent-but-not-current set of
// roots if the live ones are damaged. This repo only reads them; it
// never performs the fallback itself (that's a write-path concern).
type RootBackup struct {
	TreeRoot    btrfsprim.ObjID      `bin:"off=0x0, siz=0x8"`
	TreeRootGen btrfsprim.Generation `bin:"off=0x8, siz=0x8"`

	ChunkRoot    btrfsprim.ObjID      `bin:"off=0x10, siz=0x8"`
	ChunkRootGen btrfsprim.Generation `bin:"off=0x18, siz=0x8"`

	ExtentRoot    btrfsprim.ObjID      `bin:"off=0x20, siz=0x8"`
	ExtentRootGen btrfsprim.Generation `bin:"off=0x28, siz=0x8"`

	FSRoot    btrfsprim.ObjID      `bin:"off=0x30, siz=0x8"`
	FSRootGen btrfsprim.Generation `bin:"off=0x38, siz=0x8"`

	DevRoot    btrfsprim.ObjID      `bin:"off=0x40, siz=0x8"`
	DevRootGen btrfsprim.Generation `bin:"off=0x48, siz=0x8"`

	ChecksumRoot    btrfsprim.ObjID      `bin:"off=0x50, siz=0x8"`
	ChecksumRootGen btrfsprim.Generation `bin:"off=0x58, siz=0x8"`

	TotalBytes uint64 `bin:"off=0x60, siz=0x8"`
	BytesUsed  uint64 `bin:"off=0x68, siz=0x8"`
	NumDevices uint64 `bin:"off=0x70, siz=0x8"`

	Unused [8 * 4]byte `bin:"off=0x78, siz=0x20"`

	TreeRootLevel     uint8 `bin:"off=0x98, siz=0x1"`
	ChunkRootLevel    uint8 `bin:"off=0x99, siz=0x1"`
	ExtentRootLevel   uint8 `bin:"off=0x9a, siz=0x1"`
	FSRootLevel       uint8 `bin:"off=0x9b, siz=0x1"`
	DevRootLevel      uint8 `bin:"off=0x9c, siz=0x1"`
	ChecksumRootLevel uint8 `bin:"off=0x9d, siz=0x1"`

	Padding       [10]byte `bin:"off=0x9e, siz=0xa"`
	binstruct.End `bin:"off=0xa8"`
}

type IncompatFlags uint64

const (
	FeatureIncompatMixedBackref = IncompatFlags(1 << iota)
	FeatureIncompatDefaultSubvol
	FeatureIncompatMixedGroups
	FeatureIncompatCompressLZO
	FeatureIncompatCompressZSTD
	FeatureIncompatBigMetadata // buggy
	FeatureIncompatExtendedIRef
	FeatureIncompatRAID56
	FeatureIncompatSkinnyMetadata
	FeatureIncompatNoHoles
	FeatureIncompatMetadataUUID
	FeatureIncompatRAID1C34
	FeatureIncompatZoned
	FeatureIncompatExtentTreeV2
)

var incompatFlagNames = []string{
	"FeatureIncompatMixedBackref",
	"FeatureIncompatDefaultSubvol",
	"FeatureIncompatMixedGroups",
	"FeatureIncompatCompressLZO",
	"FeatureIncompatCompressZSTD",
	"FeatureIncompatBigMetadata",
	"FeatureIncompatExtendedIRef",
	"FeatureIncompatRAID56",
	"FeatureIncompatSkinnyMetadata",
	"FeatureIncompatNoHoles",
	"FeatureIncompatMetadataUUID",
	"FeatureIncompatRAID1C34",
	"FeatureIncompatZoned",
	"FeatureIncompatExtentTreeV2",
}

func (f IncompatFlags) Has(req IncompatFlags) bool { return f&req == req }

func (f IncompatFlags) String() string {
	return fmtutil.BitfieldString(f, incompatFlagNames, fmtutil.HexLower)
}

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package extent_test

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/extent"
)

// fakePhysicalVolume is an in-memory diskio.ReaderAt[btrfsvol.PhysicalAddr].
type fakePhysicalVolume struct {
	data []byte
}

func (f *fakePhysicalVolume) ReadAt(p []byte, off btrfsvol.PhysicalAddr) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}

func newTestVolume(t *testing.T, physData []byte) *btrfsvol.Volume[*fakePhysicalVolume] {
	t.Helper()
	vol := btrfsvol.NewVolume[*fakePhysicalVolume](nil)
	require.NoError(t, vol.AddPhysicalVolume(1, &fakePhysicalVolume{data: physData}))
	require.NoError(t, vol.Cache.InsertMappings(btrfsvol.AddrDelta(len(physData)), btrfsvol.Mapping{
		LAddr: 0x100000,
		PAddr: btrfsvol.QualifiedPhysicalAddr{Dev: 1, Addr: 0},
		Size:  btrfsvol.AddrDelta(len(physData)),
	}))
	return vol
}

func TestReadInlineUncompressed(t *testing.T) {
	t.Parallel()
	fe := btrfsitem.FileExtent{
		Type:       btrfsitem.FILE_EXTENT_INLINE,
		RAMBytes:   5,
		BodyInline: []byte("hello"),
	}
	data, err := extent.Read[*fakePhysicalVolume](nil, fe)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReadInlineZlib(t *testing.T) {
	t.Parallel()
	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	_, err := w.Write([]byte("hello, compressed world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fe := btrfsitem.FileExtent{
		Type:        btrfsitem.FILE_EXTENT_INLINE,
		Compression: btrfsitem.COMPRESS_ZLIB,
		RAMBytes:    int64(len("hello, compressed world")),
		BodyInline:  compressed.Bytes(),
	}
	data, err := extent.Read[*fakePhysicalVolume](nil, fe)
	require.NoError(t, err)
	assert.Equal(t, "hello, compressed world", string(data))
}

func TestReadRegularExtentCroppedToOffset(t *testing.T) {
	t.Parallel()
	vol := newTestVolume(t, []byte("0123456789abcdefghij"))
	fe := btrfsitem.FileExtent{
		Type: btrfsitem.FILE_EXTENT_REG,
		BodyExtent: btrfsitem.FileExtentExtent{
			DiskByteNr:   0x100000,
			DiskNumBytes: 20,
			Offset:       5,
			NumBytes:     4,
		},
	}
	data, err := extent.Read(vol, fe)
	require.NoError(t, err)
	assert.Equal(t, "5678", string(data))
}

func TestReadHoleIsZeroFilled(t *testing.T) {
	t.Parallel()
	fe := btrfsitem.FileExtent{
		Type: btrfsitem.FILE_EXTENT_PREALLOC,
		BodyExtent: btrfsitem.FileExtentExtent{
			NumBytes: 16,
		},
	}
	data, err := extent.Read[*fakePhysicalVolume](nil, fe)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), data)
}

func TestReadEncryptedRejected(t *testing.T) {
	t.Parallel()
	fe := btrfsitem.FileExtent{Type: btrfsitem.FILE_EXTENT_INLINE, Encryption: 1}
	_, err := extent.Read[*fakePhysicalVolume](nil, fe)
	assert.ErrorIs(t, err, extent.ErrEncrypted)
}

func TestMaterializeFillsHolesBetweenExtents(t *testing.T) {
	t.Parallel()
	items := []extent.Item{
		{FileOffset: 4, Body: btrfsitem.FileExtent{Type: btrfsitem.FILE_EXTENT_INLINE, RAMBytes: 3, BodyInline: []byte("abc")}},
		{FileOffset: 10, Body: btrfsitem.FileExtent{Type: btrfsitem.FILE_EXTENT_INLINE, RAMBytes: 2, BodyInline: []byte("xy")}},
	}
	var buf bytes.Buffer
	require.NoError(t, extent.Materialize[*fakePhysicalVolume](nil, items, &buf))
	assert.Equal(t, append(append(make([]byte, 4), []byte("abc")...), append(make([]byte, 3), []byte("xy")...)...), buf.Bytes())
}

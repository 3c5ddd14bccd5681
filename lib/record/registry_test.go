// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsitem"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
)

type fakeStruct struct{ X int }

func TestRegistryDuplicateStructLastWins(t *testing.T) {
	t.Parallel()
	reg := record.NewRegistry()
	m := record.MapperFunc{
		Parsed: reflect.TypeOf(fakeStruct{}),
		Record: "test.fake",
		Fn:     func(parsed interface{}, loc record.Location) (*record.Envelope, error) { return &record.Envelope{}, nil },
	}
	require.NoError(t, reg.Register(m))
	err := reg.Register(record.MapperFunc{
		Parsed: reflect.TypeOf(fakeStruct{}),
		Record: "test.fake2",
		Fn:     m.Fn,
	})
	assert.NoError(t, err)
	got, ok := reg.ForStruct(reflect.TypeOf(fakeStruct{}))
	require.True(t, ok)
	assert.Equal(t, "test.fake2", got.RecordType())
}

func TestRegistryMapLeafItemUnknownKeyType(t *testing.T) {
	t.Parallel()
	reg := record.NewRegistry()
	env, err := reg.MapLeafItem(btrfsprim.ItemType(255), nil, record.Location{})
	require.NoError(t, err)
	assert.Equal(t, "btrfs.leaf_item", env.Type)
	assert.Nil(t, env.Fields["payload"])
}

func TestBuiltinsMapChunk(t *testing.T) {
	t.Parallel()
	chunk := btrfsitem.Chunk{
		Head: btrfsitem.ChunkHeader{
			Size:      0x10000,
			StripeLen: 0x10000,
			Type:      0,
		},
		Stripes: []btrfsitem.ChunkStripe{
			{DeviceID: 1, Offset: 0x800},
		},
	}
	env, err := record.Builtins.MapStruct(chunk, record.Location{DeviceID: 1, Phys: 0x500, Size: 0x30})
	require.NoError(t, err)
	assert.Equal(t, "btrfs.chunk", env.Type)
	require.Len(t, env.Children, 1)
	assert.Equal(t, "btrfs.chunk_stripe", env.Children[0].Type)
	assert.Equal(t, uint64(1), env.Children[0].Fields["device_id"])
}

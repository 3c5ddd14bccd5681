// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

func TestCacheTranslateStriping(t *testing.T) {
	t.Parallel()
	cache := new(btrfsvol.Cache)
	err := cache.Insert(0x100000, 0x100000, 0x10000, []btrfsvol.QualifiedPhysicalAddr{
		{Dev: 1, Addr: 0x800},
		{Dev: 2, Addr: 0x1800},
	})
	require.NoError(t, err)

	extents, err := cache.Translate(0x10f000, 0x2000)
	require.NoError(t, err)
	assert.Equal(t, []btrfsvol.Extent{
		{PAddr: btrfsvol.QualifiedPhysicalAddr{Dev: 1, Addr: 0xf800}, Len: 0x1000},
		{PAddr: btrfsvol.QualifiedPhysicalAddr{Dev: 2, Addr: 0x1800}, Len: 0x1000},
	}, extents)
}

func TestCacheTranslateUnmapped(t *testing.T) {
	t.Parallel()
	cache := new(btrfsvol.Cache)
	_, err := cache.Translate(0x500000, 0x1000)
	require.Error(t, err)
	var unmapped *btrfsvol.UnmappedError
	assert.ErrorAs(t, err, &unmapped)
}

func TestCacheInsertReplacesExactRange(t *testing.T) {
	t.Parallel()
	cache := new(btrfsvol.Cache)
	require.NoError(t, cache.Insert(0x100000, 0x10000, 0x10000, []btrfsvol.QualifiedPhysicalAddr{
		{Dev: 1, Addr: 0x800},
	}))
	require.NoError(t, cache.Insert(0x100000, 0x10000, 0x10000, []btrfsvol.QualifiedPhysicalAddr{
		{Dev: 2, Addr: 0x2000},
	}))
	assert.Equal(t, 1, cache.Len())

	extents, err := cache.Translate(0x100000, 0x100)
	require.NoError(t, err)
	require.Len(t, extents, 1)
	assert.Equal(t, btrfsvol.DeviceID(2), extents[0].PAddr.Dev)
}

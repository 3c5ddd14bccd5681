// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/containers"
	"github.com/yakfsrecon/btrfs-forensic/lib/devreader"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	"github.com/yakfsrecon/btrfs-forensic/lib/scan"
)

// newScanCmd implements the `scan` subcommand: the Forensic Scanner
// (C5) sweep over each configured device, for recovering metadata
// that the chunk-tree walk alone can't reach -- torn trees, orphaned
// nodes, anything still readable outside the live chunk map.
func newScanCmd() *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Sweep each configured device for surviving tree nodes outside the chunk tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			opened, err := openImages(cfg.Devices)
			if err != nil {
				return err
			}
			defer func() {
				for _, img := range opened {
					img.reader.Close()
				}
			}()

			for _, img := range opened {
				devID := btrfsvol.DeviceID(img.sb.DevItem.DevID)
				dc := img.dc
				scanCfg := scan.DefaultConfig(func() (devreader.Reader, error) { return openDevice(dc) })
				scanCfg.Alignment = btrfsvol.AddrDelta(cfg.Scan.Alignment)
				scanCfg.Workers = cfg.Scan.Workers
				scanCfg.ExpectedUUID = containers.OptionalValue(img.sb.EffectiveMetadataUUID())
				if reverse {
					scanCfg.Direction = scan.Reverse
				}

				err := scan.Scan(ctx, img.sb, img.reader, scanCfg, func(ctx context.Context, offset btrfsvol.PhysicalAddr, node *btrfstree.Node) error {
					return scanHandleNode(ctx, store, devID, offset, node)
				})
				if err != nil {
					return fmt.Errorf("reconctl: scan %q: %w", img.dc.Path, err)
				}
				dlog.Infof(ctx, "scan: %s done", img.dc.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "sweep from the end of each device instead of the start")
	return cmd
}

// scanHandleNode maps one scanner-recovered node (and its leaf items,
// if any) to records and stages them, the same way syncNode does for
// the chunk-tree walk.
func scanHandleNode(ctx context.Context, store record.Store, devID btrfsvol.DeviceID, offset btrfsvol.PhysicalAddr, node *btrfstree.Node) error {
	loc := record.Location{DeviceID: devID, Phys: offset, Size: btrfsvol.AddrDelta(node.Size)}
	nodeEnv, err := record.Builtins.MapStruct(node.Head, loc)
	if err != nil {
		return err
	}
	if err := stageOne(store, nodeEnv); err != nil {
		return err
	}

	for _, item := range node.BodyLeaf {
		itemLoc := record.Location{
			DeviceID: devID,
			Phys:     offset.Add(nodeHeaderSize + btrfsvol.AddrDelta(item.DataOffset)),
			Size:     btrfsvol.AddrDelta(item.BodySize),
		}
		itemEnv, err := record.Builtins.MapLeafItem(item.Key.ItemType, item.Body, itemLoc)
		if err != nil {
			dlog.Errorf(ctx, "scan: map leaf item %v at %v: %v", item.Key, offset, err)
			continue
		}
		if err := stageOne(store, itemEnv); err != nil {
			dlog.Errorf(ctx, "scan: stage leaf item %v at %v: %v", item.Key, offset, err)
		}
	}
	return nil
}

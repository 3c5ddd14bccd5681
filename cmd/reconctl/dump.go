// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"fmt"
	"io"

	lowmemjson "git.lukeshu.com/go/lowmemjson"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/yakfsrecon/btrfs-forensic/lib/record"
)

// newDumpCmd implements the `dump` subcommand: print every stored
// record of one type for ad hoc inspection, either as JSON (the same
// codec the record stores persist with) or, with --format=spew, as a
// %#v-style dump for a human staring at the terminal.
func newDumpCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump RECORD-TYPE",
		Short: "Print every stored record of the named type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordType := args[0]
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			rows, err := store.Query(recordType, nil)
			if err != nil {
				return fmt.Errorf("reconctl: dump %q: %w", recordType, err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "", "json":
				for _, row := range rows {
					if err := writeJSONRecord(out, row); err != nil {
						return err
					}
				}
			case "spew":
				for _, row := range rows {
					spew.Fdump(out, row)
				}
			default:
				return fmt.Errorf("reconctl: unknown --format %q (want json or spew)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or spew")
	return cmd
}

// writeJSONRecord encodes one record.Envelope as a single JSON line,
// the same lowmemjson codec the record stores use to persist it.
func writeJSONRecord(out io.Writer, row *record.Envelope) error {
	var buf bytes.Buffer
	if err := lowmemjson.Encode(&buf, row); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

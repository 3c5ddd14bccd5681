// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonutil

import (
	"bytes"
	"fmt"
	"io"

	"git.lukeshu.com/go/lowmemjson"

	"github.com/yakfsrecon/btrfs-forensic/lib/binstruct"
	"github.com/yakfsrecon/btrfs-forensic/lib/textui"
)

type Binary[T any] struct {
	Val T
}

var (
	_ lowmemjson.Encodable = Binary[int]{}
	_ lowmemjson.Decodable = (*Binary[int])(nil)
)

func (o Binary[T]) EncodeJSON(w io.Writer) error {
	bs, err := binstruct.Marshal(o.Val)
	if err != nil {
		return err
	}
	return EncodeSplitHexString(w, bs, textui.Tunable(80))
}

func (o *Binary[T]) DecodeJSON(r io.RuneScanner) error {
	var buf bytes.Buffer
	if err := DecodeSplitHexString(r, &buf); err != nil {
		return err
	}
	n, err := binstruct.Unmarshal(buf.Bytes(), &o.Val)
	if err != nil {
		return err
	}
	if n < buf.Len() {
		return fmt.Errorf("%d bytes of garbage after value", buf.Len()-n)
	}
	return nil
}

// RawBytes is like Binary, but for a value that's already a raw byte
// slice (inline extent data, a checksum run) rather than a
// binstruct-decodable struct -- it skips the Marshal/Unmarshal
// round-trip Binary does and hex-encodes the bytes directly.
type RawBytes []byte

var (
	_ lowmemjson.Encodable = RawBytes(nil)
	_ lowmemjson.Decodable = (*RawBytes)(nil)
)

func (b RawBytes) EncodeJSON(w io.Writer) error {
	return EncodeSplitHexString(w, []byte(b), textui.Tunable(80))
}

func (b *RawBytes) DecodeJSON(r io.RuneScanner) error {
	var buf bytes.Buffer
	if err := DecodeSplitHexString(r, &buf); err != nil {
		return err
	}
	*b = buf.Bytes()
	return nil
}

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

import "fmt"

// ParseError wraps a structural decode failure: short read, bad
// magic, an enum or range check that failed.
type ParseError struct {
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %#x: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ChecksumMismatch is returned by integrity checks that reject bad
// checksums; the scanner tolerates it instead of treating it as fatal.
type ChecksumMismatch struct {
	Offset   int64
	Expected string
	Actual   string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch at offset %#x: expected %s, got %s", e.Offset, e.Expected, e.Actual)
}

// BootstrapFailure is returned when the translation walker cannot
// translate the chunk-root logical address; it is always fatal to
// the containing operation.
type BootstrapFailure struct {
	Err error
}

func (e *BootstrapFailure) Error() string { return fmt.Sprintf("bootstrap failure: %v", e.Err) }
func (e *BootstrapFailure) Unwrap() error { return e.Err }

// RegistryMiss is returned when no mapper is registered for a parsed
// struct type or leaf key type. Callers decide whether this is fatal:
// it's expected (and non-fatal) for unknown leaf item key types, but
// fatal for structures the caller otherwise expected to map.
type RegistryMiss struct {
	Kind string // "struct", "record", or "leaf-key-type"
	What string
}

func (e *RegistryMiss) Error() string {
	return fmt.Sprintf("registry: no mapper registered for %s %s", e.Kind, e.What)
}

// DedupConflict is returned when two candidates in the same
// transaction target the same Address with incompatible type-tags.
type DedupConflict struct {
	DeviceID interface{}
	Phys     interface{}
	PhysSize interface{}
	TypeA    string
	TypeB    string
}

func (e *DedupConflict) Error() string {
	return fmt.Sprintf("dedup conflict at (dev=%v, phys=%v, size=%v): %s vs %s",
		e.DeviceID, e.Phys, e.PhysSize, e.TypeA, e.TypeB)
}

// IoError wraps a device-read failure as it propagates up through the
// mapping and scanning layers.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("io error during %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scan implements the Forensic Scanner (C5): an aligned sweep
// over a device image that recovers surviving tree-node headers,
// driven by a single producer feeding a bounded work queue that a
// worker pool drains.
//
// It is grounded on the sequential, header-then-body two-pass shape
// of btrfsutil.ScanOneDevice (the teacher's single-threaded device
// scanner), generalized into the two-bounded-queue producer/worker
// design the forensic use case needs: workers here each own an
// independent device handle and commit through an independent
// transaction per offset, rather than sharing one cursor and one
// result accumulator.
package scan

import (
	"context"
	"errors"
	"sync"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"
	"github.com/dustin/go-humanize"

	"github.com/yakfsrecon/btrfs-forensic/lib/binstruct"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/containers"
	"github.com/yakfsrecon/btrfs-forensic/lib/devreader"
)

// Direction controls the order the producer walks candidate offsets
// in. Ordering is only guaranteed between offsets the producer
// emits; workers drain the queue with no ordering between them.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

var nodeHeaderSize = binstruct.StaticSize(btrfstree.NodeHeader{})

// Config holds the scanner's tunables. The zero Config is not
// usable: Alignment, Workers, and the two queue sizes must be set
// (DefaultConfig below supplies sane defaults).
type Config struct {
	Alignment    btrfsvol.AddrDelta
	Start        containers.Optional[btrfsvol.PhysicalAddr]
	End          containers.Optional[btrfsvol.PhysicalAddr]
	Direction    Direction
	ExpectedUUID containers.Optional[btrfsprim.UUID] // compared against the node header's fsid (metadata UUID)
	Predicate    func(btrfstree.NodeHeader) bool

	QueueSize    int // candidate work queue
	InFlightSize int // in-flight commit queue, caps concurrent commits
	Workers      int

	// NewWorkerReader opens an independent device handle for one
	// worker. Called once per worker, never shared between them --
	// this is what lets workers issue ReadAt calls without
	// contending over a single seek cursor.
	NewWorkerReader func() (devreader.Reader, error)
}

// DefaultConfig returns a Config with the spec's defaults
// (alignment 0x10000, one worker, modest queue depths) for a caller
// to override selectively.
func DefaultConfig(newReader func() (devreader.Reader, error)) Config {
	return Config{
		Alignment:       0x10000,
		Direction:       Forward,
		QueueSize:       64,
		InFlightSize:    8,
		Workers:         1,
		NewWorkerReader: newReader,
	}
}

// HandleFunc is invoked by a worker for each candidate offset whose
// header passed the producer's filter; it is responsible for
// parsing the full node (already done by the time it's called),
// mapping it to records, and committing through its own transaction.
type HandleFunc func(ctx context.Context, offset btrfsvol.PhysicalAddr, node *btrfstree.Node) error

type candidate struct {
	offset btrfsvol.PhysicalAddr
	header btrfstree.NodeHeader
}

// Scan sweeps reader for tree-node headers per cfg, invoking handle
// for each full node a worker successfully parses. Per-offset worker
// errors are collected (and logged) rather than aborting the sweep;
// Scan returns a non-nil *derror.MultiError if any occurred. A
// canceled ctx stops the producer promptly and Scan returns once
// in-flight work has drained.
func Scan(ctx context.Context, sb btrfstree.Superblock, reader devreader.Reader, cfg Config, handle HandleFunc) error {
	positions := alignedPositions(sb, reader, cfg)
	dlog.Infof(ctx, "scan: sweeping %s in %d-byte steps (%s total), %d candidate offset(s)",
		humanize.Bytes(uint64(reader.Size())), cfg.Alignment, humanize.Bytes(uint64(len(positions))*uint64(cfg.Alignment)), len(positions))

	candidates := make(chan candidate, cfg.QueueSize)
	inFlight := make(chan struct{}, cfg.InFlightSize)

	var errsMu sync.Mutex
	var errs derror.MultiError
	addErr := func(offset btrfsvol.PhysicalAddr, err error) {
		errsMu.Lock()
		defer errsMu.Unlock()
		errs = append(errs, err)
		dlog.Errorf(ctx, "scan: offset %v: %v", offset, err)
	}

	var producerWG sync.WaitGroup
	producerWG.Add(1)
	go func() {
		defer producerWG.Done()
		defer close(candidates)
		header := make([]byte, nodeHeaderSize)
		for i, pos := range positions {
			if ctx.Err() != nil {
				return
			}
			if i > 0 && i%4096 == 0 {
				dlog.Infof(ctx, "scan: probed %d/%d offsets (%s swept)",
					i, len(positions), humanize.Bytes(uint64(i)*uint64(cfg.Alignment)))
			}
			if _, err := reader.ReadAt(header, pos); err != nil {
				continue
			}
			var hdr btrfstree.NodeHeader
			if _, err := binstruct.Unmarshal(header, &hdr); err != nil {
				continue
			}
			if cfg.ExpectedUUID.OK && hdr.MetadataUUID != cfg.ExpectedUUID.Val {
				continue
			}
			if cfg.Predicate != nil && !cfg.Predicate(hdr) {
				continue
			}
			select {
			case candidates <- candidate{offset: pos, header: hdr}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var workersWG sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		workerReader, err := cfg.NewWorkerReader()
		if err != nil {
			return err
		}
		workersWG.Add(1)
		go func(workerReader devreader.Reader) {
			defer workersWG.Done()
			defer workerReader.Close()
			for cand := range candidates {
				select {
				case inFlight <- struct{}{}:
				case <-ctx.Done():
					return
				}
				node, err := btrfstree.ReadNode[btrfsvol.PhysicalAddr](workerReader, sb, cand.offset, btrfstree.NodeExpectations{})
				if err != nil {
					if !errors.Is(err, btrfstree.ErrNotANode) {
						addErr(cand.offset, err)
					}
					node.Free()
					<-inFlight
					continue
				}
				if err := handle(ctx, cand.offset, node); err != nil {
					addErr(cand.offset, err)
				}
				node.Free()
				<-inFlight
			}
		}(workerReader)
	}

	producerWG.Wait()
	workersWG.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// alignedPositions computes the sector-aligned candidate offsets in
// [0, file_size-node_size], clipped by cfg.Start/End and ordered per
// cfg.Direction.
func alignedPositions(sb btrfstree.Superblock, reader devreader.Reader, cfg Config) []btrfsvol.PhysicalAddr {
	nodeSize := btrfsvol.AddrDelta(sb.NodeSize)
	fileSize := reader.Size()
	lastStart := fileSize - btrfsvol.PhysicalAddr(nodeSize)
	if lastStart < 0 {
		return nil
	}

	start := btrfsvol.PhysicalAddr(0)
	if cfg.Start.OK && cfg.Start.Val > start {
		start = cfg.Start.Val
	}
	end := lastStart
	if cfg.End.OK && cfg.End.Val < end {
		end = cfg.End.Val
	}
	if end < start {
		return nil
	}

	align := cfg.Alignment
	if align <= 0 {
		align = 1
	}
	// round start up to the next aligned position
	if rem := int64(start) % int64(align); rem != 0 {
		start += btrfsvol.PhysicalAddr(int64(align) - rem)
	}

	var positions []btrfsvol.PhysicalAddr
	for pos := start; pos <= end; pos += btrfsvol.PhysicalAddr(align) {
		positions = append(positions, pos)
	}
	if cfg.Direction == Reverse {
		for i, j := 0, len(positions)-1; i < j; i, j = i+1, j-1 {
			positions[i], positions[j] = positions[j], positions[i]
		}
	}
	return positions
}

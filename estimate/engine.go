// Copyright 2019 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package estimate

import (
	"runtime"
	"sync/atomic"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/erate/interval"
	"github.com/grailbio/erate/overlap"
	"github.com/pkg/errors"
)

// Reads are handed to workers in chunks of this many, so highly variable
// per-read overlap counts still balance.
const readChunk = 1000

type Opts struct {
	// IIDMin and IIDMax bound the inclusive 1-based read-ID window to
	// process; 0 means the corresponding end of the full range.  Every
	// overlap partner must fall inside the window.
	IIDMin uint32
	IIDMax uint32
	// Iterations is the number of reestimation rounds.
	Iterations int
	// Tolerance is the decoded-error-rate slack above the profile-derived
	// estimate before an overlap is discarded.
	Tolerance float64
	// Parallelism caps the number of concurrent workers; 0 = NumCPU.
	Parallelism int
}

var DefaultOpts = Opts{
	Iterations:  4,
	Tolerance:   0.03,
	Parallelism: 0,
}

// IterStats summarizes one iteration's discard decisions.
type IterStats struct {
	// PrevDiscarded counts overlap visits skipped because the overlap was
	// discarded in an earlier iteration.
	PrevDiscarded uint64
	// Discarded counts overlaps discarded by this iteration's tolerance
	// check.
	Discarded uint64
	// Remain counts overlaps that contributed to profiles this iteration.
	Remain uint64
}

// Engine runs the iterative reestimation over a read-ID window.  The
// overlap array is shared with the caller: the engine mutates only the
// per-overlap discard flags, which the caller then feeds to WriteFiltered.
type Engine struct {
	opts     Opts
	iidMin   uint32
	numIIDs  uint32
	profiles []Profile
	overlaps []overlap.Overlap
	// index maps window-relative read index to the half-open slice of
	// overlaps owned by that read.  Built once, never mutated.
	index []uint64
}

// NewEngine builds the per-read profiles and overlap index.  countsPerRead
// holds each window read's overlap count in window order; its total must
// match len(overlaps).
func NewEngine(opts Opts, reads ReadStore, overlaps []overlap.Overlap, countsPerRead []uint32) (*Engine, error) {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultOpts.Iterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOpts.Tolerance
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.IIDMin == 0 {
		opts.IIDMin = 1
	}
	if opts.IIDMax == 0 {
		opts.IIDMax = reads.NumReads()
	}
	if opts.IIDMin > opts.IIDMax || opts.IIDMax > reads.NumReads() {
		return nil, errors.Errorf("bad read window [%d, %d], store has %d reads",
			opts.IIDMin, opts.IIDMax, reads.NumReads())
	}
	numIIDs := opts.IIDMax - opts.IIDMin + 1
	if uint32(len(countsPerRead)) != numIIDs {
		return nil, errors.Errorf("got %d per-read counts for a window of %d reads",
			len(countsPerRead), numIIDs)
	}
	e := &Engine{
		opts:     opts,
		iidMin:   opts.IIDMin,
		numIIDs:  numIIDs,
		profiles: make([]Profile, numIIDs),
		overlaps: overlaps,
		index:    make([]uint64, numIIDs+1),
	}
	for i := uint32(0); i < numIIDs; i++ {
		iid := opts.IIDMin + i
		if !reads.IsDeleted(iid) {
			e.profiles[i] = newProfile(reads.ReadLength(iid))
		}
		e.index[i+1] = e.index[i] + uint64(countsPerRead[i])
	}
	if e.index[numIIDs] != uint64(len(overlaps)) {
		return nil, errors.Errorf("per-read counts sum to %d overlaps, have %d",
			e.index[numIIDs], len(overlaps))
	}
	return e, nil
}

// Profile returns read iid's profile, or nil when iid is outside the window.
func (e *Engine) Profile(iid uint32) *Profile {
	if iid < e.iidMin || iid >= e.iidMin+e.numIIDs {
		return nil
	}
	return &e.profiles[iid-e.iidMin]
}

// Run performs the configured number of iterations, logging per-iteration
// discard counts.
func (e *Engine) Run() error {
	for iter := 0; iter < e.opts.Iterations; iter++ {
		stats, err := e.RunIteration(iter)
		if err != nil {
			return err
		}
		log.Printf("iteration %d: %d discarded earlier, %d discarded now, %d remain",
			iter, stats.PrevDiscarded, stats.Discarded, stats.Remain)
	}
	return nil
}

// RunIteration recomputes every window read's profile and, when iter > 0,
// discards overlaps inconsistent with the previous iteration's profiles.
// Discards are monotone: once set, the flag never clears.  The final discard
// set does not depend on the order overlaps are visited within a read; the
// tolerance check reads only the previous iteration's frozen prefix sums.
func (e *Engine) RunIteration(iter int) (IterStats, error) {
	var (
		stats   IterStats
		cursor  uint32
		nChunks = (e.numIIDs + readChunk - 1) / readChunk
	)
	err := traverse.Each(e.opts.Parallelism, func(_ int) error {
		var (
			agg   interval.Aggregator
			local IterStats
		)
		for {
			c := atomic.AddUint32(&cursor, 1) - 1
			if c >= nChunks {
				break
			}
			lo := c * readChunk
			hi := lo + readChunk
			if hi > e.numIIDs {
				hi = e.numIIDs
			}
			for idx := lo; idx < hi; idx++ {
				if err := e.processRead(idx, iter, &agg, &local); err != nil {
					return err
				}
			}
		}
		atomic.AddUint64(&stats.PrevDiscarded, local.PrevDiscarded)
		atomic.AddUint64(&stats.Discarded, local.Discarded)
		atomic.AddUint64(&stats.Remain, local.Remain)
		return nil
	})
	if err != nil {
		return IterStats{}, err
	}

	// All means are in place; roll them into the prefix sums.  Each read
	// depends only on its own scratch array, so this parallelizes the same
	// way.
	cursor = 0
	err = traverse.Each(e.opts.Parallelism, func(_ int) error {
		for {
			c := atomic.AddUint32(&cursor, 1) - 1
			if c >= nChunks {
				return nil
			}
			lo := c * readChunk
			hi := lo + readChunk
			if hi > e.numIIDs {
				hi = e.numIIDs
			}
			for idx := lo; idx < hi; idx++ {
				if e.profiles[idx].seqLen != 0 {
					e.profiles[idx].rebuildSum()
				}
			}
		}
	})
	if err != nil {
		return IterStats{}, err
	}
	return stats, nil
}

func (e *Engine) processRead(idx uint32, iter int, agg *interval.Aggregator, stats *IterStats) error {
	p := &e.profiles[idx]
	if p.seqLen == 0 {
		// Deleted read.
		return nil
	}
	p.resetMean()
	agg.Reset()

	for oi := e.index[idx]; oi < e.index[idx+1]; oi++ {
		ov := &e.overlaps[oi]
		if ov.Discarded() {
			stats.PrevDiscarded++
			continue
		}
		if aIID := ov.AIID(); aIID != e.iidMin+idx {
			return errors.Errorf("overlap %d: a read %d, indexed under read %d",
				oi, aIID, e.iidMin+idx)
		}
		pb := e.Profile(ov.BIID())
		if pb == nil {
			return errors.Errorf("overlap %d-%d: partner outside read window [%d, %d]",
				ov.AIID(), ov.BIID(), e.iidMin, e.iidMin+e.numIIDs-1)
		}
		sp := overlap.NewSpan(ov, p.seqLen, pb.seqLen)
		if err := sp.Check(p.seqLen, pb.seqLen); err != nil {
			return err
		}

		erate := ov.Erate()
		if iter > 0 {
			// Average the two reads' per-base profile means over the
			// alignment, in quantized units, then decode.
			est := (p.meanOver(sp.ABeg, sp.AEnd) + pb.meanOver(sp.BBeg, sp.BEnd)) / 2
			if est*overlap.EvalueResolution+e.opts.Tolerance < erate {
				ov.Discard()
				stats.Discarded++
				continue
			}
		}

		stats.Remain++
		if err := agg.Add(sp.ABeg, sp.AEnd, erate/2); err != nil {
			return err
		}
	}

	for _, f := range agg.Flatten() {
		if f.Hi > p.seqLen {
			return errors.Errorf("read %d: aggregated interval [%d, %d) past length %d",
				e.iidMin+idx, f.Lo, f.Hi, p.seqLen)
		}
		ev, err := overlap.EncodeEvalue(f.Mean())
		if err != nil {
			return errors.Wrapf(err, "read %d", e.iidMin+idx)
		}
		p.setMean(f.Lo, f.Hi, ev)
	}
	return nil
}

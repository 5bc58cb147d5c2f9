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
	"fmt"
	"io"

	"github.com/grailbio/erate/overlap"
)

// Profile is one read's per-base error estimate.  errorMean holds the
// quantized mean error of each base computed this iteration; errorSum is its
// prefix sum (errorSum[0] == 0, length seqLen+1), giving O(1) range sums for
// the overlap-consistency check.  A profile is owned by its read: during the
// parallel phase only the owning goroutine writes it, other goroutines only
// read errorSum values frozen at the end of the previous iteration.
type Profile struct {
	seqLen    uint32
	errorSum  []uint32
	errorMean []uint16
}

func newProfile(seqLen uint32) Profile {
	if seqLen == 0 {
		// Deleted read; never touched again.
		return Profile{}
	}
	return Profile{
		seqLen:    seqLen,
		errorSum:  make([]uint32, seqLen+1),
		errorMean: make([]uint16, seqLen),
	}
}

// SeqLen returns the read's length; 0 marks a deleted read.
func (p *Profile) SeqLen() uint32 { return p.seqLen }

// RangeSum returns the summed quantized error over bases [beg, end).
func (p *Profile) RangeSum(beg, end uint32) uint32 {
	return p.errorSum[end] - p.errorSum[beg]
}

// meanOver returns the mean quantized error per base over [beg, end).
// The division stays in floating point so repeated requantization cannot
// compound across iterations.
func (p *Profile) meanOver(beg, end uint32) float64 {
	return float64(p.RangeSum(beg, end)) / float64(end-beg)
}

// resetMean clears the scratch array.  Stale means from a previous iteration
// must never leak into bases no surviving overlap touches this iteration.
func (p *Profile) resetMean() {
	for i := range p.errorMean {
		p.errorMean[i] = 0
	}
}

func (p *Profile) setMean(lo, hi uint32, ev uint16) {
	for i := lo; i < hi; i++ {
		p.errorMean[i] = ev
	}
}

// rebuildSum rolls the freshly written means into the prefix sum.
func (p *Profile) rebuildSum() {
	for i, m := range p.errorMean {
		p.errorSum[i+1] = p.errorSum[i] + uint32(m)
	}
}

// Dump writes the per-base decoded error estimate as "pos<TAB>rate" lines,
// for offline inspection of a single read's profile.
func (p *Profile) Dump(w io.Writer) error {
	for i, m := range p.errorMean {
		if _, err := fmt.Fprintf(w, "%d\t%.4f\n", i, overlap.DecodeEvalue(m)); err != nil {
			return err
		}
	}
	return nil
}

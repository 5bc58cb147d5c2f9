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
package interval

import (
	"sort"

	"github.com/pkg/errors"
)

// Flat is one output sub-interval of Aggregator.Flatten: [Lo, Hi) is covered
// by Depth inputs whose weights sum to Weight.  The per-base mean over the
// sub-interval is Weight/Depth.
type Flat struct {
	Lo     uint32
	Hi     uint32
	Weight float64
	Depth  uint32
}

// Mean returns the per-base value over the sub-interval.  The sweep's
// running weight carries float residue from departed inputs; when every
// covering weight is zero that residue can land a hair below zero, so
// negatives clamp to 0 rather than leak into downstream quantization.
func (f *Flat) Mean() float64 {
	if f.Weight <= 0 {
		return 0
	}
	return f.Weight / float64(f.Depth)
}

type span struct {
	lo     uint32
	hi     uint32
	weight float64
	depth  uint32
}

// Aggregator accumulates weighted half-open intervals and flattens them into
// non-overlapping sub-intervals annotated with summed weight and coverage
// depth.  The zero value is ready for use; Reset allows reuse across reads
// without reallocating.
type Aggregator struct {
	spans []span
}

// Add records [lo, hi) with the given weight, counting as a single covering
// interval.
func (a *Aggregator) Add(lo, hi uint32, weight float64) error {
	return a.AddDepth(lo, hi, weight, 1)
}

// AddDepth records [lo, hi) with the given weight and an explicit coverage
// depth, for feeding already-flattened intervals back through the
// aggregator.
func (a *Aggregator) AddDepth(lo, hi uint32, weight float64, depth uint32) error {
	if lo >= hi {
		return errors.Errorf("interval [%d, %d) is empty", lo, hi)
	}
	a.spans = append(a.spans, span{lo, hi, weight, depth})
	return nil
}

// Len returns the number of intervals added since the last Reset.
func (a *Aggregator) Len() int { return len(a.spans) }

// Reset discards all added intervals, retaining capacity.
func (a *Aggregator) Reset() { a.spans = a.spans[:0] }

// Flatten sweeps the accumulated intervals and returns the ordered maximal
// sub-intervals with depth > 0.  An input's full weight contributes to every
// sub-interval it covers (weights are not prorated by length).  Adjacent
// sub-intervals with identical weight and depth are coalesced.
func (a *Aggregator) Flatten() []Flat {
	if len(a.spans) == 0 {
		return nil
	}
	// Two events per span: weight/depth turn on at lo, off at hi.
	type event struct {
		pos    uint32
		weight float64
		depth  int64
	}
	events := make([]event, 0, 2*len(a.spans))
	for _, s := range a.spans {
		events = append(events,
			event{s.lo, s.weight, int64(s.depth)},
			event{s.hi, -s.weight, -int64(s.depth)})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].pos < events[j].pos })

	var (
		out    []Flat
		weight float64
		depth  int64
		prev   uint32
	)
	for i, ev := range events {
		if i > 0 && ev.pos != prev && depth > 0 {
			f := Flat{Lo: prev, Hi: ev.pos, Weight: weight, Depth: uint32(depth)}
			if n := len(out); n > 0 && out[n-1].Hi == f.Lo &&
				out[n-1].Weight == f.Weight && out[n-1].Depth == f.Depth {
				out[n-1].Hi = f.Hi
			} else {
				out = append(out, f)
			}
		}
		weight += ev.weight
		depth += ev.depth
		prev = ev.pos
	}
	return out
}

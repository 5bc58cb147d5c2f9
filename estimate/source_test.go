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
	"github.com/grailbio/erate/encoding/ovl"
)

// sliceSource serves an in-memory record list through the OverlapSource
// interface.  Records must be sorted by AIID, as in a real store.
type sliceSource struct {
	recs     []ovl.Record
	numReads uint32

	start, stop int
	pos         int
	bgn, end    uint32
}

func newSliceSource(numReads uint32, recs []ovl.Record) *sliceSource {
	s := &sliceSource{recs: recs, numReads: numReads}
	_ = s.SetRange(1, numReads)
	return s
}

func (s *sliceSource) SetRange(bgn, end uint32) error {
	s.bgn, s.end = bgn, end
	s.start = len(s.recs)
	for i, rec := range s.recs {
		if rec.AIID >= bgn {
			s.start = i
			break
		}
	}
	s.stop = len(s.recs)
	for i := s.start; i < len(s.recs); i++ {
		if s.recs[i].AIID > end {
			s.stop = i
			break
		}
	}
	s.pos = s.start
	return nil
}

func (s *sliceSource) CountInRange() uint64 {
	return uint64(s.stop - s.start)
}

func (s *sliceSource) CountsPerRead() []uint32 {
	counts := make([]uint32, s.end-s.bgn+1)
	for _, rec := range s.recs[s.start:s.stop] {
		counts[rec.AIID-s.bgn]++
	}
	return counts
}

func (s *sliceSource) LoadBlock(buf []ovl.Record) (int, error) {
	n := copy(buf, s.recs[s.pos:s.stop])
	s.pos += n
	return n, nil
}

// sliceSink collects appended records.
type sliceSink struct {
	recs []ovl.Record
}

func (s *sliceSink) Append(rec ovl.Record) error {
	s.recs = append(s.recs, rec)
	return nil
}

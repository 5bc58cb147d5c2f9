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
package overlap

import (
	"github.com/pkg/errors"
)

// Span holds the absolute alignment coordinates of an overlap on both reads,
// derived from the hangs and the two read lengths.  Spans are cheap to
// reconstruct, so they are never stored.
//
// Coordinates are half-open: the alignment covers a [ABeg, AEnd) and
// b [BBeg, BEnd).
type Span struct {
	AIID uint32
	BIID uint32

	ABeg uint32
	AEnd uint32
	BBeg uint32
	BEnd uint32

	Fwd    bool
	Evalue uint16
}

// NewSpan derives the span of ov given the lengths of its two reads.  The
// result is well-formed only for valid inputs; call Check before using the
// coordinates.
func NewSpan(ov *Overlap, lenA, lenB uint32) Span {
	aHang, bHang := ov.AHang(), ov.BHang()
	sp := Span{
		AIID:   ov.AIID(),
		BIID:   ov.BIID(),
		Fwd:    !ov.Flipped(),
		Evalue: ov.Evalue(),
	}
	if aHang < 0 {
		sp.ABeg = 0
		sp.BBeg = uint32(-aHang)
	} else {
		sp.ABeg = uint32(aHang)
		sp.BBeg = 0
	}
	if bHang < 0 {
		sp.AEnd = uint32(int32(lenA) + bHang)
		sp.BEnd = lenB
	} else {
		sp.AEnd = lenA
		sp.BEnd = uint32(int32(lenB) - bHang)
	}
	return sp
}

// Check verifies the span invariants: both projections must be nonempty and
// lie inside their reads.  A violation means the overlap, or the read
// lengths it was derived from, are corrupt.
func (s *Span) Check(lenA, lenB uint32) error {
	if s.ABeg >= s.AEnd || s.AEnd > lenA {
		return errors.Errorf("overlap %d-%d: bad a span [%d, %d) on read of length %d",
			s.AIID, s.BIID, s.ABeg, s.AEnd, lenA)
	}
	if s.BBeg >= s.BEnd || s.BEnd > lenB {
		return errors.Errorf("overlap %d-%d: bad b span [%d, %d) on read of length %d",
			s.AIID, s.BIID, s.BBeg, s.BEnd, lenB)
	}
	return nil
}

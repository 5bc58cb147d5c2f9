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

// Package overlap defines the compact in-memory representation of a pairwise
// read overlap, the quantized error-rate codec, and the derivation of
// absolute alignment coordinates from alignment hangs.
package overlap

import (
	"github.com/pkg/errors"
)

const (
	iidBits  = 23
	hangBits = 17

	// MaxIID is the largest read identifier an Overlap can store.
	MaxIID = 1<<iidBits - 1

	// MaxHang and MinHang bound the signed alignment hangs.
	MaxHang = 1<<(hangBits-1) - 1
	MinHang = -(1 << (hangBits - 1))

	hangBias = 1 << (hangBits - 1)
)

// Overlap is one pairwise overlap, packed into two machine words.  The full
// overlap store record carries more fields; this form keeps only what the
// reestimation engine needs, so hundreds of millions of overlaps fit in
// memory (and in the flat cache file, see estimate.LoadOverlaps).
//
// Layout of bits:    aIID[0:23)  bIID[23:46)  aHang+bias[46:63)  flipped[63]
// Layout of ebits:   bHang+bias[0:17)  evalue[17:29)  discarded[29]
//
// The discarded bit is the only mutable state.  During an iteration each
// Overlap is written by at most the one goroutine that owns its a-side read,
// and no other field shares a write, so plain stores are race-free.
type Overlap struct {
	bits  uint64
	ebits uint32
}

// New packs an overlap.  Identifiers and hangs that do not fit their fields
// indicate corrupt input and are rejected.
func New(aIID, bIID uint32, aHang, bHang int32, evalue uint16, flipped bool) (Overlap, error) {
	if aIID > MaxIID || bIID > MaxIID {
		return Overlap{}, errors.Errorf("overlap %d-%d: read ID exceeds %d", aIID, bIID, MaxIID)
	}
	if aHang < MinHang || aHang > MaxHang || bHang < MinHang || bHang > MaxHang {
		return Overlap{}, errors.Errorf("overlap %d-%d: hang (%d, %d) outside [%d, %d]",
			aIID, bIID, aHang, bHang, MinHang, MaxHang)
	}
	if evalue > MaxEvalue {
		return Overlap{}, errors.Errorf("overlap %d-%d: evalue %d exceeds %d", aIID, bIID, evalue, MaxEvalue)
	}
	ov := Overlap{
		bits: uint64(aIID) |
			uint64(bIID)<<iidBits |
			uint64(uint32(aHang+hangBias))<<(2*iidBits),
		ebits: uint32(bHang+hangBias) |
			uint32(evalue)<<hangBits,
	}
	if flipped {
		ov.bits |= 1 << 63
	}
	// The packed form must reproduce every input exactly.
	if ov.AIID() != aIID || ov.BIID() != bIID ||
		ov.AHang() != aHang || ov.BHang() != bHang ||
		ov.Evalue() != evalue || ov.Flipped() != flipped {
		return Overlap{}, errors.Errorf("overlap %d-%d: packed round-trip mismatch", aIID, bIID)
	}
	return ov, nil
}

// AIID returns the identifier of the overlap's first read.
func (o *Overlap) AIID() uint32 { return uint32(o.bits) & MaxIID }

// BIID returns the identifier of the overlap's second read.
func (o *Overlap) BIID() uint32 { return uint32(o.bits>>iidBits) & MaxIID }

// AHang returns the signed offset of the alignment start relative to the
// a read's 5' end.
func (o *Overlap) AHang() int32 {
	return int32(uint32(o.bits>>(2*iidBits))&(1<<hangBits-1)) - hangBias
}

// BHang returns the signed offset of the alignment end relative to the
// b read's 3' end.
func (o *Overlap) BHang() int32 {
	return int32(o.ebits&(1<<hangBits-1)) - hangBias
}

// Evalue returns the overlap's quantized error rate.
func (o *Overlap) Evalue() uint16 {
	return uint16(o.ebits >> hangBits & MaxEvalue)
}

// Erate returns the overlap's decoded error rate.
func (o *Overlap) Erate() float64 { return DecodeEvalue(o.Evalue()) }

// Flipped reports whether the b read is reverse-complemented relative to
// the a read.
func (o *Overlap) Flipped() bool { return o.bits>>63 != 0 }

// Discarded reports whether the overlap has been permanently excluded.
func (o *Overlap) Discarded() bool {
	return o.ebits>>(hangBits+evalueBits)&1 != 0
}

// Discard permanently excludes the overlap.  There is no way to clear the
// flag.
func (o *Overlap) Discard() {
	o.ebits |= 1 << (hangBits + evalueBits)
}

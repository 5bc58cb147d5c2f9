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

// Package ovl reads and writes overlap stores: flat binary files of
// full-fidelity overlap records sorted by first read ID, with a per-read
// count table in a footer so callers can index a read's overlaps without
// scanning.
//
// Layout (little-endian):
//
//	header   magic "OVL\x01" | numReads uint32 | reserved [8]byte
//	records  numOverlaps fixed-size records, nondecreasing in AIID
//	footer   numReads+1 uint32 per-read counts (1-based; entry 0 unused)
//	trailer  footerOffset uint64 | numOverlaps uint64 | magic
package ovl

import (
	"encoding/binary"
)

var magic = [4]byte{'O', 'V', 'L', 0x01}

const (
	headerSize  = 16
	trailerSize = 20

	// RecordSize is the on-disk size of one overlap record.
	RecordSize = 20

	flagFlipped = 0x01
)

// Record is one full-fidelity overlap as stored on disk.  Read identifiers
// are 1-based; AIID of every record in a store must be nondecreasing.
type Record struct {
	AIID    uint32
	BIID    uint32
	AHang   int32
	BHang   int32
	Evalue  uint16
	Flipped bool
}

func (r *Record) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], r.AIID)
	binary.LittleEndian.PutUint32(buf[4:], r.BIID)
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.AHang))
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.BHang))
	binary.LittleEndian.PutUint16(buf[16:], r.Evalue)
	var flags byte
	if r.Flipped {
		flags = flagFlipped
	}
	buf[18] = flags
	buf[19] = 0
}

func (r *Record) unmarshal(buf []byte) {
	r.AIID = binary.LittleEndian.Uint32(buf[0:])
	r.BIID = binary.LittleEndian.Uint32(buf[4:])
	r.AHang = int32(binary.LittleEndian.Uint32(buf[8:]))
	r.BHang = int32(binary.LittleEndian.Uint32(buf[12:]))
	r.Evalue = binary.LittleEndian.Uint16(buf[16:])
	r.Flipped = buf[18]&flagFlipped != 0
}

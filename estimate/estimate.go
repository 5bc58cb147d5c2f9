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

// Package estimate iteratively reestimates each read's per-base sequencing
// error rate from the pairwise overlaps it participates in, and discards
// overlaps whose reported error rate is inconsistent with the estimates.
//
// Each iteration aggregates, per read, the surviving overlaps' error rates
// over the bases they cover (every overlap contributes half its rate to each
// of its two reads), flattens them into a per-base mean, and rolls the means
// into a prefix-sum profile.  From the second iteration on, an overlap whose
// reported rate exceeds what the two reads' profiles predict by more than
// the tolerance is permanently discarded before aggregation.  Discarded
// overlaps are dropped when the store is rewritten.
package estimate

import (
	"github.com/grailbio/erate/encoding/ovl"
)

// ReadStore supplies read metadata for a contiguous 1-based ID range.
// Implementations must be safe for concurrent readers.
type ReadStore interface {
	// NumReads returns the number of reads, deleted ones included.
	NumReads() uint32
	// ReadLength returns the length of a read, 0 when deleted.
	ReadLength(id uint32) uint32
	// IsDeleted reports whether a read has been deleted.
	IsDeleted(id uint32) bool
}

// OverlapSource streams an overlap store's records, sorted by first read ID.
type OverlapSource interface {
	// SetRange restricts streaming to the given inclusive read-ID window and
	// rewinds to its first record.
	SetRange(bgn, end uint32) error
	// CountInRange returns the number of records in the active window.
	CountInRange() uint64
	// CountsPerRead returns per-read record counts over the active window.
	CountsPerRead() []uint32
	// LoadBlock fills buf with the next records, returning the number
	// loaded; 0 means the window is exhausted.
	LoadBlock(buf []ovl.Record) (int, error)
}

// OverlapSink accepts the filtered overlap stream.
type OverlapSink interface {
	Append(rec ovl.Record) error
}

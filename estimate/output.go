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
	"github.com/grailbio/erate/overlap"
	"github.com/pkg/errors"
)

// FilterStats summarizes the final output pass.
type FilterStats struct {
	Discarded uint64
	Remain    uint64
}

// WriteFiltered re-streams the source in lock-step with the discard flags
// and appends only retained records to dst.  The caller must have rewound
// src to the same range the overlap array was built from; the full-fidelity
// store records, not the packed cache, are what gets written.  Record
// identifiers are checked against the packed array at every position as a
// corruption guard.
//
// Runs sequentially: the output is ordered I/O and there is nothing to
// compute.
func WriteFiltered(src OverlapSource, overlaps []overlap.Overlap, dst OverlapSink) (FilterStats, error) {
	var (
		stats FilterStats
		no    uint64
		buf   = make([]ovl.Record, loadBlockLen)
	)
	for {
		n, err := src.LoadBlock(buf)
		if err != nil {
			return FilterStats{}, err
		}
		if n == 0 {
			break
		}
		if no+uint64(n) > uint64(len(overlaps)) {
			return FilterStats{}, errors.Errorf("overlap store streams more than the %d cached records",
				len(overlaps))
		}
		for i := 0; i < n; i++ {
			rec := &buf[i]
			ov := &overlaps[no]
			no++
			if rec.AIID != ov.AIID() || rec.BIID != ov.BIID() {
				return FilterStats{}, errors.Errorf("record %d: store has overlap %d-%d, cache has %d-%d",
					no-1, rec.AIID, rec.BIID, ov.AIID(), ov.BIID())
			}
			if ov.Discarded() {
				stats.Discarded++
				continue
			}
			if err := dst.Append(*rec); err != nil {
				return FilterStats{}, err
			}
			stats.Remain++
		}
	}
	if no != uint64(len(overlaps)) {
		return FilterStats{}, errors.Errorf("overlap store streamed %d records, cache holds %d",
			no, len(overlaps))
	}
	return stats, nil
}

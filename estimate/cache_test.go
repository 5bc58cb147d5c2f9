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
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/erate/encoding/ovl"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var cacheTestRecs = []ovl.Record{
	{AIID: 1, BIID: 2, AHang: 10, BHang: -5, Evalue: 150},
	{AIID: 1, BIID: 3, AHang: -20, BHang: 30, Evalue: 220, Flipped: true},
	{AIID: 2, BIID: 1, AHang: 5, BHang: -10, Evalue: 150},
	{AIID: 3, BIID: 1, AHang: -30, BHang: 20, Evalue: 220, Flipped: true},
}

func TestStreamWithoutCache(t *testing.T) {
	src := newSliceSource(3, cacheTestRecs)
	overlaps, cleanup, err := LoadOverlaps(src, "")
	assert.NoError(t, err)
	defer cleanup() // nolint: errcheck
	assert.EQ(t, len(overlaps), len(cacheTestRecs))
	for i, rec := range cacheTestRecs {
		expect.EQ(t, overlaps[i].AIID(), rec.AIID)
		expect.EQ(t, overlaps[i].BIID(), rec.BIID)
		expect.EQ(t, overlaps[i].AHang(), rec.AHang)
		expect.EQ(t, overlaps[i].BHang(), rec.BHang)
		expect.EQ(t, overlaps[i].Evalue(), rec.Evalue)
		expect.EQ(t, overlaps[i].Flipped(), rec.Flipped)
		expect.EQ(t, overlaps[i].Discarded(), false)
	}
}

func TestCacheWriteThenMap(t *testing.T) {
	tempDir, cleanupDir := testutil.TempDir(t, "", "")
	defer cleanupDir()
	cachePath := filepath.Join(tempDir, "overlaps.cache")

	streamed, cleanup1, err := LoadOverlaps(newSliceSource(3, cacheTestRecs), cachePath)
	assert.NoError(t, err)
	defer cleanup1() // nolint: errcheck

	st, err := os.Stat(cachePath)
	assert.NoError(t, err)
	expect.EQ(t, st.Size(), int64(len(cacheTestRecs)*recordBytes))

	mapped, cleanup2, err := LoadOverlaps(newSliceSource(3, cacheTestRecs), cachePath)
	assert.NoError(t, err)
	assert.EQ(t, len(mapped), len(streamed))
	for i := range streamed {
		expect.EQ(t, mapped[i].AIID(), streamed[i].AIID())
		expect.EQ(t, mapped[i].BIID(), streamed[i].BIID())
		expect.EQ(t, mapped[i].AHang(), streamed[i].AHang())
		expect.EQ(t, mapped[i].BHang(), streamed[i].BHang())
		expect.EQ(t, mapped[i].Evalue(), streamed[i].Evalue())
		expect.EQ(t, mapped[i].Flipped(), streamed[i].Flipped())
		expect.EQ(t, mapped[i].Discarded(), streamed[i].Discarded())
	}

	// A discard on the private mapping must never reach the file.
	mapped[0].Discard()
	assert.NoError(t, cleanup2())

	remapped, cleanup3, err := LoadOverlaps(newSliceSource(3, cacheTestRecs), cachePath)
	assert.NoError(t, err)
	defer cleanup3() // nolint: errcheck
	expect.EQ(t, remapped[0].Discarded(), false)
}

func TestCacheSizeMismatchFatal(t *testing.T) {
	tempDir, cleanupDir := testutil.TempDir(t, "", "")
	defer cleanupDir()
	cachePath := filepath.Join(tempDir, "overlaps.cache")

	_, cleanup, err := LoadOverlaps(newSliceSource(3, cacheTestRecs), cachePath)
	assert.NoError(t, err)
	assert.NoError(t, cleanup())

	assert.NoError(t, os.Truncate(cachePath, int64(recordBytes-1)))
	if _, _, err := LoadOverlaps(newSliceSource(3, cacheTestRecs), cachePath); err == nil {
		t.Error("expected error for cache size mismatch")
	}
}

func TestStreamCorruptRecordFatal(t *testing.T) {
	recs := []ovl.Record{{AIID: 1, BIID: 2, AHang: 1 << 20, BHang: 0, Evalue: 10}}
	if _, _, err := LoadOverlaps(newSliceSource(2, recs), ""); err == nil {
		t.Error("expected error for hang outside the packed field")
	}
}

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
	"reflect"
	"unsafe"

	"github.com/grailbio/base/log"
	"github.com/grailbio/erate/encoding/ovl"
	"github.com/grailbio/erate/overlap"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// recordBytes is the in-memory (and cache-file) size of one packed overlap.
const recordBytes = int(unsafe.Sizeof(overlap.Overlap{}))

// Records per LoadBlock call while streaming the store.
const loadBlockLen = 1 << 20

// LoadOverlaps returns the packed overlap array for the source's active
// range.  When cachePath names an existing file it is memory-mapped instead
// of re-reading the store; the mapping is private, so discard-flag writes
// never reach the file.  Otherwise the store is streamed once and, when
// cachePath is nonempty, the packed array is written there as a byproduct.
//
// The cache is a flat dump of host-endian packed records with no header; an
// existing file is trusted apart from its length, which must match the
// source's record count exactly.
//
// cleanup releases the mapping (a no-op for streamed loads) and must be
// called after the overlaps are no longer referenced.
func LoadOverlaps(src OverlapSource, cachePath string) (overlaps []overlap.Overlap, cleanup func() error, err error) {
	expected := src.CountInRange()
	if cachePath != "" {
		if _, serr := os.Stat(cachePath); serr == nil {
			return mapOverlapCache(cachePath, expected)
		}
	}
	overlaps, err = streamOverlaps(src, cachePath, expected)
	if err != nil {
		return nil, nil, err
	}
	return overlaps, func() error { return nil }, nil
}

func mapOverlapCache(path string, expected uint64) ([]overlap.Overlap, func() error, error) {
	log.Printf("overlap cache %s detected, store load averted", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening overlap cache %s", path)
	}
	defer f.Close() // nolint: errcheck
	st, err := f.Stat()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "stat overlap cache %s", path)
	}
	if st.Size() != int64(expected)*int64(recordBytes) {
		return nil, nil, errors.Errorf("overlap cache %s holds %d bytes, want %d records of %d bytes",
			path, st.Size(), expected, recordBytes)
	}
	if expected == 0 {
		return nil, func() error { return nil }, nil
	}
	// Private mapping: the engine flips discard bits in place, but the file
	// must stay untouched.
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "mmap overlap cache %s", path)
	}
	var overlaps []overlap.Overlap
	h := (*reflect.SliceHeader)(unsafe.Pointer(&overlaps))
	h.Data = uintptr(unsafe.Pointer(&data[0]))
	h.Len = int(expected)
	h.Cap = int(expected)
	return overlaps, func() error { return unix.Munmap(data) }, nil
}

func streamOverlaps(src OverlapSource, cachePath string, expected uint64) ([]overlap.Overlap, error) {
	var cacheFile *os.File
	if cachePath != "" {
		var err error
		if cacheFile, err = os.Create(cachePath); err != nil {
			return nil, errors.Wrapf(err, "creating overlap cache %s", cachePath)
		}
		defer cacheFile.Close() // nolint: errcheck
	}

	overlaps := make([]overlap.Overlap, 0, expected)
	buf := make([]ovl.Record, loadBlockLen)
	for {
		n, err := src.LoadBlock(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			rec := &buf[i]
			ov, err := overlap.New(rec.AIID, rec.BIID, rec.AHang, rec.BHang, rec.Evalue, rec.Flipped)
			if err != nil {
				return nil, err
			}
			overlaps = append(overlaps, ov)
		}
		if cacheFile != nil {
			if _, err := cacheFile.Write(overlapBytes(overlaps[len(overlaps)-n:])); err != nil {
				return nil, errors.Wrapf(err, "writing overlap cache %s", cachePath)
			}
		}
		log.Printf("loaded %d of %d overlaps", len(overlaps), expected)
	}
	if uint64(len(overlaps)) != expected {
		return nil, errors.Errorf("overlap store streamed %d records, reported %d in range",
			len(overlaps), expected)
	}
	if cacheFile != nil {
		if err := cacheFile.Sync(); err != nil {
			return nil, errors.Wrapf(err, "syncing overlap cache %s", cachePath)
		}
	}
	return overlaps, nil
}

// overlapBytes views a packed overlap slice as raw bytes, for the cache
// dump.
func overlapBytes(overlaps []overlap.Overlap) []byte {
	if len(overlaps) == 0 {
		return nil
	}
	var b []byte
	h := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	h.Data = uintptr(unsafe.Pointer(&overlaps[0]))
	h.Len = len(overlaps) * recordBytes
	h.Cap = h.Len
	return b
}

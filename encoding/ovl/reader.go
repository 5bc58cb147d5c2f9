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
package ovl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Reader streams an overlap store.  After Open the active range covers the
// whole store; SetRange restricts it to a read-ID window and rewinds the
// stream to the window's first record.
type Reader struct {
	f    *os.File
	r    *bufio.Reader
	path string

	numReads    uint32
	numOverlaps uint64
	counts      []uint32 // per-read record counts, 1-based
	cum         []uint64 // cum[iid] = records with AIID < iid

	bgn, end  uint32
	remaining uint64
	buf       [RecordSize]byte
}

// Open opens an overlap store and validates its framing.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening overlap store %s", path)
	}
	r := &Reader{f: f, path: path}
	if err := r.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	st, err := r.f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", r.path)
	}
	size := st.Size()
	if size < headerSize+trailerSize {
		return errors.Errorf("%s: truncated overlap store (%d bytes)", r.path, size)
	}
	var hdr [headerSize]byte
	if _, err := r.f.ReadAt(hdr[:], 0); err != nil {
		return errors.Wrapf(err, "reading header of %s", r.path)
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return errors.Errorf("%s: not an overlap store", r.path)
	}
	r.numReads = binary.LittleEndian.Uint32(hdr[4:])

	var trailer [trailerSize]byte
	if _, err := r.f.ReadAt(trailer[:], size-trailerSize); err != nil {
		return errors.Wrapf(err, "reading trailer of %s", r.path)
	}
	if !bytes.Equal(trailer[16:], magic[:]) {
		return errors.Errorf("%s: bad trailer magic", r.path)
	}
	footerOffset := binary.LittleEndian.Uint64(trailer[0:])
	r.numOverlaps = binary.LittleEndian.Uint64(trailer[8:])
	footerSize := uint64(r.numReads+1) * 4
	if footerOffset != uint64(headerSize)+r.numOverlaps*RecordSize ||
		footerOffset+footerSize+trailerSize != uint64(size) {
		return errors.Errorf("%s: inconsistent framing (%d overlaps, %d reads, %d bytes)",
			r.path, r.numOverlaps, r.numReads, size)
	}

	footer := make([]byte, footerSize)
	if _, err := r.f.ReadAt(footer, int64(footerOffset)); err != nil {
		return errors.Wrapf(err, "reading footer of %s", r.path)
	}
	r.counts = make([]uint32, r.numReads+1)
	r.cum = make([]uint64, r.numReads+2)
	for i := range r.counts {
		r.counts[i] = binary.LittleEndian.Uint32(footer[4*i:])
		r.cum[i+1] = r.cum[i] + uint64(r.counts[i])
	}
	if r.cum[r.numReads+1] != r.numOverlaps {
		return errors.Errorf("%s: footer counts sum to %d, trailer says %d",
			r.path, r.cum[r.numReads+1], r.numOverlaps)
	}
	return r.SetRange(1, r.numReads)
}

// NumReads returns the read count the store was built for.
func (r *Reader) NumReads() uint32 { return r.numReads }

// SetRange restricts streaming to reads bgn..end (inclusive, 1-based) and
// rewinds to the window's first record.
func (r *Reader) SetRange(bgn, end uint32) error {
	if bgn < 1 || bgn > end || end > r.numReads {
		return errors.Errorf("%s: bad read range [%d, %d], store has %d reads",
			r.path, bgn, end, r.numReads)
	}
	if _, err := r.f.Seek(int64(headerSize+r.cum[bgn]*RecordSize), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seeking in %s", r.path)
	}
	if r.r == nil {
		r.r = bufio.NewReaderSize(r.f, 1<<20)
	} else {
		r.r.Reset(r.f)
	}
	r.bgn, r.end = bgn, end
	r.remaining = r.cum[end+1] - r.cum[bgn]
	return nil
}

// CountInRange returns the number of records in the active range.
func (r *Reader) CountInRange() uint64 {
	return r.cum[r.end+1] - r.cum[r.bgn]
}

// CountsPerRead returns the per-read record counts over the active range;
// entry i counts the overlaps of read bgn+i.
func (r *Reader) CountsPerRead() []uint32 {
	out := make([]uint32, r.end-r.bgn+1)
	copy(out, r.counts[r.bgn:r.end+1])
	return out
}

// LoadBlock fills buf with the next records of the active range, returning
// the number loaded; 0 means the range is exhausted.
func (r *Reader) LoadBlock(buf []Record) (int, error) {
	n := uint64(len(buf))
	if n > r.remaining {
		n = r.remaining
	}
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
			return int(i), errors.Wrapf(err, "reading record from %s", r.path)
		}
		buf[i].unmarshal(r.buf[:])
	}
	r.remaining -= n
	return int(n), nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

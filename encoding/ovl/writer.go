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
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// Writer creates a new overlap store.  Records must be appended in
// nondecreasing AIID order; Close writes the count footer and trailer.
type Writer struct {
	f        *os.File
	w        *bufio.Writer
	path     string
	numReads uint32
	counts   []uint32
	n        uint64
	lastAIID uint32
	buf      [RecordSize]byte
}

// NewWriter creates an overlap store at path for reads 1..numReads.
func NewWriter(path string, numReads uint32) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating overlap store %s", path)
	}
	w := &Writer{
		f:        f,
		w:        bufio.NewWriterSize(f, 1<<20),
		path:     path,
		numReads: numReads,
		counts:   make([]uint32, numReads+1),
	}
	var hdr [headerSize]byte
	copy(hdr[:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:], numReads)
	if _, err := w.w.Write(hdr[:]); err != nil {
		return nil, errors.Wrapf(err, "writing header of %s", path)
	}
	return w, nil
}

// Append writes one record.
func (w *Writer) Append(rec Record) error {
	if rec.AIID < 1 || rec.AIID > w.numReads {
		return errors.Errorf("%s: record a ID %d outside [1, %d]", w.path, rec.AIID, w.numReads)
	}
	if rec.AIID < w.lastAIID {
		return errors.Errorf("%s: record a ID %d after %d, store must be sorted", w.path, rec.AIID, w.lastAIID)
	}
	rec.marshal(w.buf[:])
	if _, err := w.w.Write(w.buf[:]); err != nil {
		return errors.Wrapf(err, "writing record to %s", w.path)
	}
	w.counts[rec.AIID]++
	w.n++
	w.lastAIID = rec.AIID
	return nil
}

// NumAppended returns the number of records written so far.
func (w *Writer) NumAppended() uint64 { return w.n }

// Close writes the footer and trailer and closes the file.
func (w *Writer) Close() error {
	footerOffset := uint64(headerSize) + w.n*RecordSize
	var b [4]byte
	for _, c := range w.counts {
		binary.LittleEndian.PutUint32(b[:], c)
		if _, err := w.w.Write(b[:]); err != nil {
			return errors.Wrapf(err, "writing footer of %s", w.path)
		}
	}
	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[0:], footerOffset)
	binary.LittleEndian.PutUint64(trailer[8:], w.n)
	copy(trailer[16:], magic[:])
	if _, err := w.w.Write(trailer[:]); err != nil {
		return errors.Wrapf(err, "writing trailer of %s", w.path)
	}
	if err := w.w.Flush(); err != nil {
		return errors.Wrapf(err, "flushing %s", w.path)
	}
	return w.f.Close()
}

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

// Package seqmeta loads per-read sequence metadata: each read's length and
// whether it has been deleted from the store.  The on-disk form is a text
// table with one length per line, read IDs assigned 1-based in line order;
// a length of zero marks a deleted read.  A ".gz" path is decompressed
// transparently.
package seqmeta

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Store answers length and deletion queries for a contiguous 1-based
// read-ID range.  It is immutable after load and safe for concurrent use.
type Store struct {
	lengths []uint32 // entry 0 unused
}

// New builds a store directly from per-read lengths; lengths[i] belongs to
// read i+1, zero meaning deleted.
func New(lengths []uint32) *Store {
	s := &Store{lengths: make([]uint32, len(lengths)+1)}
	copy(s.lengths[1:], lengths)
	return s
}

// NewFromPath loads a length table from a file, decompressing ".gz" paths.
func NewFromPath(path string) (s *Store, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return NewFromReader(reader)
}

// NewFromReader parses a length table.  Blank lines and lines starting with
// '#' are skipped.
func NewFromReader(r io.Reader) (*Store, error) {
	lengths := []uint32{0}
	scanner := bufio.NewScanner(r)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: bad read length %q", lineIdx, line)
		}
		lengths = append(lengths, uint32(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading length table")
	}
	return &Store{lengths: lengths}, nil
}

// NumReads returns the number of reads in the store, deleted ones included.
func (s *Store) NumReads() uint32 {
	return uint32(len(s.lengths) - 1)
}

// ReadLength returns the length of read id, 0 when the read is deleted.
func (s *Store) ReadLength(id uint32) uint32 {
	return s.lengths[id]
}

// IsDeleted reports whether read id has been deleted.
func (s *Store) IsDeleted(id uint32) bool {
	return s.lengths[id] == 0
}

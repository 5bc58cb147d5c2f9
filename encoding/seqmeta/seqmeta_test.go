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
package seqmeta

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func TestParse(t *testing.T) {
	s, err := NewFromReader(strings.NewReader("# lengths\n1000\n0\n1523\n\n88\n"))
	assert.NoError(t, err)
	expect.EQ(t, s.NumReads(), uint32(4))
	expect.EQ(t, s.ReadLength(1), uint32(1000))
	expect.EQ(t, s.ReadLength(3), uint32(1523))
	expect.EQ(t, s.ReadLength(4), uint32(88))
	expect.EQ(t, s.IsDeleted(1), false)
	expect.EQ(t, s.IsDeleted(2), true)
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := NewFromReader(strings.NewReader("1000\nx\n")); err == nil {
		t.Error("expected error for non-numeric length")
	}
	if _, err := NewFromReader(strings.NewReader("-5\n")); err == nil {
		t.Error("expected error for negative length")
	}
}

func TestNew(t *testing.T) {
	s := New([]uint32{10, 0, 30})
	expect.EQ(t, s.NumReads(), uint32(3))
	expect.EQ(t, s.ReadLength(1), uint32(10))
	expect.EQ(t, s.IsDeleted(2), true)
	expect.EQ(t, s.ReadLength(3), uint32(30))
}

func TestGzipPath(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "lengths.txt.gz")
	var buf strings.Builder
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("500\n600\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, ioutil.WriteFile(path, []byte(buf.String()), 0644))

	s, err := NewFromPath(path)
	assert.NoError(t, err)
	expect.EQ(t, s.NumReads(), uint32(2))
	expect.EQ(t, s.ReadLength(2), uint32(600))
}

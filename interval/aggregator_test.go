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
package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestFlattenOverlapping(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.AddDepth(0, 10, 6, 2))
	expect.NoError(t, agg.AddDepth(5, 15, 4, 1))
	got := agg.Flatten()
	expect.EQ(t, got, []Flat{
		{Lo: 0, Hi: 5, Weight: 6, Depth: 2},
		{Lo: 5, Hi: 10, Weight: 10, Depth: 3},
		{Lo: 10, Hi: 15, Weight: 4, Depth: 1},
	})
	expect.EQ(t, got[0].Mean(), 3.0)
	expect.EQ(t, got[1].Mean(), 10.0/3.0)
	expect.EQ(t, got[2].Mean(), 4.0)
}

func TestFlattenDisjoint(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.Add(20, 30, 0.5))
	expect.NoError(t, agg.Add(0, 10, 0.25))
	expect.EQ(t, agg.Flatten(), []Flat{
		{Lo: 0, Hi: 10, Weight: 0.25, Depth: 1},
		{Lo: 20, Hi: 30, Weight: 0.5, Depth: 1},
	})
}

func TestFlattenIdenticalSpans(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.Add(0, 100, 0.25))
	expect.NoError(t, agg.Add(0, 100, 0.5))
	got := agg.Flatten()
	expect.EQ(t, got, []Flat{{Lo: 0, Hi: 100, Weight: 0.75, Depth: 2}})
}

func TestFlattenCoalescesEqualNeighbors(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.Add(0, 10, 1))
	expect.NoError(t, agg.Add(10, 20, 1))
	expect.EQ(t, agg.Flatten(), []Flat{{Lo: 0, Hi: 20, Weight: 1, Depth: 1}})
}

func TestFlattenNested(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.Add(0, 30, 3))
	expect.NoError(t, agg.Add(10, 20, 1))
	expect.EQ(t, agg.Flatten(), []Flat{
		{Lo: 0, Hi: 10, Weight: 3, Depth: 1},
		{Lo: 10, Hi: 20, Weight: 4, Depth: 2},
		{Lo: 20, Hi: 30, Weight: 3, Depth: 1},
	})
}

func TestEmptyIntervalRejected(t *testing.T) {
	var agg Aggregator
	if agg.Add(5, 5, 1) == nil {
		t.Error("expected error for empty interval")
	}
	if agg.Add(7, 3, 1) == nil {
		t.Error("expected error for inverted interval")
	}
	expect.EQ(t, agg.Len(), 0)
}

func TestReset(t *testing.T) {
	var agg Aggregator
	expect.NoError(t, agg.Add(0, 10, 1))
	agg.Reset()
	if got := agg.Flatten(); got != nil {
		t.Errorf("expected no intervals after reset, got %v", got)
	}
	expect.NoError(t, agg.Add(2, 4, 5))
	expect.EQ(t, agg.Flatten(), []Flat{{Lo: 2, Hi: 4, Weight: 5, Depth: 1}})
}

// Residue from departed inputs can leave the summed weight a hair below
// zero; the mean clamps instead of going negative.
func TestMeanClampsResidue(t *testing.T) {
	f := Flat{Lo: 0, Hi: 10, Weight: -1e-17, Depth: 2}
	expect.EQ(t, f.Mean(), 0.0)
	f = Flat{Lo: 0, Hi: 10, Weight: 0.5, Depth: 2}
	expect.EQ(t, f.Mean(), 0.25)
}

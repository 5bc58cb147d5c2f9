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
package main

/*
erate-filter reestimates each read's per-base sequencing error rate from
its overlaps and rewrites the overlap store with statistically inconsistent
overlaps removed.
*/

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/erate/encoding/ovl"
	"github.com/grailbio/erate/encoding/seqmeta"
	"github.com/grailbio/erate/estimate"
)

var (
	seqPath     = flag.String("seq", "", "Input read-length table (required); '.gz' is decompressed")
	ovlPath     = flag.String("ovl", "", "Input overlap store (required)")
	outPath     = flag.String("out", "", "Output overlap store (required)")
	cachePath   = flag.String("cache", "", "Packed-overlap cache; mapped when present, written otherwise")
	iidMin      = flag.Uint("b", 0, "First read ID to process (default 1)")
	iidMax      = flag.Uint("e", 0, "Last read ID to process (default all reads)")
	partition   = flag.String("p", "", "Process partition i of m, formatted i/m; excludes -b/-e")
	iterations  = flag.Int("iterations", estimate.DefaultOpts.Iterations, "Number of reestimation iterations")
	tolerance   = flag.Float64("tolerance", estimate.DefaultOpts.Tolerance, "Error-rate slack above the profile estimate before an overlap is discarded")
	parallelism = flag.Int("parallelism", 0, "Maximum number of concurrent reestimation workers; 0 = runtime.NumCPU()")
	profileIID  = flag.Uint("profile-dump", 0, "Write the final per-base error profile of this read ID (0 = off)")
	profileOut  = flag.String("profile-out", "erate-profile.tsv", "Destination for -profile-dump")
)

func erateFilterUsage() {
	fmt.Printf("Usage: %s -seq lengths -ovl store -out store [OPTIONS]\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

// parsePartition turns "i/m" into the canonical read window for partition i
// of m over nf reads.
func parsePartition(s string, nf uint32) (uint32, uint32, error) {
	fields := strings.Split(s, "/")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("partition %q not formatted i/m", s)
	}
	i, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	m, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	if i < 1 || i > m {
		return 0, 0, fmt.Errorf("partition index %d outside 1..%d", i, m)
	}
	bgn := uint32((i-1)*uint64(nf)/m) + 1
	end := uint32(i * uint64(nf) / m)
	if i == m {
		end = nf
	}
	return bgn, end, nil
}

func main() {
	flag.Usage = erateFilterUsage
	shutdown := grail.Init()
	defer shutdown()

	if *seqPath == "" || *ovlPath == "" || *outPath == "" {
		flag.Usage()
		log.Fatalf("-seq, -ovl and -out are required")
	}
	if *partition != "" && (*iidMin != 0 || *iidMax != 0) {
		log.Fatalf("-p excludes -b and -e")
	}

	log.Printf("opening read-length table %s", *seqPath)
	reads, err := seqmeta.NewFromPath(*seqPath)
	if err != nil {
		log.Fatalf("loading %s: %v", *seqPath, err)
	}
	nf := reads.NumReads()

	log.Printf("opening overlap store %s", *ovlPath)
	src, err := ovl.Open(*ovlPath)
	if err != nil {
		log.Fatalf("opening %s: %v", *ovlPath, err)
	}
	defer src.Close() // nolint: errcheck
	if src.NumReads() != nf {
		log.Fatalf("overlap store built for %d reads, length table has %d", src.NumReads(), nf)
	}

	bgn, end := uint32(1), nf
	if *partition != "" {
		if bgn, end, err = parsePartition(*partition, nf); err != nil {
			log.Fatalf("bad -p: %v", err)
		}
	} else {
		if *iidMin != 0 {
			bgn = uint32(*iidMin)
		}
		if *iidMax != 0 {
			end = uint32(*iidMax)
		}
	}
	if bgn > end {
		// Possible when -p names more partitions than there are reads.
		log.Printf("read window %d..%d is empty, nothing to do", bgn, end)
		return
	}
	log.Printf("processing reads %d..%d of %d", bgn, end, nf)
	if err = src.SetRange(bgn, end); err != nil {
		log.Fatalf("%v", err)
	}
	counts := src.CountsPerRead()

	log.Printf("loading %d overlaps", src.CountInRange())
	overlaps, cleanup, err := estimate.LoadOverlaps(src, *cachePath)
	if err != nil {
		log.Fatalf("loading overlaps: %v", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Error.Printf("releasing overlap cache: %v", err)
		}
	}()

	opts := estimate.Opts{
		IIDMin:      bgn,
		IIDMax:      end,
		Iterations:  *iterations,
		Tolerance:   *tolerance,
		Parallelism: *parallelism,
	}
	engine, err := estimate.NewEngine(opts, reads, overlaps, counts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err = engine.Run(); err != nil {
		log.Fatalf("reestimation failed: %v", err)
	}

	if err = src.SetRange(bgn, end); err != nil {
		log.Fatalf("%v", err)
	}
	out, err := ovl.NewWriter(*outPath, nf)
	if err != nil {
		log.Fatalf("%v", err)
	}
	stats, err := estimate.WriteFiltered(src, overlaps, out)
	if err != nil {
		log.Fatalf("writing %s: %v", *outPath, err)
	}
	if err = out.Close(); err != nil {
		log.Fatalf("closing %s: %v", *outPath, err)
	}
	log.Printf("wrote %s: %d overlaps retained, %d discarded", *outPath, stats.Remain, stats.Discarded)

	if *profileIID != 0 {
		p := engine.Profile(uint32(*profileIID))
		if p == nil {
			log.Fatalf("-profile-dump read %d outside window %d..%d", *profileIID, bgn, end)
		}
		f, err := os.Create(*profileOut)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err = p.Dump(f); err != nil {
			log.Fatalf("dumping profile: %v", err)
		}
		if err = f.Close(); err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("wrote profile of read %d to %s", *profileIID, *profileOut)
	}
}

// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// li-stats displays summary statistics of LI data log files.
//
// Usage: li-stats [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> li-stats ./testdata/osc.li
//  === LI file ./testdata/osc.li ===
//  ch1: entries=10000 mean=+1.2500e-01 std-dev=+3.1250e-02 min=-1.0000e+00 max=+1.0000e+00
//  ch2: entries=10000 mean=-3.9062e-03 std-dev=+7.8125e-03 min=-5.0000e-01 max=+5.0000e-01
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"go-hep.org/x/hep/hbook"

	"github.com/go-moku/moku/datalog"
)

func main() {
	log.SetPrefix("li-stats: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`li-stats displays summary statistics of LI data log files.

Usage: li-stats [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> li-stats ./testdata/osc.li
 === LI file ./testdata/osc.li ===
 ch1: entries=10000 mean=+1.2500e-01 std-dev=+3.1250e-02 min=-1.0000e+00 max=+1.0000e+00
 ch2: entries=10000 mean=-3.9062e-03 std-dev=+7.8125e-03 min=-5.0000e-01 max=+5.0000e-01

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input LI file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not analyze file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := datalog.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LI file: %w", err)
	}
	defer r.Close()

	recs, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("could not read records: %w", err)
	}

	cfg := r.Config()
	vals := make([][]float64, cfg.Channels)
	for _, row := range recs {
		for ch, rec := range row {
			for _, v := range rec {
				vals[ch] = append(vals[ch], v.Float())
			}
		}
	}

	fmt.Fprintf(wbuf, "=== LI file %s ===\n", fname)
	for ch, vs := range vals {
		h := histOf(vs)
		var (
			min = math.Inf(+1)
			max = math.Inf(-1)
		)
		for _, v := range vs {
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
		fmt.Fprintf(wbuf,
			"ch%d: entries=%d mean=%+.4e std-dev=%+.4e min=%+.4e max=%+.4e\n",
			ch+1, h.Entries(), h.XMean(), h.XStdDev(), min, max,
		)
	}

	return wbuf.Flush()
}

// histOf bins vs over its own range, extended a bit so the maximum
// lands inside the last bin.
func histOf(vs []float64) *hbook.H1D {
	var (
		min = math.Inf(+1)
		max = math.Inf(-1)
	)
	for _, v := range vs {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if len(vs) == 0 || min == max {
		min, max = 0, 1
	}
	h := hbook.NewH1D(100, min, max+(max-min)/100)
	for _, v := range vs {
		h.Fill(v, 1)
	}
	return h
}

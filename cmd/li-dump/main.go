// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// li-dump decodes and displays LI data log files.
//
// Usage: li-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> li-dump ./testdata/osc.li
//  === LI file ./testdata/osc.li ===
//  Instrument:          1 (v42)
//  Channels:            2
//  Layout:       "<s32"
//  Process:      ["*C" "*C"]
//  Time step:    0.001
//  Start:        2026-08-29 10:42:17 +0000 UTC
//  Cal:          [0.03125 0.03125]
//  rec[0]: ch1=[4000] ch2=[-125]
//  rec[1]: ch1=[4100] ch2=[-127]
//  [...]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-moku/moku/datalog"
)

func main() {
	log.SetPrefix("li-dump: ")
	log.SetFlags(0)

	nrec := flag.Int("n", -1, "maximum number of records to display (-1: all)")

	flag.Usage = func() {
		fmt.Printf(`li-dump decodes and displays LI data log files.

Usage: li-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> li-dump ./testdata/osc.li
 === LI file ./testdata/osc.li ===
 Instrument:          1 (v42)
 Channels:            2
 Layout:       "<s32"
 Process:      ["*C" "*C"]
 Time step:    0.001
 Start:        2026-08-29 10:42:17 +0000 UTC
 Cal:          [0.03125 0.03125]
 rec[0]: ch1=[4000] ch2=[-125]
 rec[1]: ch1=[4100] ch2=[-127]
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input LI file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *nrec)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, nrec int) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := datalog.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LI file: %w", err)
	}
	defer r.Close()

	cfg := r.Config()
	fmt.Fprintf(wbuf, "=== LI file %s ===\n", fname)
	fmt.Fprintf(wbuf, "Instrument:   % 8d (v%d)\n", cfg.Instrument, cfg.Version)
	fmt.Fprintf(wbuf, "Channels:     % 8d\n", cfg.Channels)
	fmt.Fprintf(wbuf, "Layout:       %q\n", cfg.Layout)
	fmt.Fprintf(wbuf, "Process:      %q\n", cfg.Process)
	fmt.Fprintf(wbuf, "Time step:    %v\n", cfg.TimeStep)
	fmt.Fprintf(wbuf, "Start:        %v\n", time.Unix(int64(cfg.StartTime), 0).UTC())
	fmt.Fprintf(wbuf, "Cal:          %v\n", cfg.Cal)

	for i := 0; nrec < 0 || i < nrec; i++ {
		recs, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("could not read record %d: %w", i, err)
		}
		fmt.Fprintf(wbuf, "rec[%d]:", i)
		for ch, rec := range recs {
			fmt.Fprintf(wbuf, " ch%d=%v", ch+1, rec)
		}
		fmt.Fprintf(wbuf, "\n")
	}

	return wbuf.Flush()
}

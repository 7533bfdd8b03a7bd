// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// li2csv converts LI data log files to CSV.
//
// Usage: li2csv [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//  $> li2csv ./testdata/osc.li
//  Moku:Lab Data Logger
//  Start,20260829T104217Z
//  Sample Rate 1000 Hz
//  Time, Channel 1, Channel 2
//  0.00000000, 1.25000000e-01, -3.90625000e-03
//  [...]
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-moku/moku/datalog"
	"github.com/go-moku/moku/internal/mmap"
)

func main() {
	log.SetPrefix("li2csv: ")
	log.SetFlags(0)

	oname := flag.String("o", "", "path to the output CSV file (default: stdout)")

	flag.Usage = func() {
		fmt.Printf(`li2csv converts LI data log files to CSV.

Usage: li2csv [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> li2csv ./testdata/osc.li
 Moku:Lab Data Logger
 Start,20260829T104217Z
 Sample Rate 1000 Hz
 Time, Channel 1, Channel 2
 0.00000000, 1.25000000e-01, -3.90625000e-03
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input LI file")
	}

	out := io.Writer(os.Stdout)
	if *oname != "" {
		f, err := os.Create(*oname)
		if err != nil {
			log.Fatalf("could not create output file %q: %+v", *oname, err)
		}
		defer f.Close()
		out = f
	}

	for _, fname := range flag.Args() {
		err := process(out, fname)
		if err != nil {
			log.Fatalf("could not convert file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	h, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not mmap %q: %w", fname, err)
	}
	defer h.Close()

	r, err := datalog.NewReader(bytes.NewReader(h.Bytes()))
	if err != nil {
		return fmt.Errorf("could not open LI file %q: %w", fname, err)
	}

	if err := r.ToCSV(wbuf); err != nil {
		return fmt.Errorf("could not convert to CSV: %w", err)
	}

	return wbuf.Flush()
}

// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// moku-find lists the Moku:Lab devices on the local network.
//
// Usage: moku-find [OPTIONS]
//
// Example:
//
//  $> moku-find
//  "My Moku" serial=002119 addr=192.168.0.10:27184
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-moku/moku/finders"
)

func main() {
	log.SetPrefix("moku-find: ")
	log.SetFlags(0)

	timeout := flag.Duration("timeout", 3*time.Second, "discovery timeout")

	flag.Usage = func() {
		fmt.Printf(`moku-find lists the Moku:Lab devices on the local network.

Usage: moku-find [OPTIONS]

Example:

 $> moku-find
 "My Moku" serial=002119 addr=192.168.0.10:27184

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	devs, err := finders.FindAll(*timeout)
	if err != nil {
		log.Fatalf("could not discover devices: %+v", err)
	}
	if len(devs) == 0 {
		log.Fatalf("no device found")
	}
	for _, dev := range devs {
		fmt.Printf("%q serial=%s addr=%s:%d\n", dev.Name, dev.Serial, dev.Addr, dev.Port)
	}
}

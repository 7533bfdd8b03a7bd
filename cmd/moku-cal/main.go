// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// moku-cal inspects the calibration database, and archives the
// calibration of a device into it.
//
// Usage: moku-cal [OPTIONS] [ADDR]
//
// Example:
//
//  $> moku-cal -serial 002119
//  $> moku-cal 192.168.0.10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-moku/moku"
	"github.com/go-moku/moku/caldb"
)

const dbname = "mokusrv"

func main() {
	log.SetPrefix("moku-cal: ")
	log.SetFlags(0)

	serial := flag.String("serial", "", "device serial number to inspect")

	flag.Usage = func() {
		fmt.Printf(`moku-cal inspects the calibration database, and archives the
calibration of a device into it.

Usage: moku-cal [OPTIONS] [ADDR]

Example:

 $> moku-cal -serial 002119
 $> moku-cal 192.168.0.10

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	db, err := caldb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open calibration db: %+v", err)
	}
	defer db.Close()

	switch {
	case flag.NArg() == 1:
		err = archive(db, flag.Arg(0))
	case *serial != "":
		err = inspect(db, *serial)
	default:
		err = list(db)
	}
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func list(db *caldb.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serials, err := db.Serials(ctx)
	if err != nil {
		return fmt.Errorf("could not retrieve serials: %w", err)
	}
	for _, serial := range serials {
		log.Printf("serial: %s", serial)
	}
	return nil
}

func inspect(db *caldb.DB, serial string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	last, err := db.LastUpdated(ctx, serial)
	if err != nil {
		return fmt.Errorf("could not retrieve calibration age of %q: %w", serial, err)
	}
	log.Printf("serial:  %s", serial)
	log.Printf("updated: %v", last)

	cal, err := db.Calibration(ctx, serial)
	if err != nil {
		return fmt.Errorf("could not retrieve calibration of %q: %w", serial, err)
	}
	log.Printf("entries: %d", len(cal))
	for k, v := range cal {
		log.Printf("%s = %q", k, v)
	}
	return nil
}

func archive(db *caldb.DB, addr string) error {
	m, err := moku.Dial(addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer m.Close()

	serial, err := m.Serial()
	if err != nil {
		return fmt.Errorf("could not read serial: %w", err)
	}

	props, err := m.PropertySection("calibration")
	if err != nil {
		return fmt.Errorf("could not read calibration of %q: %w", serial, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, p := range props {
		err := db.StoreCalibration(ctx, serial, p.Key, p.Value)
		if err != nil {
			return fmt.Errorf("could not store %q of %q: %w", p.Key, serial, err)
		}
	}
	log.Printf("archived %d calibration entries for %q", len(props), serial)
	return nil
}

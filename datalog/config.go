// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import "golang.org/x/xerrors"

// Config describes one datalogging session: which instrument produced
// the records, how the records are encoded and processed, and how they
// render to CSV. It is embedded verbatim in the header of LI files.
type Config struct {
	Instrument uint8     // instrument id
	Version    uint16    // instrument build version
	Channels   int       // number of logged channels
	Layout     string    // binary layout string, shared by all channels
	Process    []string  // processing string, one per channel
	Format     string    // CSV row template
	Header     string    // CSV header template
	TimeStep   float64   // seconds between consecutive records
	StartTime  uint64    // Unix time of the first record
	Cal        []float64 // calibration coefficient, one per channel
}

// compile validates cfg and parses its format strings.
func (cfg *Config) compile() (*Layout, []*Process, error) {
	if cfg.Channels < 1 {
		return nil, nil, xerrors.Errorf("datalog: invalid channel count %d: %w", cfg.Channels, ErrFormat)
	}
	if len(cfg.Process) != cfg.Channels {
		return nil, nil, xerrors.Errorf(
			"datalog: %d processing strings for %d channels: %w",
			len(cfg.Process), cfg.Channels, ErrFormat,
		)
	}
	if len(cfg.Cal) != cfg.Channels {
		return nil, nil, xerrors.Errorf(
			"datalog: %d calibration coefficients for %d channels: %w",
			len(cfg.Cal), cfg.Channels, ErrFormat,
		)
	}

	lay, err := ParseLayout(cfg.Layout)
	if err != nil {
		return nil, nil, err
	}

	procs := make([]*Process, cfg.Channels)
	for ch := range procs {
		proc, err := ParseProcess(cfg.Process[ch], cfg.Cal[ch])
		if err != nil {
			return nil, nil, err
		}
		if got, want := proc.NumFields(), lay.NumValues(); got != want {
			return nil, nil, xerrors.Errorf(
				"datalog: processing string %q has %d fields, layout %q has %d: %w",
				cfg.Process[ch], got, cfg.Layout, want, ErrFormat,
			)
		}
		procs[ch] = proc
	}
	return lay, procs, nil
}

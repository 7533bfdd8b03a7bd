// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// moku-log runs a datalogging session on a Moku:Lab device and saves
// the samples to an LI file.
//
// Usage: moku-log [OPTIONS]
//
// Example:
//
//  $> moku-log -cfg ./moku-log.yaml
//
// with a configuration file such as:
//
//  addr: 192.168.0.10
//  instrument: oscilloscope
//  duration: 10s
//  samplerate: 1000
//  channels: [1, 2]
//  settings:
//    trigger_level: 0.5
//  output: osc.li
//  csv: osc.csv
//  log:
//    file: moku-log.log
//    max-size: 10
//    max-backups: 3
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/go-moku/moku"
	"github.com/go-moku/moku/datalog"
	"github.com/go-moku/moku/finders"
	"github.com/go-moku/moku/instr"
)

func main() {
	log.SetPrefix("moku-log: ")
	log.SetFlags(0)

	fname := flag.String("cfg", "moku-log.yaml", "path to the configuration file")

	flag.Usage = func() {
		fmt.Printf(`moku-log runs a datalogging session on a Moku:Lab device and saves
the samples to an LI file.

Usage: moku-log [OPTIONS]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := loadConfig(*fname)
	if err != nil {
		log.Fatalf("could not load configuration %q: %+v", *fname, err)
	}

	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
		}))
	}

	err = run(cfg)
	if err != nil {
		log.Fatalf("could not run datalogging session: %+v", err)
	}
}

// duration wraps time.Duration with YAML support for strings such as
// "10s" or "1m30s".
type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("could not parse duration %q: %w", s, err)
	}
	*d = duration(v)
	return nil
}

// Config describes one moku-log session. Either the device address
// or its mDNS name must be given.
type Config struct {
	Addr       string             `yaml:"addr"`
	Name       string             `yaml:"name"`
	Instrument string             `yaml:"instrument"`
	Duration   duration           `yaml:"duration"`
	Samplerate float64            `yaml:"samplerate"`
	Channels   []int              `yaml:"channels"`
	Settings   map[string]float64 `yaml:"settings"`
	Output     string             `yaml:"output"`
	CSV        string             `yaml:"csv"`
	Log        struct {
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max-size"` // MiB
		MaxBackups int    `yaml:"max-backups"`
	} `yaml:"log"`
}

func loadConfig(fname string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(fname)
	if err != nil {
		return cfg, fmt.Errorf("could not read file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode YAML: %w", err)
	}

	if cfg.Addr == "" && cfg.Name == "" {
		return cfg, fmt.Errorf("missing device address or name")
	}
	if cfg.Instrument == "" {
		return cfg, fmt.Errorf("missing instrument name")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("invalid session duration %v", time.Duration(cfg.Duration))
	}
	if cfg.Output == "" {
		return cfg, fmt.Errorf("missing output file name")
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []int{1}
	}
	for _, ch := range cfg.Channels {
		if ch != 1 && ch != 2 {
			return cfg, fmt.Errorf("invalid channel %d", ch)
		}
	}
	return cfg, nil
}

func run(cfg Config) error {
	if cfg.Addr == "" {
		dev, err := finders.ByName(cfg.Name, 3*time.Second)
		if err != nil {
			return err
		}
		cfg.Addr = dev.Addr.String()
		log.Printf("found %q at %q", cfg.Name, cfg.Addr)
	}

	m, err := moku.Dial(cfg.Addr)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", cfg.Addr, err)
	}
	defer m.Close()

	ins, err := instr.ByName(cfg.Instrument)
	if err != nil {
		return err
	}

	log.Printf("deploying %s on %q...", ins.Name(), cfg.Addr)
	ver, err := m.Deploy(ins.ID())
	if err != nil {
		return fmt.Errorf("could not deploy %s: %w", ins.Name(), err)
	}
	log.Printf("deploying %s on %q... [done] (v%d)", ins.Name(), cfg.Addr, ver)

	if err := ins.Attach(m); err != nil {
		return fmt.Errorf("could not attach %s: %w", ins.Name(), err)
	}
	if err := ins.SetDefaults(); err != nil {
		return fmt.Errorf("could not configure %s: %w", ins.Name(), err)
	}
	if cfg.Samplerate > 0 {
		sr, ok := ins.(interface{ SetSamplerate(float64) error })
		if !ok {
			return fmt.Errorf("instrument %q has no sample rate", cfg.Instrument)
		}
		if err := sr.SetSamplerate(cfg.Samplerate); err != nil {
			return fmt.Errorf("could not configure sample rate: %w", err)
		}
	}
	for name, v := range cfg.Settings {
		if err := ins.Set(name, v); err != nil {
			return fmt.Errorf("could not configure %s: %w", ins.Name(), err)
		}
	}
	if err := ins.Commit(); err != nil {
		return fmt.Errorf("could not commit %s settings: %w", ins.Name(), err)
	}
	if err := ins.SetRunning(true); err != nil {
		return fmt.Errorf("could not start %s: %w", ins.Name(), err)
	}
	defer func() { _ = ins.SetRunning(false) }()

	lfer, ok := ins.(interface {
		LogFormat(ch1, ch2 bool) (instr.LogFormat, error)
	})
	if !ok {
		return fmt.Errorf("instrument %q does not support datalogging", cfg.Instrument)
	}

	var ch1, ch2 bool
	for _, ch := range cfg.Channels {
		switch ch {
		case 1:
			ch1 = true
		case 2:
			ch2 = true
		}
	}
	lf, err := lfer.LogFormat(ch1, ch2)
	if err != nil {
		return fmt.Errorf("could not assemble log format: %w", err)
	}

	scfg := moku.StreamConfig{
		Ch1:      ch1,
		Ch2:      ch2,
		End:      uint32(time.Duration(cfg.Duration).Seconds()),
		FileType: "net",
		Tag:      moku.NewTag(),
	}
	lf.Apply(&scfg)

	if err := m.StreamPrep(scfg); err != nil {
		return fmt.Errorf("could not prepare session: %w", err)
	}

	ns, err := m.Netstream(scfg.Tag, 5*time.Second)
	if err != nil {
		return fmt.Errorf("could not subscribe to session %q: %w", scfg.Tag, err)
	}
	defer ns.Close()

	if err := m.StreamStart(); err != nil {
		return fmt.Errorf("could not start session: %w", err)
	}
	start := uint64(time.Now().Unix())

	w, err := datalog.Create(cfg.Output, scfg.LogConfig(ins.ID(), ver, start, lf.Cal))
	if err != nil {
		return fmt.Errorf("could not create output file %q: %w", cfg.Output, err)
	}
	defer w.Close()

	log.Printf("logging %v of samples to %q...", time.Duration(cfg.Duration), cfg.Output)

	var (
		grp  errgroup.Group
		done = make(chan struct{})
	)
	grp.Go(func() error {
		for {
			fr, err := ns.Recv()
			switch {
			case err == nil:
				if fr.Channel < 0 {
					return nil
				}
				if err := w.Append(fr.Payload, int(fr.Channel)); err != nil {
					return fmt.Errorf("could not save frame: %w", err)
				}
			case errors.Is(err, datalog.ErrTimeout):
				select {
				case <-done:
					return nil
				default:
				}
			default:
				return fmt.Errorf("could not receive frame: %w", err)
			}
		}
	})
	grp.Go(func() error {
		defer close(done)
		tick := time.NewTicker(1 * time.Second)
		defer tick.Stop()
		for range tick.C {
			st, err := m.StreamStatus()
			if err != nil {
				return fmt.Errorf("could not probe session status: %w", err)
			}
			log.Printf("logged %d bytes...", st.Bytes)
			if !st.Running() {
				return nil
			}
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("could not close output file %q: %w", cfg.Output, err)
	}
	log.Printf("logging %v of samples to %q... [done]", time.Duration(cfg.Duration), cfg.Output)

	if cfg.CSV != "" {
		if err := toCSV(cfg.Output, cfg.CSV); err != nil {
			return err
		}
		log.Printf("rendered %q to %q", cfg.Output, cfg.CSV)
	}
	return nil
}

func toCSV(iname, oname string) error {
	r, err := datalog.Open(iname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", iname, err)
	}
	defer r.Close()

	o, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", oname, err)
	}
	defer o.Close()

	if err := r.ToCSV(o); err != nil {
		return fmt.Errorf("could not render %q to CSV: %w", iname, err)
	}
	if err := o.Close(); err != nil {
		return fmt.Errorf("could not close %q: %w", oname, err)
	}
	return nil
}

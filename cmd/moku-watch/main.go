// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// moku-watch supervises a datalogging command and raises alerts when
// its output files stop growing.
//
// Usage: moku-watch [OPTIONS] CMD [ARGS...]
//
// Example:
//
//  $> moku-watch -dir /data -glob "*.li" -- moku-log -cfg moku-log.yaml
//
// Mail alerts are configured through the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sbinet/pmon"
	mail "gopkg.in/gomail.v2"
)

var stop = make(chan os.Signal, 1)

func main() {
	log.SetPrefix("moku-watch: ")
	log.SetFlags(0)

	var (
		dir     = flag.String("dir", ".", "directory to monitor")
		glob    = flag.String("glob", "*.li", "file pattern to monitor")
		freq    = flag.Duration("freq", 30*time.Second, "probing interval")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		monFreq = flag.Duration("pmon-freq", 1*time.Second, "pmon frequency")
		restart = flag.Bool("restart", false, "restart the command when it fails")
	)

	flag.Usage = func() {
		fmt.Printf(`moku-watch supervises a datalogging command and raises alerts when
its output files stop growing.

Usage: moku-watch [OPTIONS] CMD [ARGS...]

Example:

 $> moku-watch -dir /data -glob "*.li" -- moku-log -cfg moku-log.yaml

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing command to supervise")
	}

	w := &watcher{
		dir:    *dir,
		glob:   *glob,
		freq:   *freq,
		alerts: make(map[string]int),
	}

	err := run(flag.Arg(0), flag.Args()[1:], w, *doMon, *monFreq, *restart, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(name string, args []string, w *watcher, doMon bool, monFreq time.Duration, restart bool, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	quit := make(chan struct{})
	defer close(quit)
	go w.monitor(quit)

	for {
		err := start(name, args, doMon, monFreq, stop)
		if err == nil {
			return nil
		}
		if !restart {
			return err
		}
		log.Printf("restarting %q: %+v", name, err)
		time.Sleep(1 * time.Second)
	}
}

func start(name string, args []string, doMon bool, freq time.Duration, stop chan os.Signal) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Printf("starting %q...", name)
	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", name, err)
	}

	if doMon {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			return fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		f, err := os.Create(filepath.Base(name) + "-pmon.log")
		if err != nil {
			return fmt.Errorf("could not create pmon log file for %q: %w", name, err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			log.Printf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				log.Printf("could not monitor %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	errch := make(chan error)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-stop:
		err = cmd.Process.Signal(os.Interrupt)
		if err != nil {
			return fmt.Errorf("could not stop %q: %w", name, err)
		}
		<-errch
		return nil
	case err = <-errch:
		if err != nil {
			return fmt.Errorf("could not run %q: %w", name, err)
		}
	}

	return nil
}

type watcher struct {
	dir    string
	glob   string
	freq   time.Duration
	alerts map[string]int // number of alerts raised per file
}

func (w *watcher) monitor(quit chan struct{}) {
	var (
		tick  = time.NewTicker(w.freq)
		table = make(map[string]int64)
	)

	defer tick.Stop()

	for {
		select {
		case <-quit:
			return
		case <-tick.C:
			cur, err := w.list()
			if err != nil {
				log.Printf("could not list files: %+v", err)
				continue
			}
			w.compare(table, cur)
			table = cur
		}
	}
}

func (w *watcher) list() (map[string]int64, error) {
	table := make(map[string]int64)
	glob := filepath.Join(w.dir, w.glob)
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("could not glob %q: %w", glob, err)
	}
	for _, fname := range files {
		fi, err := os.Stat(fname)
		if err != nil {
			return nil, fmt.Errorf("could not stat %q: %w", fname, err)
		}
		table[fname] = fi.Size()
	}
	return table, nil
}

func (w *watcher) compare(ref, chk map[string]int64) {
	for fname := range chk {
		if _, ok := ref[fname]; !ok {
			// file just appeared.
			// nothing to compare against.
			continue
		}
		refsz := ref[fname]
		chksz := chk[fname]
		if refsz == chksz {
			// file didn't grow!
			w.alert(fname, refsz)
		}
	}
}

func (w *watcher) alert(fname string, size int64) {
	log.Printf("file %q didn't change in the last %v (size=%d bytes)",
		fname, w.freq, size,
	)
	w.alerts[fname]++

	const maxAlerts = 5
	if w.alerts[fname] < maxAlerts {
		w.alertMail(fname, size)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (w *watcher) alertMail(fname string, size int64) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[moku-watch] file alert: %q", fname))
	msg.SetBody("text/plain", fmt.Sprintf("file: %q\nsize: %d bytes\nfreq: %v",
		fname, size, w.freq,
	))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

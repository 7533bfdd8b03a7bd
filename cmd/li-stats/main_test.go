// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-moku/moku/datalog"
)

func TestProcess(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "osc.li")
	w, err := datalog.Create(fname, datalog.Config{
		Instrument: 1,
		Version:    1,
		Channels:   1,
		Layout:     "<s32",
		Process:    []string{"*C"},
		Format:     "{t}, {ch1:.1f}\n",
		Header:     "t, v\n",
		TimeStep:   1,
		StartTime:  0,
		Cal:        []float64{2},
	})
	if err != nil {
		t.Fatalf("could not create LI file: %+v", err)
	}
	err = w.Append([]byte{
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
	}, 0)
	if err != nil {
		t.Fatalf("could not append: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close LI file: %+v", err)
	}

	o := new(strings.Builder)
	if err := process(o, fname); err != nil {
		t.Fatalf("could not analyze: %+v", err)
	}

	// values on channel 1 are 2, 4 and 6 after calibration.
	got := o.String()
	for _, want := range []string{
		"ch1: entries=3",
		"mean=+4.0000e+00",
		"min=+2.0000e+00",
		"max=+6.0000e+00",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("invalid stats: missing %q in:\n%s", want, got)
		}
	}
}

func TestHistOf(t *testing.T) {
	h := histOf([]float64{2, 4, 6})
	if got, want := h.Entries(), int64(3); got != want {
		t.Fatalf("invalid entries: got=%d, want=%d", got, want)
	}
	if got, want := h.XMean(), 4.0; got != want {
		t.Fatalf("invalid mean: got=%v, want=%v", got, want)
	}

	h = histOf(nil)
	if got, want := h.Entries(), int64(0); got != want {
		t.Fatalf("invalid entries: got=%d, want=%d", got, want)
	}
}

func TestProcessInvalidFile(t *testing.T) {
	if err := process(new(strings.Builder), "testdata/missing.li"); err == nil {
		t.Fatalf("expected an error, got none")
	}
}

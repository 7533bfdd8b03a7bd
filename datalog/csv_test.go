// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDumpCSV(t *testing.T) {
	cfg := testConfig("<s32:f32", ":")
	cfg.TimeStep = 0.5
	cfg.Header = "t, a, b\n"
	cfg.Format = "{t}, {ch1[0]}, {ch1[1]:.2f}\n"

	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}
	data := []byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0xBF, // (1, -1.0)
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xBF, // (2, -0.5)
	}
	if err := p.Parse(data, 0); err != nil {
		t.Fatalf("could not parse: %+v", err)
	}

	o := new(strings.Builder)
	if err := p.DumpCSV(o); err != nil {
		t.Fatalf("could not dump CSV: %+v", err)
	}

	want := "t, a, b\n0, 1, -1.00\n0.5, 2, -0.50\n"
	if got := o.String(); got != want {
		t.Fatalf("invalid CSV:\ngot: %q\nwant:%q\n", got, want)
	}

	if got := len(p.Processed(0)); got != 0 {
		t.Fatalf("dump did not consume records: %d left", got)
	}
}

func TestDumpCSVTwoChannels(t *testing.T) {
	cfg := testConfig("<s32", "*-1e2", "*1e-1")
	cfg.Format = "{ch1},{ch2}\n"

	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}

	one := []byte{0x01, 0x00, 0x00, 0x00}
	if err := p.Parse(append(one, one...), 0); err != nil {
		t.Fatalf("could not parse channel 0: %+v", err)
	}
	if err := p.Parse(one, 1); err != nil {
		t.Fatalf("could not parse channel 1: %+v", err)
	}

	// only one time-aligned row is available yet; the second channel-0
	// record must survive the dump.
	o := new(strings.Builder)
	if err := p.DumpCSV(o); err != nil {
		t.Fatalf("could not dump CSV: %+v", err)
	}
	if got, want := o.String(), "-100,-0.1\n"; got != want {
		t.Fatalf("invalid CSV:\ngot: %q\nwant:%q\n", got, want)
	}

	if err := p.Parse(one, 1); err != nil {
		t.Fatalf("could not parse channel 1: %+v", err)
	}
	o.Reset()
	if err := p.DumpCSV(o); err != nil {
		t.Fatalf("could not dump CSV: %+v", err)
	}
	if got, want := o.String(), "-100,-0.1\n"; got != want {
		t.Fatalf("invalid CSV:\ngot: %q\nwant:%q\n", got, want)
	}
}

func TestDumpCSVAbsentChannel(t *testing.T) {
	// a one-channel capture whose templates carry absolute channel
	// numbers; the inactive channel renders as zero.
	cfg := testConfig("<s32", "")
	cfg.Header = "t, a, b\n"
	cfg.Format = "{t},{ch1},{ch2},{ch2:.1f}\n"

	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}
	if err := p.Parse([]byte{0x2A, 0x00, 0x00, 0x00}, 0); err != nil {
		t.Fatalf("could not parse: %+v", err)
	}

	o := new(strings.Builder)
	if err := p.DumpCSV(o); err != nil {
		t.Fatalf("could not dump CSV: %+v", err)
	}

	want := "t, a, b\n0,42,0,0.0\n"
	if got := o.String(); got != want {
		t.Fatalf("invalid CSV:\ngot: %q\nwant:%q\n", got, want)
	}
}

func TestDumpCSVHeaderVars(t *testing.T) {
	cfg := testConfig("<s32", "")
	cfg.StartTime = 1700000000
	cfg.TimeStep = 0.25
	cfg.Header = "% Start: {T} (step {d}s) {{raw}}\nn, v\n"
	cfg.Format = "{n}, {ch1}\n"

	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}
	if err := p.Parse([]byte{0x2A, 0x00, 0x00, 0x00}, 0); err != nil {
		t.Fatalf("could not parse: %+v", err)
	}

	o := new(strings.Builder)
	if err := p.DumpCSV(o); err != nil {
		t.Fatalf("could not dump CSV: %+v", err)
	}

	stamp := time.Unix(1700000000, 0).Format(time.ANSIC)
	want := fmt.Sprintf("%% Start: %s (step 0.25s) {raw}\nn, v\n1, 42\n", stamp)
	if got := o.String(); got != want {
		t.Fatalf("invalid CSV:\ngot: %q\nwant:%q\n", got, want)
	}
}

func TestRenderTemplateErrors(t *testing.T) {
	vars := map[string]interface{}{
		"ch1": Record{IntValue(1)},
	}
	for _, tc := range []struct {
		name string
		tmpl string
		want string
	}{
		{
			name: "unterminated",
			tmpl: "{ch1",
			want: `datalog: unterminated placeholder in "{ch1": datalog: invalid format string`,
		},
		{
			name: "unknown-name",
			tmpl: "{foo}",
			want: `datalog: unknown placeholder "foo": datalog: invalid format string`,
		},
		{
			name: "bad-index",
			tmpl: "{ch1[x]}",
			want: `datalog: malformed placeholder "ch1[x]": datalog: invalid format string`,
		},
		{
			name: "index-out-of-range",
			tmpl: "{ch1[4]}",
			want: `datalog: index 4 out of range for "ch1": datalog: invalid format string`,
		},
		{
			name: "bad-spec",
			tmpl: "{ch1:.2q}",
			want: `datalog: unsupported format spec ".2q": datalog: invalid format string`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := renderTemplate(tc.tmpl, vars)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := err.Error(); got != tc.want {
				t.Fatalf("invalid error:\ngot: %+v\nwant:%+v\n", got, tc.want)
			}
		})
	}
}

// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"testing"
)

func testConfig(layout string, procs ...string) Config {
	cal := make([]float64, len(procs))
	for i := range cal {
		cal[i] = 1
	}
	return Config{
		Instrument: 1,
		Version:    1,
		Channels:   len(procs),
		Layout:     layout,
		Process:    procs,
		Format:     "{ch1}\n",
		Header:     "",
		TimeStep:   1,
		StartTime:  0,
		Cal:        cal,
	}
}

func parseAll(t *testing.T, cfg Config, data []byte) []Record {
	t.Helper()
	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}
	if err := p.Parse(data, 0); err != nil {
		t.Fatalf("could not parse: %+v", err)
	}
	return p.Processed(0)
}

func checkRecords(t *testing.T, got, want []Record) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("invalid number of records: got=%d, want=%d\ngot: %v\nwant:%v", len(got), len(want), got, want)
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Fatalf("record %d: got=%v, want=%v", i, got[i], want[i])
		}
	}
}

func TestParserDecode(t *testing.T) {
	for _, tc := range []struct {
		name   string
		layout string
		proc   string
		data   []byte
		want   []Record
	}{
		{
			name:   "signed-words",
			layout: "<s32",
			proc:   "",
			data: []byte{
				0x00, 0x00, 0x00, 0x00,
				0xFF, 0xFF, 0xFF, 0xFF,
				0x00, 0x11, 0x22, 0x33,
			},
			want: []Record{
				{IntValue(0)},
				{IntValue(-1)},
				{IntValue(0x33221100)},
			},
		},
		{
			name:   "unsigned-words",
			layout: "<u32",
			proc:   "",
			data: []byte{
				0xFF, 0xFF, 0xFF, 0xFF,
				0x00, 0x11, 0x22, 0x33,
			},
			want: []Record{
				{UintValue(0xFFFFFFFF)},
				{UintValue(0x33221100)},
			},
		},
		{
			name:   "float-word",
			layout: "<f32",
			proc:   "",
			data:   []byte{0x00, 0x00, 0x80, 0xBF},
			want:   []Record{{FloatValue(-1)}},
		},
		{
			name:   "double-word",
			layout: "<f64",
			proc:   "",
			data:   []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF0, 0x3F},
			want:   []Record{{FloatValue(1)}},
		},
		{
			name:   "packed-byte",
			layout: "<b1:u6:b1",
			proc:   "::",
			data:   []byte{0xFF, 0x00},
			want: []Record{
				{BoolValue(true), UintValue(0x3F), BoolValue(true)},
				{BoolValue(false), UintValue(0), BoolValue(false)},
			},
		},
		{
			name:   "sub-byte-fields",
			layout: "<u4:u4",
			proc:   ":",
			data:   []byte{0x21, 0x43},
			want: []Record{
				{UintValue(1), UintValue(2)},
				{UintValue(3), UintValue(4)},
			},
		},
		{
			name:   "wide-field",
			layout: "<u48",
			proc:   "",
			data:   []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
			want:   []Record{{UintValue(0x060504030201)}},
		},
		{
			name:   "padding-literal-resync",
			layout: "<p8,0xFF:u8",
			proc:   "",
			data:   []byte{0x00, 0x00, 0xFF, 0x01, 0x00, 0xFF, 0x02, 0xFF, 0x03, 0x10},
			want: []Record{
				{UintValue(1)},
				{UintValue(2)},
				{UintValue(3)},
			},
		},
		{
			name:   "sub-byte-literal",
			layout: "<p2,3:u6",
			proc:   "",
			data:   []byte{0xFF, 0xFF, 0xFF},
			want: []Record{
				{UintValue(0x3F)},
				{UintValue(0x3F)},
				{UintValue(0x3F)},
			},
		},
		{
			name:   "resync-drops-partial-record",
			layout: "<u8:p8,0xFF:u8",
			proc:   ":",
			data:   []byte{0x01, 0xFF, 0x02, 0x03, 0x99, 0x04, 0xFF, 0x05},
			want: []Record{
				{UintValue(1), UintValue(2)},
				{UintValue(4), UintValue(5)},
			},
		},
		{
			name:   "sub-byte-literal-resync",
			layout: "<b1,1:u7",
			proc:   ":",
			data:   []byte{0x00, 0x81},
			want:   []Record{{BoolValue(true), UintValue(0x40)}},
		},
		{
			name:   "padding-without-literal",
			layout: "<p8:u8",
			proc:   "",
			data:   []byte{0xAA, 0x07, 0xBB, 0x09},
			want: []Record{
				{UintValue(7)},
				{UintValue(9)},
			},
		},
		{
			name:   "trailing-partial-record",
			layout: "<s32:f32",
			proc:   ":",
			data: []byte{
				0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0xBF,
				0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0xBF,
				0x00, 0x80, 0xBF,
			},
			want: []Record{
				{IntValue(1), FloatValue(-1)},
				{IntValue(1), FloatValue(-1)},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := parseAll(t, testConfig(tc.layout, tc.proc), tc.data)
			checkRecords(t, got, tc.want)
		})
	}
}

func TestParserChunked(t *testing.T) {
	cfg := testConfig("<p8,0xFF:s32:b1:u7", ":::")
	data := []byte{
		0xFF, 0x01, 0x00, 0x00, 0x00, 0x81,
		0x00, // stray byte, forces a resync
		0xFF, 0xFE, 0xFF, 0xFF, 0xFF, 0x00,
	}

	whole := parseAll(t, cfg, data)

	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}
	for _, b := range data {
		if err := p.Parse([]byte{b}, 0); err != nil {
			t.Fatalf("could not parse: %+v", err)
		}
	}
	bybyte := p.Processed(0)

	want := []Record{
		{IntValue(1), BoolValue(true), UintValue(0x40)},
		{IntValue(-2), BoolValue(false), UintValue(0)},
	}
	checkRecords(t, whole, want)
	checkRecords(t, bybyte, want)
}

func TestParserProcess(t *testing.T) {
	// one record of (1, -1.0) through various processing strings.
	data := []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80, 0xBF}
	for _, tc := range []struct {
		name string
		proc string
		cal  float64
		want Record
	}{
		{name: "identity", proc: ":", cal: 1, want: Record{IntValue(1), FloatValue(-1)}},
		{name: "calibrate", proc: "*C:*C", cal: 2, want: Record{FloatValue(2), FloatValue(-2)}},
		{name: "int-scale", proc: "*2:*2", cal: 1, want: Record{IntValue(2), FloatValue(-2)}},
		{name: "int-div-floors", proc: "/2:/2", cal: 1, want: Record{IntValue(0), FloatValue(-0.5)}},
		{name: "add-sub", proc: "+1+1-2:-1-1+2", cal: 1, want: Record{IntValue(1), FloatValue(-1)}},
		{name: "chain", proc: "*C/2+1:*C/2+1", cal: 2, want: Record{FloatValue(2), FloatValue(0)}},
		{name: "floor", proc: "f:f", cal: 1, want: Record{IntValue(1), IntValue(-1)}},
		{name: "ceil", proc: "c:c", cal: 1, want: Record{IntValue(1), IntValue(-1)}},
		{name: "sqrt", proc: "s:*-1s", cal: 1, want: Record{FloatValue(1), FloatValue(1)}},
		{name: "power", proc: "^2:^2", cal: 1, want: Record{IntValue(1), FloatValue(1)}},
		{name: "exponential", proc: "*-1e2:*1e-1", cal: 1, want: Record{FloatValue(-100), FloatValue(-0.1)}},
		{name: "float-literal", proc: "*1.5:*1.5", cal: 1, want: Record{FloatValue(1.5), FloatValue(-1.5)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("<s32:f32", tc.proc)
			cfg.Cal = []float64{tc.cal}
			got := parseAll(t, cfg, data)
			checkRecords(t, got, []Record{tc.want})
		})
	}
}

func TestParserIntSemantics(t *testing.T) {
	for _, tc := range []struct {
		name string
		proc string
		data []byte // one s32 record
		want Value
	}{
		{name: "negative-div-floors", proc: "/2", data: []byte{0xFD, 0xFF, 0xFF, 0xFF}, want: IntValue(-2)},
		{name: "mask", proc: "&0x7", data: []byte{0x0F, 0x00, 0x00, 0x00}, want: IntValue(7)},
		{name: "float-promotes", proc: "*1.5", data: []byte{0x02, 0x00, 0x00, 0x00}, want: FloatValue(3)},
		{name: "floor-after-float", proc: "*0.5f", data: []byte{0x03, 0x00, 0x00, 0x00}, want: IntValue(1)},
		{name: "int-power", proc: "^3", data: []byte{0xFE, 0xFF, 0xFF, 0xFF}, want: IntValue(-8)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := parseAll(t, testConfig("<s32", tc.proc), tc.data)
			checkRecords(t, got, []Record{{tc.want}})
		})
	}
}

func TestParserArityMismatch(t *testing.T) {
	cfg := testConfig("<s32:f32", "")
	_, err := NewParser(cfg)
	if err == nil {
		t.Fatalf("expected an error")
	}
	want := `datalog: processing string "" has 1 fields, layout "<s32:f32" has 2: datalog: invalid format string`
	if got := err.Error(); got != want {
		t.Fatalf("invalid error:\ngot: %+v\nwant:%+v\n", got, want)
	}
}

func TestParserTwoChannels(t *testing.T) {
	cfg := testConfig("<s32", "*2", "*3")
	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("could not create parser: %+v", err)
	}

	if err := p.Parse([]byte{0x02, 0x00, 0x00, 0x00}, 0); err != nil {
		t.Fatalf("could not parse channel 0: %+v", err)
	}
	if err := p.Parse([]byte{0x03, 0x00, 0x00, 0x00}, 1); err != nil {
		t.Fatalf("could not parse channel 1: %+v", err)
	}

	checkRecords(t, p.Processed(0), []Record{{IntValue(4)}})
	checkRecords(t, p.Processed(1), []Record{{IntValue(9)}})

	p.ClearProcessed(0, 1)
	if got := len(p.Processed(0)); got != 0 {
		t.Fatalf("channel 0 not cleared: %d records left", got)
	}

	if err := p.Parse([]byte{0x01, 0x00, 0x00}, 1); err != nil {
		t.Fatalf("could not parse partial chunk: %+v", err)
	}
	checkRecords(t, p.Processed(1), []Record{{IntValue(9)}})
}

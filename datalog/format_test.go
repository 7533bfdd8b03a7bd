// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"errors"
	"testing"

	"golang.org/x/xerrors"
)

func TestParseLayout(t *testing.T) {
	for _, tc := range []struct {
		name   string
		spec   string
		fields []Field
		bits   int
		nvals  int
		want   error
	}{
		{
			name:   "signed-word",
			spec:   "<s32",
			fields: []Field{{Kind: FieldSigned, Bits: 32}},
			bits:   32,
			nvals:  1,
		},
		{
			name: "packed-byte",
			spec: "<b1:u6:b1",
			fields: []Field{
				{Kind: FieldBool, Bits: 1},
				{Kind: FieldUnsigned, Bits: 6},
				{Kind: FieldBool, Bits: 1},
			},
			bits:  8,
			nvals: 3,
		},
		{
			name: "padding-with-literal",
			spec: "<p8,0xFF:u8",
			fields: []Field{
				{Kind: FieldPadding, Bits: 8, Lit: 0xFF, HasLit: true},
				{Kind: FieldUnsigned, Bits: 8},
			},
			bits:  16,
			nvals: 1,
		},
		{
			name: "no-endian-marker",
			spec: "p2,3:u6",
			fields: []Field{
				{Kind: FieldPadding, Bits: 2, Lit: 3, HasLit: true},
				{Kind: FieldUnsigned, Bits: 6},
			},
			bits:  8,
			nvals: 1,
		},
		{
			name: "floats",
			spec: "<f32:f64",
			fields: []Field{
				{Kind: FieldFloat, Bits: 32},
				{Kind: FieldFloat, Bits: 64},
			},
			bits:  96,
			nvals: 2,
		},
		{
			name: "decimal-literal",
			spec: "<u12,1234:s20",
			fields: []Field{
				{Kind: FieldUnsigned, Bits: 12, Lit: 1234, HasLit: true},
				{Kind: FieldSigned, Bits: 20},
			},
			bits:  32,
			nvals: 2,
		},
		{
			name: "empty",
			spec: "",
			want: xerrors.Errorf("datalog: empty layout string: %w", ErrFormat),
		},
		{
			name: "big-endian",
			spec: ">u8",
			want: xerrors.Errorf("datalog: big-endian layout %q not supported: %w", ">u8", ErrFormat),
		},
		{
			name: "empty-field",
			spec: "<u8:",
			want: xerrors.Errorf("datalog: empty layout field: %w", ErrFormat),
		},
		{
			name: "reserved-type",
			spec: "<r16",
			want: xerrors.Errorf("datalog: reserved field type 'r' in %q: %w", "r16", ErrFormat),
		},
		{
			name: "unknown-type",
			spec: "<q8",
			want: xerrors.Errorf("datalog: unknown field type in %q: %w", "q8", ErrFormat),
		},
		{
			name: "zero-width",
			spec: "<u0",
			want: xerrors.Errorf("datalog: invalid bit width in %q: %w", "u0", ErrFormat),
		},
		{
			name: "over-wide",
			spec: "<u65",
			want: xerrors.Errorf("datalog: invalid bit width in %q: %w", "u65", ErrFormat),
		},
		{
			name: "missing-width",
			spec: "<u",
			want: xerrors.Errorf("datalog: invalid bit width in %q: %w", "u", ErrFormat),
		},
		{
			name: "bad-literal",
			spec: "<u8,zz",
			want: xerrors.Errorf("datalog: invalid literal in %q: %w", "u8,zz", ErrFormat),
		},
		{
			name: "oversized-literal",
			spec: "<u8,0x1FF",
			want: xerrors.Errorf("datalog: literal in %q exceeds field width: %w", "u8,0x1FF", ErrFormat),
		},
		{
			name: "narrow-float",
			spec: "<f16",
			want: xerrors.Errorf("datalog: float field must be 32 or 64 bits wide (got=%d): %w", 16, ErrFormat),
		},
		{
			name: "wide-bool",
			spec: "<b2",
			want: xerrors.Errorf("datalog: boolean field must be 1 bit wide (got=%d): %w", 2, ErrFormat),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			lay, err := ParseLayout(tc.spec)
			switch {
			case err != nil && tc.want == nil:
				t.Fatalf("got=%v, want=%v", err, tc.want)
			case err == nil && tc.want != nil:
				t.Fatalf("expected an error: %+v", tc.want)
			case err != nil && tc.want != nil:
				if got, want := err.Error(), tc.want.Error(); got != want {
					t.Fatalf("invalid error:\ngot: %+v\nwant:%+v\n", got, want)
				}
				if !errors.Is(err, ErrFormat) {
					t.Fatalf("error %v does not wrap ErrFormat", err)
				}
				return
			}
			if got, want := len(lay.Fields()), len(tc.fields); got != want {
				t.Fatalf("invalid number of fields: got=%d, want=%d", got, want)
			}
			for i, f := range lay.Fields() {
				if f != tc.fields[i] {
					t.Fatalf("field %d: got=%#v, want=%#v", i, f, tc.fields[i])
				}
			}
			if got, want := lay.BitLen(), tc.bits; got != want {
				t.Fatalf("invalid bit length: got=%d, want=%d", got, want)
			}
			if got, want := lay.NumValues(), tc.nvals; got != want {
				t.Fatalf("invalid value count: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestParseProcess(t *testing.T) {
	for _, tc := range []struct {
		name    string
		spec    string
		nfields int
		want    error
	}{
		{name: "empty", spec: "", nfields: 1},
		{name: "empty-fields", spec: "::", nfields: 3},
		{name: "calibrated", spec: "*C:*C", nfields: 2},
		{name: "chained", spec: "*C/8+1-2:*0.5s", nfields: 2},
		{name: "hex-mask", spec: "&0x1F", nfields: 1},
		{name: "exponential", spec: "*-1e2:*1e-1", nfields: 2},
		{name: "unary", spec: "s:f:c", nfields: 3},
		{name: "power", spec: "^2", nfields: 1},
		{
			name: "unknown-op",
			spec: "q1",
			want: xerrors.Errorf("datalog: unknown operation %q in %q: %w", "q", "q1", ErrFormat),
		},
		{
			name: "missing-operand",
			spec: "*2:+",
			want: xerrors.Errorf("datalog: missing operand for %q in %q: %w", "+", "+", ErrFormat),
		},
		{
			name: "operand-on-unary",
			spec: "s2",
			want: xerrors.Errorf("datalog: unexpected operand %q for %q in %q: %w", "2", "s", "s2", ErrFormat),
		},
		{
			name: "bad-operand",
			spec: "*..",
			want: xerrors.Errorf("datalog: invalid operand %q in %q: %w", "..", "*..", ErrFormat),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			proc, err := ParseProcess(tc.spec, 1)
			switch {
			case err != nil && tc.want == nil:
				t.Fatalf("got=%v, want=%v", err, tc.want)
			case err == nil && tc.want != nil:
				t.Fatalf("expected an error: %+v", tc.want)
			case err != nil && tc.want != nil:
				if got, want := err.Error(), tc.want.Error(); got != want {
					t.Fatalf("invalid error:\ngot: %+v\nwant:%+v\n", got, want)
				}
				return
			}
			if got, want := proc.NumFields(), tc.nfields; got != want {
				t.Fatalf("invalid field count: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestSetCoefficient(t *testing.T) {
	proc, err := ParseProcess("*C+1", 2)
	if err != nil {
		t.Fatalf("could not parse: %+v", err)
	}

	rec, err := processRecord(Record{IntValue(3)}, proc)
	if err != nil {
		t.Fatalf("could not process: %+v", err)
	}
	if got, want := rec[0], FloatValue(7); !got.Equal(want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	proc.SetCoefficient(10)
	rec, err = processRecord(Record{IntValue(3)}, proc)
	if err != nil {
		t.Fatalf("could not process: %+v", err)
	}
	if got, want := rec[0], FloatValue(31); !got.Equal(want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package datalog implements the Moku:Lab "LI" datalogging format.
//
// An LI capture is a stream of raw instrument records described by two
// small format strings embedded in the capture itself: a binary layout
// string giving the bit-level encoding of one record, and a processing
// string giving the arithmetic that turns each raw field into a
// physical value. Package datalog provides the parsers for both
// languages, an incremental bit-level record decoder, the on-disk
// container codec and the rendering of processed records to CSV.
package datalog // import "github.com/go-moku/moku/datalog"

import (
	"fmt"
	"math"

	"golang.org/x/xerrors"
)

var (
	// ErrFormat reports a malformed layout or processing string.
	ErrFormat = xerrors.New("datalog: invalid format string")

	// ErrCorruptFile reports an LI file whose container structure is
	// damaged (bad magic, header length mismatch, truncated chunk).
	ErrCorruptFile = xerrors.New("datalog: corrupt file")

	// ErrUnsupportedVersion reports an LI file written with a format
	// revision this package does not read.
	ErrUnsupportedVersion = xerrors.New("datalog: unsupported file version")

	// ErrStreamEnded signals the normal termination of a live stream.
	ErrStreamEnded = xerrors.New("datalog: stream ended")

	// ErrTimeout reports that no stream data arrived in time.
	ErrTimeout = xerrors.New("datalog: timeout")
)

// Kind discriminates the numeric interpretation of a Value.
type Kind uint8

const (
	Uint Kind = iota
	Int
	Float
	Bool
)

// Value is one decoded record field. Fields start out as the raw
// unsigned, signed, floating-point or boolean interpretation of their
// bits and move between integral and floating point as processing
// operations are applied, mirroring the numeric tower of the
// instrument firmware.
type Value struct {
	kind Kind
	u    uint64
	i    int64
	f    float64
	b    bool
}

func UintValue(v uint64) Value   { return Value{kind: Uint, u: v} }
func IntValue(v int64) Value     { return Value{kind: Int, i: v} }
func FloatValue(v float64) Value { return Value{kind: Float, f: v} }
func BoolValue(v bool) Value     { return Value{kind: Bool, b: v} }

// Kind returns the current interpretation of v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) Uint() uint64 { return v.u }
func (v Value) Int() int64   { return v.i }
func (v Value) Bool() bool   { return v.b }

// Float returns v as a float64, converting integral values.
func (v Value) Float() float64 {
	switch v.kind {
	case Uint:
		return float64(v.u)
	case Int:
		return float64(v.i)
	case Bool:
		if v.b {
			return 1
		}
		return 0
	}
	return v.f
}

// integral returns v as an int64 when v is of integral kind.
func (v Value) integral() (int64, bool) {
	switch v.kind {
	case Uint:
		return int64(v.u), true
	case Int:
		return v.i, true
	case Bool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Uint:
		return v.u == o.u
	case Int:
		return v.i == o.i
	case Bool:
		return v.b == o.b
	}
	return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
}

func (v Value) String() string {
	switch v.kind {
	case Uint:
		return fmt.Sprintf("%d", v.u)
	case Int:
		return fmt.Sprintf("%d", v.i)
	case Bool:
		return fmt.Sprintf("%v", v.b)
	}
	return fmt.Sprintf("%v", v.f)
}

// A Record is the ordered list of non-padding field values of one
// instrument record.
type Record []Value

// Equal reports whether two records are element-wise equal.
func (rec Record) Equal(o Record) bool {
	if len(rec) != len(o) {
		return false
	}
	for i := range rec {
		if !rec[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (rec Record) String() string {
	s := "("
	for i, v := range rec {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s + ")"
}

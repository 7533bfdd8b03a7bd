// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// FieldKind is the wire interpretation of one layout field.
type FieldKind uint8

const (
	FieldUnsigned FieldKind = iota
	FieldSigned
	FieldFloat
	FieldBool
	FieldPadding
)

// Field is one clause of a binary layout string.
type Field struct {
	Kind   FieldKind
	Bits   int    // width in bits, 1..64
	Lit    uint64 // expected raw bit pattern, valid if HasLit
	HasLit bool
}

// Layout is a parsed binary layout string. It describes the bit-level
// encoding of a single instrument record: a sequence of fields, each
// with a type, a width in bits and an optional expected literal value
// used to (re)synchronise the decoder.
type Layout struct {
	fields []Field
	bits   int // total bits per record
	nvals  int // non-padding fields per record
}

// Fields returns the layout's fields, in wire order.
func (lay *Layout) Fields() []Field { return lay.fields }

// BitLen returns the total number of bits of one record.
func (lay *Layout) BitLen() int { return lay.bits }

// NumValues returns the number of non-padding fields of one record.
func (lay *Layout) NumValues() int { return lay.nvals }

// ParseLayout parses a binary layout string such as
// "<s32:p8,0xAA:b1:u15". Clauses are colon-separated; each is a type
// character ('u' unsigned, 's' signed, 'f' float, 'b' boolean, 'p'
// padding), a bit width, and an optional comma-separated literal in
// decimal or hexadecimal. A leading '<' (little-endian marker) is
// accepted; big-endian layouts are not supported.
func ParseLayout(spec string) (*Layout, error) {
	if spec == "" {
		return nil, xerrors.Errorf("datalog: empty layout string: %w", ErrFormat)
	}
	if strings.ContainsRune(spec, '>') {
		return nil, xerrors.Errorf("datalog: big-endian layout %q not supported: %w", spec, ErrFormat)
	}
	spec = strings.TrimPrefix(spec, "<")

	lay := &Layout{}
	for _, clause := range strings.Split(spec, ":") {
		f, err := parseField(clause)
		if err != nil {
			return nil, err
		}
		lay.fields = append(lay.fields, f)
		lay.bits += f.Bits
		if f.Kind != FieldPadding {
			lay.nvals++
		}
	}
	return lay, nil
}

func parseField(clause string) (Field, error) {
	var f Field
	if clause == "" {
		return f, xerrors.Errorf("datalog: empty layout field: %w", ErrFormat)
	}
	switch clause[0] {
	case 'u':
		f.Kind = FieldUnsigned
	case 's':
		f.Kind = FieldSigned
	case 'f':
		f.Kind = FieldFloat
	case 'b':
		f.Kind = FieldBool
	case 'p':
		f.Kind = FieldPadding
	case 'r':
		// reserved by the format, never emitted by firmware.
		return f, xerrors.Errorf("datalog: reserved field type 'r' in %q: %w", clause, ErrFormat)
	default:
		return f, xerrors.Errorf("datalog: unknown field type in %q: %w", clause, ErrFormat)
	}

	width := clause[1:]
	lit := ""
	if i := strings.IndexByte(width, ','); i >= 0 {
		width, lit = width[:i], width[i+1:]
	}

	bits, err := strconv.Atoi(width)
	if err != nil || bits < 1 || bits > 64 {
		return f, xerrors.Errorf("datalog: invalid bit width in %q: %w", clause, ErrFormat)
	}
	f.Bits = bits

	if lit != "" {
		v, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return f, xerrors.Errorf("datalog: invalid literal in %q: %w", clause, ErrFormat)
		}
		if bits < 64 && v >= 1<<uint(bits) {
			return f, xerrors.Errorf("datalog: literal in %q exceeds field width: %w", clause, ErrFormat)
		}
		f.Lit = v
		f.HasLit = true
	}

	switch {
	case f.Kind == FieldFloat && bits != 32 && bits != 64:
		return f, xerrors.Errorf("datalog: float field must be 32 or 64 bits wide (got=%d): %w", bits, ErrFormat)
	case f.Kind == FieldBool && bits != 1:
		return f, xerrors.Errorf("datalog: boolean field must be 1 bit wide (got=%d): %w", bits, ErrFormat)
	}
	return f, nil
}

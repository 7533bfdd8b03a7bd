// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"math"
	"strconv"

	"golang.org/x/xerrors"
)

// An Op is one processing operation applied to a decoded field value.
type Op struct {
	Code byte // one of '*' '/' '+' '-' '&' 's' 'f' 'c' '^'
	arg  operand
	cal  bool // operand is the channel calibration coefficient
}

type operand struct {
	set   bool
	isInt bool
	i     int64
	f     float64
}

func intOperand(v int64) operand     { return operand{set: true, isInt: true, i: v} }
func floatOperand(v float64) operand { return operand{set: true, f: v} }

func (o operand) float() float64 {
	if o.isInt {
		return float64(o.i)
	}
	return o.f
}

// Process is a parsed processing string: one list of operations per
// non-padding layout field. Operations referring to the calibration
// coefficient 'C' hold a reference that SetCoefficient re-resolves
// without re-parsing.
type Process struct {
	fields [][]Op
}

// NumFields returns the number of per-field operation lists.
func (p *Process) NumFields() int { return len(p.fields) }

// SetCoefficient rebinds every 'C' operand to cal. Operations already
// parsed with numeric literals are unaffected.
func (p *Process) SetCoefficient(cal float64) {
	for _, ops := range p.fields {
		for i := range ops {
			if ops[i].cal {
				ops[i].arg = floatOperand(cal)
			}
		}
	}
}

// ParseProcess parses a processing string such as "*C/8:*C:&0x1".
// Clauses are colon-separated, one per non-padding layout field; each
// is a chain of operations applied left to right. Binary operations
// ('*' '/' '+' '-' '&' '^') take a literal operand (decimal,
// hexadecimal or exponential notation) or 'C', the channel calibration
// coefficient, initially bound to cal. Unary operations are 's'
// (square root), 'f' (floor) and 'c' (ceiling). An empty clause leaves
// the field value untouched.
func ParseProcess(spec string, cal float64) (*Process, error) {
	proc := &Process{}
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i < len(spec) && spec[i] != ':' {
			continue
		}
		ops, err := parseOps(spec[start:i], cal)
		if err != nil {
			return nil, err
		}
		proc.fields = append(proc.fields, ops)
		start = i + 1
	}
	return proc, nil
}

func isOpChar(c byte) bool {
	switch c {
	case '*', '/', '+', '-', '&', 's', 'f', 'c', '^':
		return true
	}
	return false
}

func parseOps(clause string, cal float64) ([]Op, error) {
	var ops []Op
	i := 0
	for i < len(clause) {
		code := clause[i]
		if !isOpChar(code) {
			return nil, xerrors.Errorf("datalog: unknown operation %q in %q: %w", string(code), clause, ErrFormat)
		}
		i++

		// scan the operand. A '+' or '-' belongs to the operand only
		// as a leading sign or as an exponent sign after 'e'/'E'.
		j := i
		for j < len(clause) {
			c := clause[j]
			if c == '+' || c == '-' {
				if j == i || clause[j-1] == 'e' || clause[j-1] == 'E' {
					j++
					continue
				}
				break
			}
			if isOpChar(c) {
				break
			}
			j++
		}
		lit := clause[i:j]
		i = j

		op := Op{Code: code}
		switch {
		case lit == "":
		case lit == "C":
			op.cal = true
			op.arg = floatOperand(cal)
		default:
			if v, err := strconv.ParseInt(lit, 0, 64); err == nil {
				op.arg = intOperand(v)
			} else if f, err := strconv.ParseFloat(lit, 64); err == nil {
				op.arg = floatOperand(f)
			} else {
				return nil, xerrors.Errorf("datalog: invalid operand %q in %q: %w", lit, clause, ErrFormat)
			}
		}

		switch code {
		case '*', '/', '+', '-', '&', '^':
			if !op.arg.set {
				return nil, xerrors.Errorf("datalog: missing operand for %q in %q: %w", string(code), clause, ErrFormat)
			}
		default:
			if op.arg.set {
				return nil, xerrors.Errorf("datalog: unexpected operand %q for %q in %q: %w", lit, string(code), clause, ErrFormat)
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// apply runs one operation on a value. Arithmetic on two integral
// operands stays integral, with flooring division; anything touching a
// float yields a float. This matches the semantics the format strings
// were written against.
func (op Op) apply(v Value) (Value, error) {
	switch op.Code {
	case '*':
		if iv, ok := v.integral(); ok && op.arg.isInt {
			return IntValue(iv * op.arg.i), nil
		}
		return FloatValue(v.Float() * op.arg.float()), nil
	case '/':
		if iv, ok := v.integral(); ok && op.arg.isInt {
			if op.arg.i == 0 {
				return v, xerrors.Errorf("datalog: division by zero: %w", ErrFormat)
			}
			return IntValue(floorDiv(iv, op.arg.i)), nil
		}
		return FloatValue(v.Float() / op.arg.float()), nil
	case '+':
		if iv, ok := v.integral(); ok && op.arg.isInt {
			return IntValue(iv + op.arg.i), nil
		}
		return FloatValue(v.Float() + op.arg.float()), nil
	case '-':
		if iv, ok := v.integral(); ok && op.arg.isInt {
			return IntValue(iv - op.arg.i), nil
		}
		return FloatValue(v.Float() - op.arg.float()), nil
	case '&':
		iv, ok := v.integral()
		if !ok || !op.arg.isInt {
			return v, xerrors.Errorf("datalog: bitwise-and on non-integral value: %w", ErrFormat)
		}
		return IntValue(iv & op.arg.i), nil
	case 's':
		return FloatValue(math.Sqrt(v.Float())), nil
	case 'f':
		return IntValue(int64(math.Floor(v.Float()))), nil
	case 'c':
		return IntValue(int64(math.Ceil(v.Float()))), nil
	case '^':
		if iv, ok := v.integral(); ok && op.arg.isInt && op.arg.i >= 0 {
			return IntValue(ipow(iv, op.arg.i)), nil
		}
		return FloatValue(math.Pow(v.Float(), op.arg.float())), nil
	}
	return v, xerrors.Errorf("datalog: unknown operation %q: %w", string(op.Code), ErrFormat)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ipow(a, b int64) int64 {
	var v int64 = 1
	for ; b > 0; b-- {
		v *= a
	}
	return v
}

// processRecord folds each field's operation list over the raw record.
func processRecord(rec Record, proc *Process) (Record, error) {
	out := make(Record, len(rec))
	for i, v := range rec {
		var err error
		for _, op := range proc.fields[i] {
			v, err = op.apply(v)
			if err != nil {
				return nil, err
			}
		}
		out[i] = v
	}
	return out, nil
}

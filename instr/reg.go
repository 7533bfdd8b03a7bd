// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import (
	"math"

	"golang.org/x/xerrors"
)

// usgn rounds v to the nearest integer and checks it fits in width
// unsigned bits.
func usgn(v float64, width uint) (uint64, error) {
	n := math.Round(v)
	max := math.Ldexp(1, int(width))
	if n < 0 || n >= max {
		return 0, xerrors.Errorf("instr: %v does not fit in %d unsigned bits: %w", v, width, ErrRange)
	}
	return uint64(n), nil
}

// sgn rounds v to the nearest integer and encodes it in width bits
// two's complement.
func sgn(v float64, width uint) (uint64, error) {
	n := math.Round(v)
	max := math.Ldexp(1, int(width)-1)
	if n < -max || n >= max {
		return 0, xerrors.Errorf("instr: %v does not fit in %d signed bits: %w", v, width, ErrRange)
	}
	mask := uint64(1)<<width - 1
	return uint64(int64(n)) & mask, nil
}

// upsgn decodes a width-bit two's complement field.
func upsgn(v uint64, width uint) float64 {
	sign := uint64(1) << (width - 1)
	if v&sign != 0 {
		return float64(int64(v) - int64(1)<<width)
	}
	return float64(v)
}

// contains reports whether allowed contains v. An empty set allows
// everything.
func contains(allowed []uint64, v uint64) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// toRegUnsigned builds a setter for an unsigned field of width bits
// at shift in a single register, optionally restricted to a set of
// allowed values.
func toRegUnsigned(shift, width uint, allowed ...uint64) func(float64, []uint32) ([]uint32, error) {
	mask := uint32((uint64(1)<<width - 1) << shift)
	return func(v float64, old []uint32) ([]uint32, error) {
		u, err := usgn(v, width)
		if err != nil {
			return nil, err
		}
		if !contains(allowed, u) {
			return nil, xerrors.Errorf("instr: %v is not an allowed value: %w", v, ErrRange)
		}
		return []uint32{old[0]&^mask | uint32(u)<<shift}, nil
	}
}

func fromRegUnsigned(shift, width uint) func([]uint32) float64 {
	mask := uint32(uint64(1)<<width - 1)
	return func(regs []uint32) float64 {
		return float64(regs[0] >> shift & mask)
	}
}

// toRegSigned builds a setter for a two's complement field of width
// bits at shift in a single register.
func toRegSigned(shift, width uint) func(float64, []uint32) ([]uint32, error) {
	mask := uint32((uint64(1)<<width - 1) << shift)
	return func(v float64, old []uint32) ([]uint32, error) {
		u, err := sgn(v, width)
		if err != nil {
			return nil, err
		}
		return []uint32{old[0]&^mask | uint32(u)<<shift}, nil
	}
}

func fromRegSigned(shift, width uint) func([]uint32) float64 {
	mask := uint64(1)<<width - 1
	return func(regs []uint32) float64 {
		return upsgn(uint64(regs[0]>>shift)&mask, width)
	}
}

// toRegBool builds a setter for a single flag bit.
func toRegBool(bit uint) func(float64, []uint32) ([]uint32, error) {
	mask := uint32(1) << bit
	return func(v float64, old []uint32) ([]uint32, error) {
		if v != 0 {
			return []uint32{old[0] | mask}, nil
		}
		return []uint32{old[0] &^ mask}, nil
	}
}

func fromRegBool(bit uint) func([]uint32) float64 {
	mask := uint32(1) << bit
	return func(regs []uint32) float64 {
		if regs[0]&mask != 0 {
			return 1
		}
		return 0
	}
}

// scaledAccessor encodes a value as a full unsigned register in
// units of scale.
func scaledAccessor(reg uint8, scale float64) Accessor {
	return Accessor{
		Regs: []uint8{reg},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v/scale, 32)
			if err != nil {
				return nil, err
			}
			return []uint32{uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 { return scale * float64(regs[0]) },
	}
}

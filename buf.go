// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"encoding/binary"
	"math"

	"golang.org/x/xerrors"
)

// wbuf builds little-endian command packets.
type wbuf struct {
	p []byte
}

func (w *wbuf) u8(v uint8)    { w.p = append(w.p, v) }
func (w *wbuf) u16(v uint16)  { w.p = binary.LittleEndian.AppendUint16(w.p, v) }
func (w *wbuf) u32(v uint32)  { w.p = binary.LittleEndian.AppendUint32(w.p, v) }
func (w *wbuf) u64(v uint64)  { w.p = binary.LittleEndian.AppendUint64(w.p, v) }
func (w *wbuf) i32(v int32)   { w.u32(uint32(v)) }
func (w *wbuf) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *wbuf) raw(p []byte) { w.p = append(w.p, p...) }

// str8 appends s with a 1-byte length prefix.
func (w *wbuf) str8(s string) {
	w.u8(uint8(len(s)))
	w.p = append(w.p, s...)
}

// str16 appends s with a 2-byte length prefix.
func (w *wbuf) str16(s string) {
	w.u16(uint16(len(s)))
	w.p = append(w.p, s...)
}

// rbuf decodes little-endian reply packets with a sticky error.
type rbuf struct {
	p   []byte
	c   int
	err error
}

func (r *rbuf) load(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.c+n > len(r.p) {
		r.err = xerrors.Errorf("moku: reply too short (want %d bytes at offset %d, have %d)", n, r.c, len(r.p))
		return nil
	}
	p := r.p[r.c : r.c+n]
	r.c += n
	return p
}

func (r *rbuf) u8() uint8 {
	p := r.load(1)
	if r.err != nil {
		return 0
	}
	return p[0]
}

func (r *rbuf) u16() uint16 {
	p := r.load(2)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (r *rbuf) u32() uint32 {
	p := r.load(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (r *rbuf) u64() uint64 {
	p := r.load(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (r *rbuf) i32() int32 { return int32(r.u32()) }

func (r *rbuf) f64() float64 { return math.Float64frombits(r.u64()) }

// str8 reads a string with a 1-byte length prefix.
func (r *rbuf) str8() string {
	n := r.u8()
	p := r.load(int(n))
	if r.err != nil {
		return ""
	}
	return string(p)
}

// rest returns the unconsumed tail of the reply.
func (r *rbuf) rest() []byte {
	if r.err != nil {
		return nil
	}
	p := r.p[r.c:]
	r.c = len(r.p)
	return p
}

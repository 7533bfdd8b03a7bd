// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import "golang.org/x/xerrors"

const (
	cmdDeploy  = 0x43
	cmdProps   = 0x46
	cmdRegBank = 0x47
	cmdFS      = 0x49
	cmdFWLoad  = 0x52
	cmdStream  = 0x53
)

// NumRegs is the size of an instrument's register bank.
const NumRegs = 128

// Reg is one instrument register: an address in the bank and its
// 32-bit value.
type Reg struct {
	Addr  uint8
	Value uint32
}

// ReadRegs reads the registers at the given addresses.
func (m *Moku) ReadRegs(addrs []uint8) ([]Reg, error) {
	var w wbuf
	w.u8(cmdRegBank)
	w.u8(0)
	w.u8(uint8(len(addrs)))
	for _, a := range addrs {
		w.u8(a)
	}

	rep, err := m.cmd(w.p)
	if err != nil {
		return nil, err
	}

	r := rbuf{p: rep}
	typ := r.u8()
	status := r.u8()
	n := r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if typ != cmdRegBank || status != 0 || int(n) != len(addrs) {
		return nil, xerrors.Errorf(
			"moku: register read failed (type=0x%02x, status=%d, n=%d)",
			typ, status, n,
		)
	}

	regs := make([]Reg, n)
	for i := range regs {
		regs[i] = Reg{Addr: r.u8(), Value: r.u32()}
	}
	if r.err != nil {
		return nil, r.err
	}
	return regs, nil
}

// WriteRegs writes the given registers. Write addresses are offset by
// 0x80 on the wire.
func (m *Moku) WriteRegs(regs []Reg) error {
	var w wbuf
	w.u8(cmdRegBank)
	w.u8(0)
	w.u8(uint8(len(regs)))
	for _, reg := range regs {
		w.u8(reg.Addr + 0x80)
		w.u32(reg.Value)
	}

	rep, err := m.cmd(w.p)
	if err != nil {
		return err
	}

	r := rbuf{p: rep}
	typ := r.u8()
	status := r.u8()
	n := r.u8()
	if r.err != nil {
		return r.err
	}
	if typ != cmdRegBank || status != 0 || n != 0 {
		return xerrors.Errorf(
			"moku: register write failed (type=0x%02x, status=%d, n=%d)",
			typ, status, n,
		)
	}
	return nil
}

// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package instr provides the register-level control surfaces of the
// instruments a Moku:Lab can deploy.
//
// An instrument is a shadow copy of the device's 128-register control
// bank together with a table of named settings. Settings are modified
// locally with Set and pushed to the device in one batch with Commit,
// so related settings take effect atomically.
package instr // import "github.com/go-moku/moku/instr"

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/go-moku/moku"
)

// Instrument ids of the stock bitstreams.
const (
	IDOscilloscope    = 1
	IDSpecAn          = 2
	IDPhaseMeter      = 3
	IDSignalGenerator = 4
)

// Register addresses shared by all instruments.
const (
	regCtl     = 0
	regID1     = 2
	regID2     = 3
	regPause   = 4
	regOutLen  = 5
	regFilt    = 6
	regFRate   = 7
	regScale   = 8
	regOffset  = 9
	regOffsetA = 10
	regAInCtl  = 13
	regPreTrig = 15
	regState   = 63
)

// instrReset holds the instrument in reset while set in regCtl.
const instrReset = 0x00000001

// Horizontal acquisition modes.
const (
	FullFrame = 0
	Roll      = 1 << 29
	Sweep     = 1 << 30
)

// Render filter modes.
const (
	RenderCubic = iota
	RenderMinMax
	RenderDeci
	RenderDDS
)

// Front-end relay bits.
const (
	relayDC   = 1
	relayLowZ = 2
	relayLowG = 4
)

const (
	// ADCRate is the sampling rate of the analog front end, in Hz.
	ADCRate = 500e6
	// BufLen is the depth of a channel capture buffer, in samples.
	BufLen = 1 << 14
	// ScreenWidth is the number of points in a rendered frame.
	ScreenWidth = 1024
	// DefaultFrameRate is the default frame publication rate, in Hz.
	DefaultFrameRate = 10
)

var (
	// ErrRange indicates a setting value outside its encodable range.
	ErrRange = xerrors.New("instr: value out of range")
	// ErrNotDeployed indicates an instrument without an attached device.
	ErrNotDeployed = xerrors.New("instr: instrument not deployed")
)

// Device is the control surface an instrument drives. *moku.Moku
// implements it.
type Device interface {
	ReadRegs(addrs []uint8) ([]moku.Reg, error)
	WriteRegs(regs []moku.Reg) error
	PropertySection(prefix string) ([]moku.Property, error)
}

// An Accessor converts between one named setting and the register
// fields that back it. Set transforms a new value and the current
// contents of Regs into their new contents; it is nil for read-only
// settings. Get recovers the value from the registers; it is nil for
// write-only settings.
type Accessor struct {
	Regs []uint8
	Set  func(v float64, old []uint32) ([]uint32, error)
	Get  func(regs []uint32) float64
}

// Instrument is the state an instrument deployed on a device, made of
// a local shadow of the device's register bank and the accessor table
// translating named settings to register fields.
type Instrument struct {
	dev  Device
	id   uint8
	name string

	acc map[string]Accessor

	local  [moku.NumRegs]*uint32
	remote [moku.NumRegs]uint32

	stateID uint8
	running bool

	// Calibration holds the device calibration properties, keyed by
	// their full property names. Attach fills it in.
	Calibration map[string]string
}

// New returns a bare instrument with the settings every bitstream
// provides. The stock constructors (NewOscilloscope et al.) extend it
// with their own settings.
func New(id uint8, name string) *Instrument {
	ins := &Instrument{
		id:   id,
		name: name,
		acc:  make(map[string]Accessor, 2*len(commonAccessors)),
	}
	for n, a := range commonAccessors {
		ins.acc[n] = a
	}
	return ins
}

// Define adds or replaces the accessor of the named setting.
func (ins *Instrument) Define(name string, acc Accessor) {
	ins.acc[name] = acc
}

// ID returns the instrument id to deploy.
func (ins *Instrument) ID() uint8 { return ins.id }

// Name returns the instrument name.
func (ins *Instrument) Name() string { return ins.name }

// StateID returns the id of the last committed register state.
func (ins *Instrument) StateID() uint8 { return ins.stateID }

// Running reports whether the instrument has been released from reset.
func (ins *Instrument) Running() bool { return ins.running }

// Attach binds the instrument to a deployed device and loads the
// device's calibration properties.
func (ins *Instrument) Attach(dev Device) error {
	ins.dev = dev
	props, err := dev.PropertySection("calibration")
	if err != nil {
		return xerrors.Errorf("instr: could not read calibration for %s: %w", ins.name, err)
	}
	ins.Calibration = make(map[string]string, len(props))
	for _, p := range props {
		ins.Calibration[p.Key] = p.Value
	}
	return nil
}

// reg returns the current view of a register, preferring uncommitted
// local values.
func (ins *Instrument) reg(addr uint8) uint32 {
	if p := ins.local[addr]; p != nil {
		return *p
	}
	return ins.remote[addr]
}

func (ins *Instrument) setLocal(addr uint8, v uint32) {
	p := new(uint32)
	*p = v
	ins.local[addr] = p
}

// Set stages a new value for the named setting. The change only
// reaches the device on the next Commit.
func (ins *Instrument) Set(name string, v float64) error {
	acc, ok := ins.acc[name]
	if !ok {
		return xerrors.Errorf("instr: %s has no setting %q", ins.name, name)
	}
	if acc.Set == nil {
		return xerrors.Errorf("instr: setting %q of %s is read-only", name, ins.name)
	}
	old := make([]uint32, len(acc.Regs))
	for i, r := range acc.Regs {
		old[i] = ins.reg(r)
	}
	vals, err := acc.Set(v, old)
	if err != nil {
		return xerrors.Errorf("instr: could not set %q of %s to %v: %w", name, ins.name, v, err)
	}
	for i, r := range acc.Regs {
		ins.setLocal(r, vals[i])
	}
	return nil
}

// SetBool stages a boolean setting.
func (ins *Instrument) SetBool(name string, v bool) error {
	if v {
		return ins.Set(name, 1)
	}
	return ins.Set(name, 0)
}

// Get returns the current value of the named setting, local staged
// changes included.
func (ins *Instrument) Get(name string) (float64, error) {
	acc, ok := ins.acc[name]
	if !ok {
		return 0, xerrors.Errorf("instr: %s has no setting %q", ins.name, name)
	}
	if acc.Get == nil {
		return 0, xerrors.Errorf("instr: setting %q of %s is write-only", name, ins.name)
	}
	cur := make([]uint32, len(acc.Regs))
	for i, r := range acc.Regs {
		cur[i] = ins.reg(r)
	}
	return acc.Get(cur), nil
}

// Commit pushes all staged register changes to the device in one
// batch, stamping them with a fresh state id.
func (ins *Instrument) Commit() error {
	if ins.dev == nil {
		return ErrNotDeployed
	}
	ins.stateID++
	if err := ins.Set("state_id", float64(ins.stateID)); err != nil {
		return err
	}
	if err := ins.Set("state_id_alt", float64(ins.stateID)); err != nil {
		return err
	}

	var regs []moku.Reg
	for addr, p := range &ins.local {
		if p != nil {
			regs = append(regs, moku.Reg{Addr: uint8(addr), Value: *p})
		}
	}
	if err := ins.dev.WriteRegs(regs); err != nil {
		return xerrors.Errorf("instr: could not commit %s state %d: %w", ins.name, ins.stateID, err)
	}
	for addr, p := range &ins.local {
		if p != nil {
			ins.remote[addr] = *p
			ins.local[addr] = nil
		}
	}
	return nil
}

// SyncRegisters reloads the register shadow from the device. It is
// only needed when the device state is modified behind the
// instrument's back.
func (ins *Instrument) SyncRegisters() error {
	if ins.dev == nil {
		return ErrNotDeployed
	}
	addrs := make([]uint8, moku.NumRegs)
	for i := range addrs {
		addrs[i] = uint8(i)
	}
	regs, err := ins.dev.ReadRegs(addrs)
	if err != nil {
		return xerrors.Errorf("instr: could not sync %s registers: %w", ins.name, err)
	}
	for _, r := range regs {
		ins.remote[r.Addr] = r.Value
	}
	return nil
}

// SetRunning asserts or releases the instrument reset line and
// commits immediately.
func (ins *Instrument) SetRunning(state bool) error {
	v := uint32(instrReset)
	if state {
		v = 0
	}
	ins.setLocal(regCtl, v)
	ins.running = state
	return ins.Commit()
}

// SetFrontend configures termination, attenuation and coupling of an
// input channel. fiftyR selects 50 Ohm termination over 1 MOhm, atten
// engages the 10x attenuator, and ac selects AC coupling.
func (ins *Instrument) SetFrontend(channel int, fiftyR, atten, ac bool) error {
	var relays uint32
	if fiftyR {
		relays |= relayLowZ
	}
	if atten {
		relays |= relayLowG
	}
	if !ac {
		relays |= relayDC
	}
	name, err := relaysName(channel)
	if err != nil {
		return err
	}
	return ins.Set(name, float64(relays))
}

// Frontend returns the termination, attenuation and coupling of an
// input channel.
func (ins *Instrument) Frontend(channel int) (fiftyR, atten, ac bool, err error) {
	name, err := relaysName(channel)
	if err != nil {
		return false, false, false, err
	}
	v, err := ins.Get(name)
	if err != nil {
		return false, false, false, err
	}
	r := uint32(v)
	return r&relayLowZ != 0, r&relayLowG != 0, r&relayDC == 0, nil
}

func relaysName(channel int) (string, error) {
	switch channel {
	case 1:
		return "relays_ch1", nil
	case 2:
		return "relays_ch2", nil
	}
	return "", xerrors.Errorf("instr: invalid channel %d: %w", channel, ErrRange)
}

// calSection names the calibration property matching a front-end
// relay state.
func calSection(relays uint32) string {
	imp := "1M"
	if relays&relayLowZ != 0 {
		imp = "50"
	}
	gain := "H"
	if relays&relayLowG != 0 {
		gain = "L"
	}
	coup := "A"
	if relays&relayDC != 0 {
		coup = "D"
	}
	return "calibration.AG-" + imp + "-" + gain + "-" + coup + "-1"
}

// calGain returns the bits-to-volts factor of an input channel in its
// current front-end state, or 1 for an uncalibrated device.
func (ins *Instrument) calGain(channel int) float64 {
	name, err := relaysName(channel)
	if err != nil {
		return 1
	}
	r, err := ins.Get(name)
	if err != nil {
		return 1
	}
	s, ok := ins.Calibration[calSection(uint32(r))]
	if !ok {
		return 1
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v == 0 {
		return 1
	}
	return 1 / v
}

// commonAccessors are the settings every bitstream provides.
var commonAccessors = map[string]Accessor{
	"instr_id":      {Regs: []uint8{regID1}, Get: fromRegUnsigned(0, 8)},
	"instr_buildno": {Regs: []uint8{regID1}, Get: fromRegUnsigned(16, 16)},
	"hwver":         {Regs: []uint8{regID2}, Get: fromRegUnsigned(24, 8)},
	"hwserial":      {Regs: []uint8{regID2}, Get: fromRegUnsigned(0, 12)},

	"keep_last": {Regs: []uint8{regOutLen}, Set: toRegBool(28), Get: fromRegBool(28)},
	"frame_length": {
		Regs: []uint8{regOutLen},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			// the length field is 10 bits wide but a full frame of
			// 1024 points encodes as bit 10 set.
			u, err := usgn(v, 12)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&^0x3FF | uint32(u)}, nil
		},
		Get: fromRegUnsigned(0, 10),
	},
	"x_mode": {
		Regs: []uint8{regOutLen},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			m := uint32(v)
			if m != FullFrame && m != Roll && m != Sweep {
				return nil, ErrRange
			}
			return []uint32{old[0]&^0x60000000 | m}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0] & 0x60000000) },
	},

	"pause":       {Regs: []uint8{regPause}, Set: toRegBool(0), Get: fromRegBool(0)},
	"render_mode": {Regs: []uint8{regFilt}, Set: toRegUnsigned(0, 32, RenderCubic, RenderMinMax, RenderDeci, RenderDDS), Get: fromRegUnsigned(0, 32)},

	"framerate": {
		Regs: []uint8{regFRate},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v*256/477, 8)
			if err != nil {
				return nil, err
			}
			return []uint32{uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]) / 256 * 477 },
	},

	// cubic downsampling, in steps of 1/128th of a sample.
	"render_deci": {
		Regs: []uint8{regScale},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(128*(v-1), 16)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&0xFFFF0000 | uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]&0xFFFF)/128 + 1 },
	},
	"render_deci_alt": {
		Regs: []uint8{regScale},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(128*(v-1), 16)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&0x0000FFFF | uint32(u)<<16}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]>>16)/128 + 1 },
	},
	// direct downsampling.
	"render_dds": {
		Regs: []uint8{regScale},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v-1, 16)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&0xFFFF0000 | uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]&0xFFFF) + 1 },
	},
	"render_dds_alt": {
		Regs: []uint8{regScale},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v-1, 16)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&0x0000FFFF | uint32(u)<<16}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]>>16) + 1 },
	},

	"offset":     {Regs: []uint8{regOffset}, Set: toRegSigned(0, 32), Get: fromRegSigned(0, 32)},
	"offset_alt": {Regs: []uint8{regOffsetA}, Set: toRegSigned(0, 32), Get: fromRegSigned(0, 32)},

	"relays_ch1": {Regs: []uint8{regAInCtl}, Set: toRegUnsigned(0, 3), Get: fromRegUnsigned(0, 3)},
	"relays_ch2": {Regs: []uint8{regAInCtl}, Set: toRegUnsigned(3, 3), Get: fromRegUnsigned(3, 3)},

	"pretrigger": {Regs: []uint8{regPreTrig}, Set: toRegSigned(0, 32), Get: fromRegSigned(0, 32)},

	"state_id":     {Regs: []uint8{regState}, Set: toRegUnsigned(0, 8), Get: fromRegUnsigned(0, 8)},
	"state_id_alt": {Regs: []uint8{regState}, Set: toRegUnsigned(16, 8), Get: fromRegUnsigned(16, 8)},
}

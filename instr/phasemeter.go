// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import "golang.org/x/xerrors"

// PhaseMeter registers.
const (
	regPMInitF1L = 64
	regPMInitF1H = 65
	regPMCtl     = 66
	regPMOutput  = 67
	regPMInitF2H = 68
	regPMInitF2L = 69
)

// pmFreqScale converts Hz to the 48-bit phase accumulator increment.
const pmFreqScale = float64(1<<48) / (500 * 10e6)

// PhaseMeter drives the stock phasemeter bitstream.
type PhaseMeter struct {
	Instrument
}

// NewPhaseMeter returns a phasemeter ready to attach to a deployed
// device.
func NewPhaseMeter() *PhaseMeter {
	pm := &PhaseMeter{Instrument: *New(IDPhaseMeter, "phasemeter")}

	pm.Define("init_freq_ch1", pmFreqAccessor(regPMInitF1H, regPMInitF1L))
	pm.Define("init_freq_ch2", pmFreqAccessor(regPMInitF2H, regPMInitF2L))

	pm.Define("control_gain", Accessor{Regs: []uint8{regPMCtl}, Set: toRegSigned(0, 8), Get: fromRegSigned(0, 8)})
	pm.Define("integrator_shift", Accessor{Regs: []uint8{regPMCtl}, Set: toRegUnsigned(8, 4), Get: fromRegUnsigned(8, 4)})
	pm.Define("control_shift", Accessor{Regs: []uint8{regPMCtl}, Set: toRegUnsigned(12, 4), Get: fromRegUnsigned(12, 4)})

	pm.Define("output_decimation", Accessor{Regs: []uint8{regPMOutput}, Set: toRegUnsigned(0, 10), Get: fromRegUnsigned(0, 10)})
	pm.Define("output_shift", Accessor{Regs: []uint8{regPMOutput}, Set: toRegUnsigned(10, 4), Get: fromRegUnsigned(10, 4)})

	return pm
}

// pmFreqAccessor spreads a 48-bit scaled frequency over a high
// (16-bit) and a low (32-bit) register.
func pmFreqAccessor(hi, lo uint8) Accessor {
	return Accessor{
		Regs: []uint8{hi, lo},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			enc, err := usgn(v*pmFreqScale, 48)
			if err != nil {
				return nil, err
			}
			return []uint32{uint32(enc>>32) & 0xFFFF, uint32(enc)}, nil
		},
		Get: func(regs []uint32) float64 {
			return float64(uint64(regs[0])<<32|uint64(regs[1])) / pmFreqScale
		},
	}
}

// SetInitFrequency seeds the tracking loop of a channel with its
// expected input frequency, in Hz.
func (pm *PhaseMeter) SetInitFrequency(channel int, f float64) error {
	switch channel {
	case 1:
		return pm.Set("init_freq_ch1", f)
	case 2:
		return pm.Set("init_freq_ch2", f)
	}
	return xerrors.Errorf("instr: invalid channel %d: %w", channel, ErrRange)
}

// SetDefaults resets the phasemeter to a sane initial state: both
// tracking loops seeded at 100 MHz with moderate loop gain.
func (pm *PhaseMeter) SetDefaults() error {
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"x_mode", Roll},
		{"framerate", DefaultFrameRate},
		{"frame_length", ScreenWidth},
		{"init_freq_ch1", 10 * 10e6},
		{"init_freq_ch2", 10 * 10e6},
		{"control_gain", 100},
		{"control_shift", 0},
		{"integrator_shift", 5},
		{"output_decimation", 50},
		{"output_shift", 0},
	} {
		if err := pm.Set(s.name, s.v); err != nil {
			return err
		}
	}
	return nil
}

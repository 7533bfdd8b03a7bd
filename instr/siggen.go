// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import (
	"fmt"
	"math"

	"golang.org/x/xerrors"
)

// Signal generator registers.
const (
	regSGWaveforms = 96
	regSGFreq1L    = 97
	regSGPhase1    = 98
	regSGAmp1      = 99
	regSGModF1H    = 101
	regSGFreq1H    = 105
	regSGFreq2L    = 109
	regSGPhase2    = 110
	regSGAmp2      = 111
	regSGModF2H    = 113
	regSGFreq2H    = 117
)

// Output waveforms.
const (
	WaveSine = iota
	WaveSquare
	WaveNoise
)

// Signal generator encoding scales.
const (
	sgFreqScale  = 1e9 / float64(1<<48)
	sgPhaseScale = 2 * math.Pi / float64(1<<32)
	sgAmpScale   = 4.0 / float64(1<<16)
)

// SignalGenerator drives the stock signal generator bitstream.
type SignalGenerator struct {
	Instrument
}

// NewSignalGenerator returns a signal generator ready to attach to a
// deployed device.
func NewSignalGenerator() *SignalGenerator {
	sg := &SignalGenerator{Instrument: *New(IDSignalGenerator, "signal_generator")}

	sg.Define("out1_enable", Accessor{Regs: []uint8{regSGWaveforms}, Set: toRegBool(0), Get: fromRegBool(0)})
	sg.Define("out2_enable", Accessor{Regs: []uint8{regSGWaveforms}, Set: toRegBool(1), Get: fromRegBool(1)})
	sg.Define("out1_waveform", Accessor{Regs: []uint8{regSGWaveforms}, Set: toRegUnsigned(4, 3, WaveSine, WaveSquare, WaveNoise), Get: fromRegUnsigned(4, 3)})
	sg.Define("out2_waveform", Accessor{Regs: []uint8{regSGWaveforms}, Set: toRegUnsigned(7, 3, WaveSine, WaveSquare, WaveNoise), Get: fromRegUnsigned(7, 3)})

	sg.Define("out1_frequency", sgFreqAccessor(regSGFreq1H, regSGFreq1L))
	sg.Define("out2_frequency", sgFreqAccessor(regSGFreq2H, regSGFreq2L))

	sg.Define("out1_phase", scaledAccessor(regSGPhase1, sgPhaseScale))
	sg.Define("out2_phase", scaledAccessor(regSGPhase2, sgPhaseScale))
	sg.Define("out1_amplitude", scaledAccessor(regSGAmp1, sgAmpScale))
	sg.Define("out2_amplitude", scaledAccessor(regSGAmp2, sgAmpScale))

	sg.Define("out1_offset", sgOffsetAccessor(regSGModF1H))
	sg.Define("out2_offset", sgOffsetAccessor(regSGModF2H))

	return sg
}

// sgFreqAccessor spreads a 48-bit scaled frequency over a low
// register and the low half of a high register, preserving the high
// register's upper bits.
func sgFreqAccessor(hi, lo uint8) Accessor {
	return Accessor{
		Regs: []uint8{hi, lo},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			enc, err := usgn(v/sgFreqScale, 48)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&0xFFFF0000 | uint32(enc>>32), uint32(enc)}, nil
		},
		Get: func(regs []uint32) float64 {
			return sgFreqScale * float64(uint64(regs[0]&0xFFFF)<<32|uint64(regs[1]))
		},
	}
}

// sgOffsetAccessor encodes a signed DC offset, in volts, into the
// low half of a modulation register.
func sgOffsetAccessor(reg uint8) Accessor {
	return Accessor{
		Regs: []uint8{reg},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := sgn(v/sgAmpScale, 16)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&^0x0000FFFF | uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 {
			return sgAmpScale * upsgn(uint64(regs[0]&0xFFFF), 16)
		},
	}
}

func (sg *SignalGenerator) outName(channel int, suffix string) (string, error) {
	if channel != 1 && channel != 2 {
		return "", xerrors.Errorf("instr: invalid channel %d: %w", channel, ErrRange)
	}
	return fmt.Sprintf("out%d_%s", channel, suffix), nil
}

// EnableOutput switches an output channel on or off.
func (sg *SignalGenerator) EnableOutput(channel int, on bool) error {
	name, err := sg.outName(channel, "enable")
	if err != nil {
		return err
	}
	return sg.SetBool(name, on)
}

// SetWaveform selects the waveform of an output channel.
func (sg *SignalGenerator) SetWaveform(channel, wave int) error {
	name, err := sg.outName(channel, "waveform")
	if err != nil {
		return err
	}
	return sg.Set(name, float64(wave))
}

// SetFrequency sets the output frequency of a channel, in Hz.
func (sg *SignalGenerator) SetFrequency(channel int, f float64) error {
	name, err := sg.outName(channel, "frequency")
	if err != nil {
		return err
	}
	return sg.Set(name, f)
}

// SetAmplitude sets the peak-to-peak amplitude of a channel, in
// volts.
func (sg *SignalGenerator) SetAmplitude(channel int, v float64) error {
	name, err := sg.outName(channel, "amplitude")
	if err != nil {
		return err
	}
	return sg.Set(name, v)
}

// SetOffset sets the DC offset of a channel, in volts.
func (sg *SignalGenerator) SetOffset(channel int, v float64) error {
	name, err := sg.outName(channel, "offset")
	if err != nil {
		return err
	}
	return sg.Set(name, v)
}

// SetPhase sets the phase offset of a channel, in radians.
func (sg *SignalGenerator) SetPhase(channel int, p float64) error {
	name, err := sg.outName(channel, "phase")
	if err != nil {
		return err
	}
	return sg.Set(name, p)
}

// SetDefaults resets the signal generator with both outputs off.
func (sg *SignalGenerator) SetDefaults() error {
	if err := sg.EnableOutput(1, false); err != nil {
		return err
	}
	return sg.EnableOutput(2, false)
}

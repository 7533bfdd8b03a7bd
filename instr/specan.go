// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import (
	"math"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Spectrum analyser registers.
const (
	regSADemod  = 64
	regSADecCtl = 65
	regSARBW    = 66
	regSARefLvl = 67
)

// FFT windows.
const (
	WindowBH = iota
	WindowFlatTop
	WindowHanning
	WindowNone
)

const (
	saFFTLen = 8192 / 2
	// saFreqScale converts Hz to the demodulator phase increment.
	saFreqScale = float64(1<<32) / ADCRate
	// saIntVoltsScale converts internal fixed-point amplitudes to volts.
	saIntVoltsScale = 1.437 / 256
)

// windowWidths are the noise-equivalent bin widths of the FFT
// windows, in bins.
var windowWidths = map[int]float64{
	WindowNone:    0.89,
	WindowBH:      1.90,
	WindowHanning: 1.44,
	WindowFlatTop: 3.77,
}

// windowPower is the fixed-point coefficient sum of a window as
// accumulated by the device, used to normalise spectral power.
func windowPower(win int) float64 {
	w := make([]float64, saFFTLen)
	for i := range w {
		w[i] = 1
	}
	switch win {
	case WindowBH:
		window.BlackmanHarris(w)
	case WindowFlatTop:
		window.FlatTop(w)
	case WindowHanning:
		window.Hann(w)
	}
	return 32 * floats.Sum(w)
}

// SpecAn drives the stock spectrum analyser bitstream.
type SpecAn struct {
	Instrument

	f1, f2         float64 // requested span
	f1Full, f2Full float64 // span extended to whole capture buffers
	rbw            float64 // requested resolution bandwidth; 0 for auto
	win            int
	totalDeci      float64
	dbm            bool
}

// NewSpecAn returns a spectrum analyser ready to attach to a
// deployed device, spanning DC to 250 MHz with a Blackman-Harris
// window.
func NewSpecAn() *SpecAn {
	sa := &SpecAn{Instrument: *New(IDSpecAn, "specan")}

	sa.Define("demod", scaledAccessor(regSADemod, 1/saFreqScale))
	sa.Define("dec_enable", Accessor{Regs: []uint8{regSADecCtl}, Set: toRegBool(0), Get: fromRegBool(0)})
	sa.Define("dec_cic2", saDeciAccessor(1, 6))
	sa.Define("bs_cic2", Accessor{Regs: []uint8{regSADecCtl}, Set: toRegUnsigned(7, 4), Get: fromRegUnsigned(7, 4)})
	sa.Define("dec_cic3", saDeciAccessor(11, 4))
	sa.Define("bs_cic3", Accessor{Regs: []uint8{regSADecCtl}, Set: toRegUnsigned(15, 4), Get: fromRegUnsigned(15, 4)})
	sa.Define("dec_iir", saDeciAccessor(19, 4))

	sa.Define("rbw_ratio", Accessor{
		Regs: []uint8{regSARBW},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v*(1<<10), 24)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&^0xFFFFFF | uint32(u)}, nil
		},
		Get: func(regs []uint32) float64 { return float64(regs[0]&0xFFFFFF) / (1 << 10) },
	})
	sa.Define("window", Accessor{Regs: []uint8{regSARBW}, Set: toRegUnsigned(24, 2, WindowBH, WindowFlatTop, WindowHanning, WindowNone), Get: fromRegUnsigned(24, 2)})
	sa.Define("ref_level", Accessor{Regs: []uint8{regSARefLvl}, Set: toRegUnsigned(0, 4), Get: fromRegUnsigned(0, 4)})

	// the full-range span is always valid.
	_ = sa.SetSpan(0, 250e6)
	sa.win = WindowBH
	return sa
}

// saDeciAccessor encodes a decimation factor, stored off by one.
func saDeciAccessor(shift, width uint) Accessor {
	mask := uint32((uint64(1)<<width - 1) << shift)
	return Accessor{
		Regs: []uint8{regSADecCtl},
		Set: func(v float64, old []uint32) ([]uint32, error) {
			u, err := usgn(v-1, width)
			if err != nil {
				return nil, err
			}
			return []uint32{old[0]&^mask | uint32(u)<<shift}, nil
		},
		Get: func(regs []uint32) float64 {
			return float64(regs[0]>>shift&uint32(uint64(1)<<width-1)) + 1
		},
	}
}

// calculateDecimations splits the decimation needed for a span over
// the four decimation stages.
func calculateDecimations(f1, f2 float64) (d1, d2, d3, d4, ideal float64) {
	fspan := f2 - f1
	ideal = math.Floor(ADCRate / 8 / fspan)
	if ideal < 2 {
		return 1, 1, 1, 1, ideal
	}
	d1 = 4
	dec := ideal / d1

	d2 = math.Min(math.Max(math.Ceil(dec/16/16), 1), 64)
	dec /= d2

	d3 = math.Min(math.Max(math.Ceil(dec/16), 1), 16)
	dec /= d3

	d4 = math.Min(math.Max(math.Floor(dec), 1), 16)
	return d1, d2, d3, d4, ideal
}

// SetSpan sets the frequency span to analyse. The device always
// captures whole buffers, so the programmed span is extended beyond
// [f1, f2] and the extension carried in Span.
func (sa *SpecAn) SetSpan(f1, f2 float64) error {
	if f2 <= f1 || f1 < 0 || f2 > ADCRate/2 {
		return xerrors.Errorf("instr: invalid span [%v, %v]: %w", f1, f2, ErrRange)
	}
	sa.f1 = f1
	sa.f2 = f2
	fspan := f2 - f1

	d1, d2, d3, d4, _ := calculateDecimations(f1, f2)
	bufspan := ADCRate / 2 / (d1 * d2 * d3 * d4)

	dspan := bufspan - fspan
	var highRem float64
	if f2+dspan > ADCRate/2 {
		highRem = math.Mod(f2+dspan, ADCRate/2)
	}
	sa.f2Full = math.Min(f2+dspan, ADCRate/2)
	sa.f1Full = math.Max(f1-highRem, 0)
	return nil
}

// Span returns the full span the device captures.
func (sa *SpecAn) Span() (f1, f2 float64) { return sa.f1Full, sa.f2Full }

// SetRBW requests a resolution bandwidth, in Hz. Zero selects
// automatic resolution of five screen points. The value actually
// achieved is reported by the next Commit.
func (sa *SpecAn) SetRBW(rbw float64) { sa.rbw = rbw }

// SetWindow selects the FFT window.
func (sa *SpecAn) SetWindow(win int) error {
	if _, ok := windowWidths[win]; !ok {
		return xerrors.Errorf("instr: invalid window %d: %w", win, ErrRange)
	}
	sa.win = win
	return nil
}

// WindowByName maps a window name to its constant, defaulting to
// WindowNone.
func WindowByName(name string) int {
	switch name {
	case "BH":
		return WindowBH
	case "FLATTOP":
		return WindowFlatTop
	case "HANNING":
		return WindowHanning
	}
	return WindowNone
}

// SetDBMScale selects power rendering in dBm over volts.
func (sa *SpecAn) SetDBMScale(on bool) { sa.dbm = on }

// setDecimations programs the decimation stages for the current
// span.
func (sa *SpecAn) setDecimations() error {
	d1, d2, d3, d4, _ := calculateDecimations(sa.f1, sa.f2)
	sa.totalDeci = d1 * d2 * d3 * d4

	for _, s := range []struct {
		name string
		v    float64
	}{
		{"bs_cic2", math.Ceil(2 * math.Log2(d2))},
		{"bs_cic3", math.Ceil(3 * math.Log2(d3))},
		{"dec_cic2", d2},
		{"dec_cic3", d3},
		{"dec_iir", d4},
	} {
		if err := sa.Set(s.name, s.v); err != nil {
			return err
		}
	}
	// the first stage is a fixed x4 decimator.
	return sa.SetBool("dec_enable", d1 == 4)
}

// setRBWRatio programs the resolution bandwidth as a ratio of the
// bin resolution, returning the bandwidth actually achieved.
func (sa *SpecAn) setRBWRatio(fspan float64) (float64, error) {
	wf := windowWidths[sa.win]
	fbin := ADCRate / 2 / saFFTLen / sa.totalDeci

	rbw := sa.rbw
	if rbw == 0 {
		rbw = 5 * fspan / ScreenWidth
	}
	rbw = math.Min(math.Max(rbw, 17.0/16.0*fbin*wf), (1<<10)*fbin*wf)

	// round the bitshifted ratio so the register encoding is exact.
	ratio := math.Round((1<<10)*rbw/wf/fbin) / (1 << 10)
	if err := sa.Set("rbw_ratio", ratio); err != nil {
		return 0, err
	}
	return rbw, nil
}

// setupControls derives the register state from the requested span,
// bandwidth and window.
func (sa *SpecAn) setupControls() error {
	// mix the top of the span down to DC.
	if err := sa.Set("demod", sa.f2Full); err != nil {
		return err
	}
	if err := sa.setDecimations(); err != nil {
		return err
	}

	fspan := sa.f2Full - sa.f1Full
	bufspan := ADCRate / 2 / sa.totalDeci
	dds := math.Min(math.Max(math.Ceil(fspan/bufspan*saFFTLen/(ScreenWidth-1)), 1), 4)
	if err := sa.Set("render_dds", dds); err != nil {
		return err
	}
	if err := sa.Set("render_dds_alt", dds); err != nil {
		return err
	}

	if _, err := sa.setRBWRatio(fspan); err != nil {
		return err
	}
	if err := sa.Set("window", float64(sa.win)); err != nil {
		return err
	}
	return sa.Set("ref_level", 6)
}

// Commit derives the spectral controls from the requested span,
// bandwidth and window, then pushes all staged changes to the
// device.
func (sa *SpecAn) Commit() error {
	if err := sa.setupControls(); err != nil {
		return err
	}
	return sa.Instrument.Commit()
}

// Scales returns the power scaling factors of both channels in the
// current state.
func (sa *SpecAn) Scales() (g1, g2 float64, err error) {
	ratio, err := sa.Get("rbw_ratio")
	if err != nil {
		return 0, 0, err
	}
	var get [5]float64
	for i, name := range []string{"bs_cic2", "dec_cic2", "bs_cic3", "dec_cic3", "dec_iir"} {
		if get[i], err = sa.Get(name); err != nil {
			return 0, 0, err
		}
	}
	filtGain := math.Exp2(get[0]-2*math.Log2(get[1])) * math.Exp2(get[2]-3*math.Log2(get[3]))
	if get[4] > 1 {
		filtGain /= 256
	}
	g := saIntVoltsScale * filtGain / windowPower(sa.win) * ratio * (1 << 10)
	return sa.calGain(1) * g, sa.calGain(2) * g, nil
}

// SetDefaults resets the spectrum analyser to a sane initial state.
func (sa *SpecAn) SetDefaults() error {
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"framerate", DefaultFrameRate},
		{"frame_length", ScreenWidth},
		{"offset", -4},
		{"offset_alt", -4},
		{"render_mode", RenderDDS},
		{"x_mode", FullFrame},
	} {
		if err := sa.Set(s.name, s.v); err != nil {
			return err
		}
	}
	if err := sa.SetFrontend(1, false, true, false); err != nil {
		return err
	}
	if err := sa.SetFrontend(2, false, true, false); err != nil {
		return err
	}
	sa.SetDBMScale(true)
	return nil
}

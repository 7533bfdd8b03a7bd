// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/xerrors"
)

// Oscilloscope registers.
const (
	regOscOutSel     = 65
	regOscTrigMode   = 66
	regOscTrigCtl    = 67
	regOscTrigLvl    = 68
	regOscACtl       = 69
	regOscDecimation = 70
)

// Channel data sources.
const (
	SourceADC = 0
	SourceDAC = 1
)

// Trigger modes.
const (
	TrigAuto = iota
	TrigNormal
	TrigSingle
)

// Trigger sources.
const (
	TrigCh1 = iota
	TrigCh2
	TrigDA1
	TrigDA2
)

// Trigger edges.
const (
	EdgeRising = iota
	EdgeFalling
	EdgeBoth
)

// Acquisition modes: direct downsampling or decimation with
// low-pass filtering.
const (
	oscAinDDS = iota
	oscAinDeci
)

// Oscilloscope drives the stock oscilloscope bitstream.
type Oscilloscope struct {
	Instrument
}

// NewOscilloscope returns an oscilloscope ready to attach to a
// deployed device.
func NewOscilloscope() *Oscilloscope {
	o := &Oscilloscope{Instrument: *New(IDOscilloscope, "oscilloscope")}

	o.Define("source_ch1", Accessor{Regs: []uint8{regOscOutSel}, Set: toRegUnsigned(0, 1, SourceADC, SourceDAC), Get: fromRegUnsigned(0, 1)})
	o.Define("source_ch2", Accessor{Regs: []uint8{regOscOutSel}, Set: toRegUnsigned(1, 1, SourceADC, SourceDAC), Get: fromRegUnsigned(1, 1)})

	o.Define("trig_mode", Accessor{Regs: []uint8{regOscTrigMode}, Set: toRegUnsigned(0, 2, TrigAuto, TrigNormal, TrigSingle), Get: fromRegUnsigned(0, 2)})
	o.Define("trig_edge", Accessor{Regs: []uint8{regOscTrigCtl}, Set: toRegUnsigned(0, 2, EdgeRising, EdgeFalling, EdgeBoth), Get: fromRegUnsigned(0, 2)})
	o.Define("trig_ch", Accessor{Regs: []uint8{regOscTrigCtl}, Set: toRegUnsigned(4, 6, TrigCh1, TrigCh2, TrigDA1, TrigDA2), Get: fromRegUnsigned(4, 6)})
	o.Define("hf_reject", Accessor{Regs: []uint8{regOscTrigCtl}, Set: toRegBool(12), Get: fromRegBool(12)})
	o.Define("hysteresis", Accessor{Regs: []uint8{regOscTrigCtl}, Set: toRegUnsigned(16, 16), Get: fromRegUnsigned(16, 16)})
	o.Define("trigger_level", Accessor{Regs: []uint8{regOscTrigLvl}, Set: toRegSigned(0, 32), Get: fromRegSigned(0, 32)})

	o.Define("loopback_mode_ch1", Accessor{Regs: []uint8{regOscACtl}, Set: toRegUnsigned(0, 1), Get: fromRegUnsigned(0, 1)})
	o.Define("loopback_mode_ch2", Accessor{Regs: []uint8{regOscACtl}, Set: toRegUnsigned(1, 1), Get: fromRegUnsigned(1, 1)})
	o.Define("ain_mode", Accessor{Regs: []uint8{regOscACtl}, Set: toRegUnsigned(16, 2, oscAinDDS, oscAinDeci), Get: fromRegUnsigned(16, 2)})

	o.Define("decimation_rate", Accessor{Regs: []uint8{regOscDecimation}, Set: toRegUnsigned(0, 32), Get: fromRegUnsigned(0, 32)})

	return o
}

// optimalDecimation is the smallest ADC decimation that fits the
// time span in the capture buffer.
func optimalDecimation(t1, t2 float64) float64 {
	return math.Ceil(ADCRate * math.Abs(t1-t2) / BufLen)
}

// bufferOffset positions the trigger point in the capture buffer, in
// units of 4 samples.
func bufferOffset(t1 float64, decimation float64) float64 {
	bufSmps := ADCRate / decimation
	off := math.Ceil(t1 * bufSmps / 4)
	return math.Round(math.Min(math.Max(off, -(1<<28)), 1<<12))
}

// renderDownsample is the per-pixel downsampling needed to fit the
// time span on screen.
func renderDownsample(t1, t2, decimation float64) float64 {
	bufSmps := ADCRate / decimation
	screenSmps := math.Min(ScreenWidth/math.Abs(t1-t2), ADCRate)
	return math.Round(math.Min(math.Max(bufSmps/screenSmps, 1), 16))
}

// renderOffset positions the left of screen in the capture buffer.
func renderOffset(t1, t2, decimation, bufOffset, renderDeci float64) float64 {
	bufSmps := ADCRate / decimation
	trigInBuf := 4 * bufOffset
	bufStart := -trigInBuf / bufSmps
	bufEnd := bufStart + (BufLen-1)/bufSmps
	screenCentre := math.Abs(t1-t2) / 2
	screenSpan := renderDeci / bufSmps * ScreenWidth

	// allow scrolling past the end of the trace.
	left := math.Max(math.Min(screenCentre-screenSpan/2, bufEnd-screenSpan), bufStart)
	return math.Ceil(-left * bufSmps)
}

// SetTimebase sets the left and right hand edges of the time axis,
// in seconds relative to the trigger point, and derives the matching
// acquisition and rendering parameters.
func (o *Oscilloscope) SetTimebase(t1, t2 float64) error {
	if t2 <= t1 {
		return xerrors.Errorf("instr: invalid timebase [%v, %v]: %w", t1, t2, ErrRange)
	}
	d := optimalDecimation(t1, t2)
	if err := o.Set("decimation_rate", d); err != nil {
		return err
	}
	return o.setRender(t1, t2, d)
}

func (o *Oscilloscope) setRender(t1, t2, d float64) error {
	pre := bufferOffset(t1, d)
	deci := renderDownsample(t1, t2, d)
	off := renderOffset(t1, t2, d, pre, deci)
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"render_mode", RenderCubic},
		{"pretrigger", pre},
		{"render_deci", deci},
		{"offset", off},
		// alternates mirror the primaries, distorting frames until
		// the next trigger instead of dropping them.
		{"render_deci_alt", deci},
		{"offset_alt", off},
	} {
		if err := o.Set(s.name, s.v); err != nil {
			return err
		}
	}
	return nil
}

// SetSamplerate sets the sample rate directly, bypassing the
// timebase. This is the natural interface for datalogging, where no
// frames are rendered.
func (o *Oscilloscope) SetSamplerate(sr float64) error {
	if sr <= 0 || sr > ADCRate {
		return xerrors.Errorf("instr: invalid sample rate %v: %w", sr, ErrRange)
	}
	return o.Set("decimation_rate", ADCRate/sr)
}

// Samplerate returns the current sample rate in Hz.
func (o *Oscilloscope) Samplerate() (float64, error) {
	d, err := o.Get("decimation_rate")
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, xerrors.Errorf("instr: oscilloscope decimation not configured: %w", ErrRange)
	}
	return ADCRate / d, nil
}

// SetXMode selects the horizontal acquisition mode: Roll, Sweep or
// FullFrame.
func (o *Oscilloscope) SetXMode(mode uint32) error {
	return o.Set("x_mode", float64(mode))
}

// SetPrecisionMode switches between direct downsampling and
// precision (decimating, low-pass filtered) acquisition.
func (o *Oscilloscope) SetPrecisionMode(on bool) error {
	m := oscAinDDS
	if on {
		m = oscAinDeci
	}
	return o.Set("ain_mode", float64(m))
}

// SetTrigger configures the trigger source and parameters. Level and
// hysteresis are in ADC counts.
func (o *Oscilloscope) SetTrigger(source, edge int, level, hysteresis float64, hfReject bool, mode int) error {
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"trig_ch", float64(source)},
		{"trig_edge", float64(edge)},
		{"trigger_level", level},
		{"hysteresis", hysteresis},
		{"trig_mode", float64(mode)},
	} {
		if err := o.Set(s.name, s.v); err != nil {
			return err
		}
	}
	return o.SetBool("hf_reject", hfReject)
}

// SetSource feeds a channel from the ADC input or the looped-back
// DAC output.
func (o *Oscilloscope) SetSource(channel, source int) error {
	switch channel {
	case 1:
		return o.Set("source_ch1", float64(source))
	case 2:
		return o.Set("source_ch2", float64(source))
	}
	return xerrors.Errorf("instr: invalid channel %d: %w", channel, ErrRange)
}

// SetDefaults resets the oscilloscope to a sane initial state.
func (o *Oscilloscope) SetDefaults() error {
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"framerate", DefaultFrameRate},
		{"frame_length", ScreenWidth},
		{"x_mode", FullFrame},
	} {
		if err := o.Set(s.name, s.v); err != nil {
			return err
		}
	}
	if err := o.SetTimebase(-0.25, 0.25); err != nil {
		return err
	}
	if err := o.SetPrecisionMode(false); err != nil {
		return err
	}
	if err := o.SetTrigger(TrigCh1, EdgeRising, 0, 0, false, TrigAuto); err != nil {
		return err
	}
	if err := o.SetFrontend(1, false, true, false); err != nil {
		return err
	}
	return o.SetFrontend(2, false, true, false)
}

// deciGain is the accumulated gain of the decimating acquisition
// filter.
func (o *Oscilloscope) deciGain() (float64, error) {
	d, err := o.Get("decimation_rate")
	if err != nil {
		return 0, err
	}
	switch {
	case d == 0:
		return 1, nil
	case d < 1<<20:
		return d, nil
	default:
		return d / (1 << 10), nil
	}
}

// Scales returns the bits-to-volts factors of both channels in the
// current state.
func (o *Oscilloscope) Scales() (g1, g2 float64, err error) {
	g1 = o.calGain(1)
	g2 = o.calGain(2)
	ain, err := o.Get("ain_mode")
	if err != nil {
		return 0, 0, err
	}
	if int(ain) == oscAinDeci {
		g, err := o.deciGain()
		if err != nil {
			return 0, 0, err
		}
		g1 /= g
		g2 /= g
	}
	return g1, g2, nil
}

// LogFormat returns the record description of a datalogging session
// capturing the given channels in the current instrument state.
func (o *Oscilloscope) LogFormat(ch1, ch2 bool) (LogFormat, error) {
	sr, err := o.Samplerate()
	if err != nil {
		return LogFormat{}, err
	}
	ain, err := o.Get("ain_mode")
	if err != nil {
		return LogFormat{}, err
	}

	proc := "*C"
	if int(ain) == oscAinDeci {
		g, err := o.deciGain()
		if err != nil {
			return LogFormat{}, err
		}
		proc = fmt.Sprintf("*C/%f", g)
	}

	lf := LogFormat{
		TimeStep: 1 / sr,
		Layout:   "<s32",
	}
	hdr := "Moku:Lab Data Logger\r\nStart,{T}\r\nSample Rate " +
		strconv.FormatFloat(sr, 'f', -1, 64) + " Hz\r\nTime"
	fstr := "{t}"
	n := 0
	for i, on := range []bool{ch1, ch2} {
		if !on {
			continue
		}
		n++
		lf.Process = append(lf.Process, proc)
		lf.Cal = append(lf.Cal, o.calGain(i+1))
		hdr += fmt.Sprintf(", Channel %d", i+1)
		fstr += fmt.Sprintf(",{ch%d:.8e}", n)
	}
	lf.Header = hdr + "\r\n"
	lf.Format = fstr + "\r\n"
	return lf, nil
}

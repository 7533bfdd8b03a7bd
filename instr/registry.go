// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import "golang.org/x/xerrors"

// Settings is the control surface common to all instruments.
type Settings interface {
	ID() uint8
	Name() string
	Attach(dev Device) error
	Set(name string, v float64) error
	Get(name string) (float64, error)
	Commit() error
	SetRunning(state bool) error
	SetDefaults() error
}

var (
	_ Settings = (*Oscilloscope)(nil)
	_ Settings = (*SpecAn)(nil)
	_ Settings = (*PhaseMeter)(nil)
	_ Settings = (*SignalGenerator)(nil)
)

// ByID returns a fresh instance of the stock instrument with the
// given id.
func ByID(id uint8) (Settings, error) {
	switch id {
	case IDOscilloscope:
		return NewOscilloscope(), nil
	case IDSpecAn:
		return NewSpecAn(), nil
	case IDPhaseMeter:
		return NewPhaseMeter(), nil
	case IDSignalGenerator:
		return NewSignalGenerator(), nil
	}
	return nil, xerrors.Errorf("instr: unknown instrument id %d", id)
}

// ByName returns a fresh instance of the named stock instrument.
func ByName(name string) (Settings, error) {
	switch name {
	case "oscilloscope":
		return NewOscilloscope(), nil
	case "specan":
		return NewSpecAn(), nil
	case "phasemeter":
		return NewPhaseMeter(), nil
	case "signal_generator":
		return NewSignalGenerator(), nil
	}
	return nil, xerrors.Errorf("instr: unknown instrument %q", name)
}

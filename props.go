// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"os"

	"golang.org/x/xerrors"
)

// Property is one device property: a dotted key such as
// "device.serial" and its string value.
type Property struct {
	Key   string
	Value string
}

const (
	propRead    = 1
	propWrite   = 2
	propSection = 3
)

// Properties reads the named properties.
func (m *Moku) Properties(keys []string) ([]Property, error) {
	if len(keys) > 255 {
		return nil, xerrors.Errorf("moku: properties request too long (%d)", len(keys))
	}
	var w wbuf
	w.u8(cmdProps)
	w.u8(m.seq)
	w.u8(uint8(len(keys)))
	for _, k := range keys {
		w.u8(propRead)
		w.str8(k)
		w.u8(0) // no data for reads
	}
	return m.propCmd(w.p)
}

// SetProperties writes the given properties and returns the values
// echoed back by the device.
func (m *Moku) SetProperties(props []Property) ([]Property, error) {
	if len(props) > 255 {
		return nil, xerrors.Errorf("moku: properties request too long (%d)", len(props))
	}
	var w wbuf
	w.u8(cmdProps)
	w.u8(m.seq)
	w.u8(uint8(len(props)))
	for _, p := range props {
		w.u8(propWrite)
		w.str8(p.Key)
		w.str8(p.Value)
	}
	return m.propCmd(w.p)
}

// PropertySection reads all properties below the given section
// prefix, e.g. "calibration".
func (m *Moku) PropertySection(section string) ([]Property, error) {
	var w wbuf
	w.u8(cmdProps)
	w.u8(m.seq)
	w.u8(1)
	w.u8(propSection)
	w.str8(section)
	w.u8(0)
	return m.propCmd(w.p)
}

func (m *Moku) propCmd(pkt []byte) ([]Property, error) {
	rep, err := m.cmd(pkt)
	if err != nil {
		return nil, err
	}

	r := rbuf{p: rep}
	hdr := r.u8()
	seq := r.u8()
	status := r.u8()
	n := r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if hdr != cmdProps || seq != m.seq {
		return nil, xerrors.Errorf("moku: bad property reply (header=0x%02x, seq=%d/%d)", hdr, seq, m.seq)
	}
	m.seq++

	var props []Property
	for i := 0; i < int(n); i++ {
		key := r.str8()
		val := r.str8()
		if r.err != nil {
			return nil, r.err
		}
		if status != 0 {
			// an error reply carries exactly one property: the
			// offender, with empty data.
			return nil, xerrors.Errorf("moku: property access failed (status=%d, key=%q)", status, key)
		}
		props = append(props, Property{Key: key, Value: val})
	}
	if status != 0 {
		return nil, xerrors.Errorf("moku: property access failed (status=%d)", status)
	}
	return props, nil
}

// Property reads a single property value.
func (m *Moku) Property(key string) (string, error) {
	props, err := m.Properties([]string{key})
	if err != nil {
		return "", err
	}
	if len(props) != 1 {
		return "", xerrors.Errorf("moku: invalid property reply length %d", len(props))
	}
	return props[0].Value, nil
}

// SetProperty writes a single property and returns the echoed value.
func (m *Moku) SetProperty(key, value string) (string, error) {
	props, err := m.SetProperties([]Property{{Key: key, Value: value}})
	if err != nil {
		return "", err
	}
	if len(props) != 1 {
		return "", xerrors.Errorf("moku: invalid property reply length %d", len(props))
	}
	return props[0].Value, nil
}

// Serial returns the device's serial number.
func (m *Moku) Serial() (string, error) {
	return m.Property("device.serial")
}

// Name returns the device's user-visible name.
func (m *Moku) Name() (string, error) {
	return m.Property("system.name")
}

// SetName sets the device's user-visible name.
func (m *Moku) SetName(name string) error {
	_, err := m.SetProperty("system.name", name)
	return err
}

// LEDColour returns the current colour of the device's front LED ring.
func (m *Moku) LEDColour() (string, error) {
	return m.Property("leds.user")
}

// SetLEDColour sets the colour of the device's front LED ring.
func (m *Moku) SetLEDColour(colour string) error {
	_, err := m.SetProperty("leds.user", colour)
	return err
}

// announce records the controlling host's name on the device, so the
// front panel can display who is connected.
func (m *Moku) announce() error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	_, err = m.SetProperty("ipad.name", host)
	return err
}

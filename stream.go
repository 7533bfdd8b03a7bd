// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/go-moku/moku/datalog"
)

// StreamConfig describes one datalogging session on the device.
type StreamConfig struct {
	Ch1, Ch2 bool   // channels to log
	Start    uint32 // seconds from now until logging starts
	End      uint32 // seconds from now until logging stops
	UseSD    bool   // log to the SD card instead of internal storage

	FileName string
	FileType string // "bin", "csv", "net" or "plot"

	// record description, as embedded in LI files.
	TimeStep float64
	Layout   string
	Process  []string // one per logged channel
	Format   string
	Header   string

	// Tag identifies the session on the live stream; NewTag provides
	// fresh ones.
	Tag string
}

// StreamStatus is the device-side state of a datalogging session.
type StreamStatus struct {
	State    uint8  // 1 running, 2 waiting, anything else stopped
	Bytes    uint64 // bytes transferred so far
	StartIn  int32  // seconds until the session starts
	EndIn    int32  // seconds until the session ends
	Flags    uint8
	FileName string
}

// Running reports whether the session is still acquiring.
func (st StreamStatus) Running() bool { return st.State == 1 || st.State == 2 }

// NewTag returns a fresh 16-character session tag.
func NewTag() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")[:16]
}

const (
	streamOpPrep   = 1
	streamOpStop   = 2
	streamOpStatus = 3
	streamOpStart  = 4
)

var streamFileTypes = map[string]uint8{
	"bin":  0,
	"csv":  1,
	"net":  3,
	"plot": 4,
}

// StreamPrep arms a datalogging session on the device.
func (m *Moku) StreamPrep(cfg StreamConfig) error {
	if len(cfg.Tag) != 16 {
		return xerrors.Errorf("moku: invalid stream tag %q", cfg.Tag)
	}
	if cfg.End < cfg.Start {
		return xerrors.Errorf("moku: invalid stream times %d/%d", cfg.Start, cfg.End)
	}
	ftype, ok := streamFileTypes[cfg.FileType]
	if !ok {
		return xerrors.Errorf("moku: invalid stream file type %q", cfg.FileType)
	}

	var flags uint8
	flags = 1 << (2 + ftype)
	if cfg.Ch2 {
		flags |= 1 << 1
	}
	if cfg.Ch1 {
		flags |= 1
	}

	mp := MountInternal
	if cfg.UseSD {
		mp = MountSD
	}

	var w wbuf
	w.u8(cmdStream)
	w.u8(0)
	w.u8(streamOpPrep)
	w.raw([]byte(cfg.Tag))
	w.raw([]byte(mp))
	w.u32(cfg.Start)
	w.u32(cfg.End)
	w.u8(flags)
	w.f64(cfg.TimeStep)
	w.str16(cfg.FileName)
	w.str16(cfg.Layout)
	// the logged channels' processing strings travel as one
	// '|'-delimited string.
	w.str16(strings.Join(cfg.Process, "|"))
	w.str16(cfg.Format)
	w.str16(cfg.Header)

	rep, err := m.cmd(w.p)
	if err != nil {
		return err
	}
	_, status, err := streamReply(rep)
	if err != nil {
		return err
	}
	if status != 1 && status != 2 {
		return xerrors.Errorf("moku: could not prepare stream (status=%d)", status)
	}
	return nil
}

// StreamStart starts an armed datalogging session.
func (m *Moku) StreamStart() error {
	rep, err := m.cmd([]byte{cmdStream, 0, streamOpStart})
	if err != nil {
		return err
	}
	_, status, err := streamReply(rep)
	if err != nil {
		return err
	}
	if status != 1 && status != 2 {
		return xerrors.Errorf("moku: could not start stream (status=%d)", status)
	}
	return nil
}

// StreamStop stops the running session and returns the number of
// bytes it transferred.
func (m *Moku) StreamStop() (uint64, error) {
	rep, err := m.cmd([]byte{cmdStream, 0, streamOpStop})
	if err != nil {
		return 0, err
	}
	r, _, err := streamReply(rep)
	if err != nil {
		return 0, err
	}
	bt := r.u64()
	return bt, r.err
}

// StreamStatus queries the state of the current session.
func (m *Moku) StreamStatus() (StreamStatus, error) {
	var st StreamStatus

	rep, err := m.cmd([]byte{cmdStream, 0, streamOpStatus})
	if err != nil {
		return st, err
	}
	r, status, err := streamReply(rep)
	if err != nil {
		return st, err
	}
	st.State = status
	st.Bytes = r.u64()
	st.StartIn = r.i32()
	st.EndIn = r.i32()
	st.Flags = r.u8()
	st.FileName = string(r.load(int(r.u16())))
	return st, r.err
}

// streamReply consumes the common 4-byte stream reply header and
// returns the reader positioned on the payload.
func streamReply(rep []byte) (*rbuf, uint8, error) {
	r := &rbuf{p: rep}
	hdr := r.u8()
	r.u8() // sequence
	r.u8() // auto-erase
	status := r.u8()
	if r.err != nil {
		return nil, 0, r.err
	}
	if hdr != cmdStream {
		return nil, 0, xerrors.Errorf("moku: bad stream reply (header=0x%02x)", hdr)
	}
	return r, status, nil
}

// LogConfig converts a stream configuration to the matching LI
// session configuration for instrument id and version.
func (cfg StreamConfig) LogConfig(instr uint8, instrv uint16, start uint64, cal []float64) datalog.Config {
	nch := 0
	if cfg.Ch1 {
		nch++
	}
	if cfg.Ch2 {
		nch++
	}
	return datalog.Config{
		Instrument: instr,
		Version:    instrv,
		Channels:   nch,
		Layout:     cfg.Layout,
		Process:    cfg.Process,
		Format:     cfg.Format,
		Header:     cfg.Header,
		TimeStep:   cfg.TimeStep,
		StartTime:  start,
		Cal:        cal,
	}
}

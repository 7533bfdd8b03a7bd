// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"golang.org/x/xerrors"
)

// Magic is the signature of LI files; the following byte carries the
// format revision.
const Magic = "LI"

// revision is the format revision this package reads and writes.
const revision = '1'

// A Writer writes LI datalogging files: the self-describing header,
// then raw data chunks as they arrive from the instrument.
type Writer struct {
	w   io.Writer
	c   io.Closer
	cfg Config
	err error
}

// Create creates an LI file at path and writes its header.
func Create(path string, cfg Config) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xerrors.Errorf("datalog: could not create %q: %w", path, err)
	}
	w, err := NewWriter(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// NewWriter writes the LI header for cfg to w and returns a Writer
// accepting data chunks.
func NewWriter(w io.Writer, cfg Config) (*Writer, error) {
	if _, _, err := cfg.compile(); err != nil {
		return nil, err
	}

	var hdr wbuf
	hdr.u8(uint8(cfg.Channels))
	hdr.u8(cfg.Instrument)
	hdr.u16(cfg.Version)
	hdr.f64(cfg.TimeStep)
	hdr.u64(cfg.StartTime)
	for _, cal := range cfg.Cal {
		hdr.f64(cal)
	}
	hdr.str(cfg.Layout)
	for _, proc := range cfg.Process {
		hdr.str(proc)
	}
	hdr.str(cfg.Format)
	hdr.str(cfg.Header)

	if len(hdr.p) > math.MaxUint16 {
		return nil, xerrors.Errorf("datalog: header too large (%d bytes): %w", len(hdr.p), ErrFormat)
	}

	var pre wbuf
	pre.p = append(pre.p, Magic...)
	pre.u8(revision)
	pre.u16(uint16(len(hdr.p)))

	ww := &Writer{w: w, cfg: cfg}
	ww.write(pre.p)
	ww.write(hdr.p)
	if ww.err != nil {
		return nil, ww.err
	}
	return ww, nil
}

// Config returns the session configuration in the file header.
func (w *Writer) Config() Config { return w.cfg }

// Append writes one raw data chunk for channel ch.
func (w *Writer) Append(data []byte, ch int) error {
	if w.err != nil {
		return w.err
	}
	if ch < 0 || ch >= w.cfg.Channels {
		return xerrors.Errorf("datalog: invalid channel %d: %w", ch, ErrFormat)
	}
	if len(data) > math.MaxUint16 {
		return xerrors.Errorf("datalog: chunk too large (%d bytes): %w", len(data), ErrFormat)
	}
	var hdr wbuf
	hdr.u8(uint8(ch))
	hdr.u16(uint16(len(data)))
	w.write(hdr.p)
	w.write(data)
	return w.err
}

// Close closes the underlying file, if any.
func (w *Writer) Close() error {
	if w.c != nil {
		if err := w.c.Close(); err != nil && w.err == nil {
			w.err = xerrors.Errorf("datalog: could not close file: %w", err)
		}
		w.c = nil
	}
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = xerrors.Errorf("datalog: could not write: %w", err)
	}
}

// wbuf is a little-endian append buffer.
type wbuf struct {
	p []byte
}

func (w *wbuf) u8(v uint8)    { w.p = append(w.p, v) }
func (w *wbuf) u16(v uint16)  { w.p = binary.LittleEndian.AppendUint16(w.p, v) }
func (w *wbuf) u64(v uint64)  { w.p = binary.LittleEndian.AppendUint64(w.p, v) }
func (w *wbuf) f64(v float64) { w.u64(math.Float64bits(v)) }

func (w *wbuf) str(s string) {
	w.u16(uint16(len(s)))
	w.p = append(w.p, s...)
}

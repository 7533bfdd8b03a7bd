// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// A Reader reads LI datalogging files, decoding and processing the
// raw chunks through the format strings in the file's own header.
type Reader struct {
	r   io.Reader
	c   io.Closer
	cfg Config
	par *Parser

	// Headers holds the column names from the last line of the
	// header template, if any.
	Headers []string

	recs [][]Record
}

// Open opens the LI file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("datalog: could not open %q: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.c = f
	return r, nil
}

// NewReader reads and validates the LI header from r.
func NewReader(r io.Reader) (*Reader, error) {
	rb := &rbuf{r: r}

	var magic [3]byte
	rb.read(magic[:])
	if rb.err != nil {
		return nil, xerrors.Errorf("datalog: could not read magic: %w", ErrCorruptFile)
	}
	if string(magic[:2]) != Magic {
		return nil, xerrors.Errorf("datalog: bad magic %q: %w", magic[:2], ErrCorruptFile)
	}
	if magic[2] != revision {
		return nil, xerrors.Errorf("datalog: file revision %q: %w", magic[2], ErrUnsupportedVersion)
	}

	hdrLen := rb.u16()

	mark := rb.n
	cfg := Config{
		Channels:   int(rb.u8()),
		Instrument: rb.u8(),
		Version:    rb.u16(),
		TimeStep:   rb.f64(),
		StartTime:  rb.u64(),
	}
	cfg.Cal = make([]float64, cfg.Channels)
	for ch := range cfg.Cal {
		cfg.Cal[ch] = rb.f64()
	}
	cfg.Layout = rb.str()
	cfg.Process = make([]string, cfg.Channels)
	for ch := range cfg.Process {
		cfg.Process[ch] = rb.str()
	}
	cfg.Format = rb.str()
	cfg.Header = rb.str()

	if rb.err != nil {
		return nil, xerrors.Errorf("datalog: could not read header: %w", ErrCorruptFile)
	}
	if got := rb.n - mark; got != int(hdrLen) {
		return nil, xerrors.Errorf(
			"datalog: invalid header length (got=%d, want=%d): %w",
			got, hdrLen, ErrCorruptFile,
		)
	}

	par, err := NewParser(cfg)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:       r,
		cfg:     cfg,
		par:     par,
		Headers: columnNames(cfg.Header),
		recs:    make([][]Record, cfg.Channels),
	}, nil
}

// Config returns the session configuration from the file header.
func (r *Reader) Config() Config { return r.cfg }

// Read returns the next time-aligned record of each channel. It
// returns io.EOF once no channel can yield a further record.
func (r *Reader) Read() ([]Record, error) {
	for !r.ready() {
		err := r.next()
		if err == io.EOF {
			if r.ready() {
				break
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]Record, r.cfg.Channels)
	for ch := range r.recs {
		out[ch] = r.recs[ch][0]
		r.recs[ch] = r.recs[ch][1:]
	}
	return out, nil
}

// ReadAll reads records until EOF.
func (r *Reader) ReadAll() ([][]Record, error) {
	var out [][]Record
	for {
		recs, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, recs)
	}
}

// ToCSV renders the whole capture to w as CSV. It consumes the file;
// mixing ToCSV with Read on the same Reader is not supported.
func (r *Reader) ToCSV(w io.Writer) error {
	for {
		err := r.next()
		if err == io.EOF {
			return r.par.DumpCSV(w)
		}
		if err != nil {
			return err
		}
		if err := r.par.DumpCSV(w); err != nil {
			return err
		}
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.c != nil {
		err := r.c.Close()
		r.c = nil
		if err != nil {
			return xerrors.Errorf("datalog: could not close file: %w", err)
		}
	}
	return nil
}

func (r *Reader) ready() bool {
	for _, recs := range r.recs {
		if len(recs) == 0 {
			return false
		}
	}
	return true
}

// next reads and parses one data chunk.
func (r *Reader) next() error {
	var hdr [3]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		// a chunk header cut short at EOF ends the capture.
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return xerrors.Errorf("datalog: could not read chunk header: %w", err)
	}
	ch := int(hdr[0])
	n := binary.LittleEndian.Uint16(hdr[1:])
	if ch >= r.cfg.Channels {
		return xerrors.Errorf("datalog: chunk for invalid channel %d: %w", ch, ErrCorruptFile)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return xerrors.Errorf("datalog: truncated chunk for channel %d: %w", ch, ErrCorruptFile)
	}

	if err := r.par.Parse(buf, ch); err != nil {
		return err
	}
	for c := range r.recs {
		r.recs[c] = append(r.recs[c], r.par.Processed(c)...)
		r.par.ClearProcessed(c, -1)
	}
	return nil
}

// columnNames extracts the column names from the last non-empty line
// of a CSV header template.
func columnNames(hdr string) []string {
	lines := strings.Split(strings.ReplaceAll(hdr, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		for j := range cols {
			cols[j] = strings.TrimSpace(cols[j])
		}
		return cols
	}
	return nil
}

// rbuf is a little-endian sticky-error reader that counts consumed
// bytes.
type rbuf struct {
	r   io.Reader
	n   int
	err error
	buf [8]byte
}

func (r *rbuf) read(p []byte) {
	if r.err != nil {
		return
	}
	n, err := io.ReadFull(r.r, p)
	r.n += n
	if err != nil {
		r.err = err
	}
}

func (r *rbuf) u8() uint8 {
	r.read(r.buf[:1])
	if r.err != nil {
		return 0
	}
	return r.buf[0]
}

func (r *rbuf) u16() uint16 {
	r.read(r.buf[:2])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(r.buf[:2])
}

func (r *rbuf) u64() uint64 {
	r.read(r.buf[:8])
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(r.buf[:8])
}

func (r *rbuf) f64() float64 {
	return math.Float64frombits(r.u64())
}

func (r *rbuf) str() string {
	n := r.u16()
	if r.err != nil {
		return ""
	}
	p := make([]byte, n)
	r.read(p)
	if r.err != nil {
		return ""
	}
	return string(p)
}

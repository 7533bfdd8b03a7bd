// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"io"
	"log"
	"math"

	"golang.org/x/xerrors"
)

// Parser decodes raw instrument bytestrings into processed records.
//
// Parsing is incremental: data may be fed in chunks of any size and
// alignment, and each channel keeps its own residual bit cache, field
// cursor and in-progress record between calls. Completed records are
// processed through the channel's operation lists and queued until the
// caller consumes them with Processed/ClearProcessed or DumpCSV.
type Parser struct {
	cfg    Config
	layout *Layout
	procs  []*Process
	chans  []*chanState
	rend   *renderer
	msg    *log.Logger
}

type chanState struct {
	bits []uint8  // residual bits, one per byte, LSB of each source byte first
	rec  Record   // in-progress record
	cur  int      // index of the next layout field to decode
	raw  []Record // decoded, not yet processed
	out  []Record // processed, not yet consumed
}

// NewParser returns a Parser for the given session configuration.
func NewParser(cfg Config) (*Parser, error) {
	lay, procs, err := cfg.compile()
	if err != nil {
		return nil, err
	}

	p := &Parser{
		cfg:    cfg,
		layout: lay,
		procs:  procs,
		chans:  make([]*chanState, cfg.Channels),
		rend:   newRenderer(cfg),
	}
	for ch := range p.chans {
		p.chans[ch] = new(chanState)
	}
	return p, nil
}

// SetLogger directs resynchronisation notices to msg. The parser is
// silent by default.
func (p *Parser) SetLogger(msg *log.Logger) { p.msg = msg }

// Config returns the session configuration the parser was built from.
func (p *Parser) Config() Config { return p.cfg }

// SetCoefficient rebinds channel ch's calibration coefficient for all
// subsequently parsed records.
func (p *Parser) SetCoefficient(ch int, cal float64) error {
	if ch < 0 || ch >= len(p.procs) {
		return xerrors.Errorf("datalog: invalid channel %d: %w", ch, ErrFormat)
	}
	p.procs[ch].SetCoefficient(cal)
	return nil
}

// Parse feeds a chunk of raw instrument data for channel ch, decoding
// and processing as many complete records as the accumulated data
// holds. Trailing partial data is retained for the next call.
func (p *Parser) Parse(data []byte, ch int) error {
	if ch < 0 || ch >= len(p.chans) {
		return xerrors.Errorf("datalog: invalid channel %d: %w", ch, ErrFormat)
	}
	p.decode(data, ch)
	return p.process(ch)
}

// Processed returns channel ch's processed records pending consumption.
func (p *Parser) Processed(ch int) []Record { return p.chans[ch].out }

// ClearProcessed drops the first n processed records of channel ch;
// n < 0 drops all of them.
func (p *Parser) ClearProcessed(ch, n int) {
	st := p.chans[ch]
	if n < 0 || n > len(st.out) {
		n = len(st.out)
	}
	st.out = st.out[n:]
}

func (p *Parser) decode(data []byte, ch int) {
	st := p.chans[ch]
	for _, b := range data {
		for k := 0; k < 8; k++ {
			st.bits = append(st.bits, (b>>uint(k))&1)
		}
	}

	fields := p.layout.Fields()
	for {
		if st.cur >= len(fields) {
			if len(st.rec) > 0 {
				st.raw = append(st.raw, st.rec)
			}
			st.rec = nil
			st.cur = 0
		}
		f := fields[st.cur]
		if len(st.bits) < f.Bits {
			return
		}

		raw := bitsValue(st.bits[:f.Bits])
		if f.HasLit && raw != f.Lit {
			// Lost synchronisation. Drop the record under
			// construction and try again one byte further on.
			if p.msg != nil {
				p.msg.Printf("channel %d: bad literal (got=0x%x want=0x%x), resynchronising", ch, raw, f.Lit)
			}
			st.rec = nil
			st.cur = 0
			n := 8
			if len(st.bits) < n {
				n = len(st.bits)
			}
			st.bits = st.bits[n:]
			continue
		}

		if f.Kind != FieldPadding {
			st.rec = append(st.rec, decodeField(f, raw))
		}
		st.bits = st.bits[f.Bits:]
		st.cur++
	}
}

func (p *Parser) process(ch int) error {
	st := p.chans[ch]
	for _, rec := range st.raw {
		out, err := processRecord(rec, p.procs[ch])
		if err != nil {
			return err
		}
		st.out = append(st.out, out)
	}
	st.raw = st.raw[:0]
	return nil
}

// bitsValue folds LSB-first bits back into an unsigned integer.
func bitsValue(bits []uint8) uint64 {
	var v uint64
	for k, b := range bits {
		v |= uint64(b) << uint(k)
	}
	return v
}

func decodeField(f Field, raw uint64) Value {
	switch f.Kind {
	case FieldSigned:
		v := int64(raw)
		if f.Bits < 64 && raw&(1<<uint(f.Bits-1)) != 0 {
			v -= int64(1) << uint(f.Bits)
		}
		return IntValue(v)
	case FieldFloat:
		if f.Bits == 32 {
			return FloatValue(float64(math.Float32frombits(uint32(raw))))
		}
		return FloatValue(math.Float64frombits(raw))
	case FieldBool:
		return BoolValue(raw != 0)
	}
	return UintValue(raw)
}

// DumpCSV renders all time-aligned processed records to w as CSV rows,
// consuming them. The first call also renders the header template.
// Records of a channel that have no counterpart on the other logged
// channels yet stay queued for a later call.
func (p *Parser) DumpCSV(w io.Writer) error {
	n := -1
	for _, st := range p.chans {
		if n < 0 || len(st.out) < n {
			n = len(st.out)
		}
	}
	if n < 0 {
		n = 0
	}

	recs := make([][]Record, len(p.chans))
	for ch, st := range p.chans {
		recs[ch] = st.out[:n]
	}
	err := p.rend.render(w, recs, n)
	if err != nil {
		return err
	}
	for ch := range p.chans {
		p.ClearProcessed(ch, n)
	}
	return nil
}

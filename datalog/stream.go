// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import "golang.org/x/xerrors"

// StreamFrame is one message of a live datalogging stream: a chunk of
// raw record data for one channel, with the calibration coefficient in
// force when it was captured.
type StreamFrame struct {
	Tag     string // session tag
	Channel int32  // negative on the final, sentinel frame
	Index   uint64 // absolute index of the first sample in Payload
	Cal     float64
	Payload []byte
}

// Stream assembles live datalogging frames into processed records.
// Frames carry their own calibration, so records straddling a
// recalibration come out right without any caller bookkeeping.
type Stream struct {
	par *Parser
	idx []uint64
}

// NewStream returns a Stream for the given session configuration.
// The CSV templates of cfg may be left empty.
func NewStream(cfg Config) (*Stream, error) {
	par, err := NewParser(cfg)
	if err != nil {
		return nil, err
	}
	return &Stream{
		par: par,
		idx: make([]uint64, cfg.Channels),
	}, nil
}

// Feed consumes one frame and returns the records it completed. A
// sentinel frame (negative channel) yields ErrStreamEnded.
func (s *Stream) Feed(fr StreamFrame) ([]Record, error) {
	if fr.Channel < 0 {
		return nil, ErrStreamEnded
	}
	ch := int(fr.Channel)
	if ch >= len(s.idx) {
		return nil, xerrors.Errorf("datalog: frame for invalid channel %d: %w", ch, ErrFormat)
	}

	if err := s.par.SetCoefficient(ch, fr.Cal); err != nil {
		return nil, err
	}
	if err := s.par.Parse(fr.Payload, ch); err != nil {
		return nil, err
	}
	s.idx[ch] = fr.Index

	recs := append([]Record(nil), s.par.Processed(ch)...)
	s.par.ClearProcessed(ch, -1)
	return recs, nil
}

// Index returns the absolute sample index of the last frame fed for
// channel ch.
func (s *Stream) Index(ch int) uint64 { return s.idx[ch] }

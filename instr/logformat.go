// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package instr

import "github.com/go-moku/moku"

// LogFormat describes how the samples of a datalogging session are
// laid out on the wire and rendered to text. Process and Cal carry
// one entry per logged channel.
type LogFormat struct {
	TimeStep float64
	Layout   string
	Process  []string
	Format   string
	Header   string
	Cal      []float64
}

// Apply copies the record description into a stream configuration.
func (lf LogFormat) Apply(cfg *moku.StreamConfig) {
	cfg.TimeStep = lf.TimeStep
	cfg.Layout = lf.Layout
	cfg.Process = lf.Process
	cfg.Format = lf.Format
	cfg.Header = lf.Header
}

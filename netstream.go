// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"
	"golang.org/x/xerrors"

	"github.com/go-moku/moku/datalog"
)

// streamTagLen is the fixed width of session tags on the wire.
const streamTagLen = 16

// Netstream is a subscription to the live sample stream of one
// datalogging session.
type Netstream struct {
	sock mangos.Socket
	tag  string
}

// Netstream subscribes to the live stream of the session with the
// given tag. Recv blocks for at most timeout per frame.
func (m *Moku) Netstream(tag string, timeout time.Duration) (*Netstream, error) {
	return dialNetstream(fmt.Sprintf("tcp://%s:%d", m.addr, Port+1), tag, timeout)
}

func dialNetstream(ep, tag string, timeout time.Duration) (*Netstream, error) {
	if len(tag) != streamTagLen {
		return nil, xerrors.Errorf("moku: invalid stream tag %q", tag)
	}
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, xerrors.Errorf("moku: could not create stream socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte(tag)); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not subscribe to %q: %w", tag, err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not configure stream socket: %w", err)
	}
	if err := sock.Dial(ep); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not dial %q: %w", ep, err)
	}
	return &Netstream{sock: sock, tag: tag}, nil
}

// Tag returns the session tag the stream is subscribed to.
func (ns *Netstream) Tag() string { return ns.tag }

// Recv returns the next frame of the session. It returns
// datalog.ErrTimeout when no frame arrives in time.
func (ns *Netstream) Recv() (datalog.StreamFrame, error) {
	raw, err := ns.sock.Recv()
	if err != nil {
		if err == mangos.ErrRecvTimeout {
			return datalog.StreamFrame{}, xerrors.Errorf("moku: no stream data for %q: %w", ns.tag, datalog.ErrTimeout)
		}
		return datalog.StreamFrame{}, xerrors.Errorf("moku: could not receive stream frame: %w", err)
	}
	return unmarshalFrame(raw)
}

// Close terminates the subscription.
func (ns *Netstream) Close() error {
	if err := ns.sock.Close(); err != nil {
		return xerrors.Errorf("moku: could not close stream socket: %w", err)
	}
	return nil
}

// marshalFrame encodes a stream frame: the 16-byte session tag (also
// the subscription topic), i32 channel, u64 sample index, f64
// calibration, then the raw record payload.
func marshalFrame(fr datalog.StreamFrame) ([]byte, error) {
	if len(fr.Tag) != streamTagLen {
		return nil, xerrors.Errorf("moku: invalid stream tag %q", fr.Tag)
	}
	var w wbuf
	w.raw([]byte(fr.Tag))
	w.i32(fr.Channel)
	w.u64(fr.Index)
	w.f64(fr.Cal)
	w.raw(fr.Payload)
	return w.p, nil
}

func unmarshalFrame(raw []byte) (datalog.StreamFrame, error) {
	var fr datalog.StreamFrame
	r := rbuf{p: raw}
	tag := r.load(streamTagLen)
	if r.err != nil {
		return fr, xerrors.Errorf("moku: could not decode stream frame: %w", r.err)
	}
	fr.Tag = string(tag)
	fr.Channel = r.i32()
	fr.Index = r.u64()
	fr.Cal = r.f64()
	fr.Payload = r.rest()
	if r.err != nil {
		return fr, xerrors.Errorf("moku: could not decode stream frame: %w", r.err)
	}
	return fr, nil
}

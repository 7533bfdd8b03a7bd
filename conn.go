// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moku

import (
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"golang.org/x/xerrors"

	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// Port is the control-plane port of Moku:Lab devices. Live stream
// data is published on Port+1.
const Port = 27184

const (
	sendTimeout = 5 * time.Second
	recvTimeout = 10 * time.Second

	// deploys and file transfers block on the device for a while.
	longTimeout = 60 * time.Second
)

// Moku is a connection to the control plane of one Moku:Lab device.
// It is not safe for concurrent use.
type Moku struct {
	sock mangos.Socket
	addr string // IP address or host name, without port
	seq  uint8  // property command sequence number
}

// Dial connects to the device at addr (IP address or host name).
func Dial(addr string) (*Moku, error) {
	m, err := dialEndpoint(fmt.Sprintf("tcp://%s:%d", addr, Port))
	if err != nil {
		return nil, err
	}
	m.addr = addr
	return m, nil
}

func dialEndpoint(ep string) (*Moku, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, xerrors.Errorf("moku: could not create socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSendDeadline, sendTimeout); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not configure socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, recvTimeout); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not configure socket: %w", err)
	}
	if err := sock.Dial(ep); err != nil {
		sock.Close()
		return nil, xerrors.Errorf("moku: could not dial %q: %w", ep, err)
	}
	return &Moku{sock: sock}, nil
}

// Addr returns the address the connection was dialed with.
func (m *Moku) Addr() string { return m.addr }

// Close closes the control connection.
func (m *Moku) Close() error {
	if err := m.sock.Close(); err != nil {
		return xerrors.Errorf("moku: could not close socket: %w", err)
	}
	return nil
}

// cmd sends one command packet and returns the device's reply.
func (m *Moku) cmd(pkt []byte) ([]byte, error) {
	return m.cmdTimeout(pkt, recvTimeout)
}

func (m *Moku) cmdTimeout(pkt []byte, timeout time.Duration) ([]byte, error) {
	if timeout != recvTimeout {
		if err := m.sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
			return nil, xerrors.Errorf("moku: could not configure socket: %w", err)
		}
		defer m.sock.SetOption(mangos.OptionRecvDeadline, recvTimeout)
	}

	if err := m.sock.Send(pkt); err != nil {
		return nil, xerrors.Errorf("moku: could not send command 0x%02x: %w", pkt[0], err)
	}
	rep, err := m.sock.Recv()
	if err != nil {
		return nil, xerrors.Errorf("moku: no reply to command 0x%02x: %w", pkt[0], err)
	}
	return rep, nil
}

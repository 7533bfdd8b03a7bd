// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package finders discovers Moku:Lab devices on the local network.
//
// Devices announce themselves over mDNS under the "_moku._tcp"
// service. FindAll broadcasts a one-shot query and collects the
// answers arriving before the timeout.
package finders // import "github.com/go-moku/moku/finders"

import (
	"net"
	"strings"
	"time"

	"golang.org/x/net/dns/dnsmessage"
	"golang.org/x/xerrors"
)

const (
	mdnsService = "_moku._tcp.local."
	mdnsAddr    = "224.0.0.251:5353"
)

// Device describes one Moku:Lab discovered on the network.
type Device struct {
	Name   string // announced device name
	Host   string // mDNS host name
	Addr   net.IP
	Port   int
	Serial string // device serial number, when announced
}

// FindAll queries the local network for Moku:Lab devices and returns
// all the devices that answer within the timeout.
func FindAll(timeout time.Duration) ([]Device, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, xerrors.Errorf("finders: could not open mdns socket: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", mdnsAddr)
	if err != nil {
		return nil, xerrors.Errorf("finders: could not resolve mdns address: %w", err)
	}

	q, err := buildQuery()
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteToUDP(q, dst); err != nil {
		return nil, xerrors.Errorf("finders: could not send mdns query: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, xerrors.Errorf("finders: could not configure mdns socket: %w", err)
	}

	var (
		devs []Device
		seen = make(map[string]bool)
		buf  = make([]byte, 9000)
	)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				break
			}
			return devs, xerrors.Errorf("finders: could not read mdns answer: %w", err)
		}
		found, err := parseResponse(buf[:n])
		if err != nil {
			// not every mdns packet on the wire is for us.
			continue
		}
		for _, dev := range found {
			if seen[dev.Name] {
				continue
			}
			seen[dev.Name] = true
			devs = append(devs, dev)
		}
	}
	return devs, nil
}

// ByName returns the device announcing itself under the given name.
func ByName(name string, timeout time.Duration) (Device, error) {
	devs, err := FindAll(timeout)
	if err != nil {
		return Device{}, err
	}
	for _, dev := range devs {
		if dev.Name == name {
			return dev, nil
		}
	}
	return Device{}, xerrors.Errorf("finders: no device named %q", name)
}

// BySerial returns the device with the given serial number.
func BySerial(serial string, timeout time.Duration) (Device, error) {
	devs, err := FindAll(timeout)
	if err != nil {
		return Device{}, err
	}
	for _, dev := range devs {
		if dev.Serial == serial {
			return dev, nil
		}
	}
	return Device{}, xerrors.Errorf("finders: no device with serial %q", serial)
}

func buildQuery() ([]byte, error) {
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, xerrors.Errorf("finders: could not build mdns query: %w", err)
	}
	err := b.Question(dnsmessage.Question{
		Name:  dnsmessage.MustNewName(mdnsService),
		Type:  dnsmessage.TypePTR,
		Class: dnsmessage.ClassINET,
	})
	if err != nil {
		return nil, xerrors.Errorf("finders: could not build mdns query: %w", err)
	}
	pkt, err := b.Finish()
	if err != nil {
		return nil, xerrors.Errorf("finders: could not build mdns query: %w", err)
	}
	return pkt, nil
}

// parseResponse extracts the devices announced in one mdns answer
// packet.
func parseResponse(buf []byte) ([]Device, error) {
	var p dnsmessage.Parser
	if _, err := p.Start(buf); err != nil {
		return nil, xerrors.Errorf("finders: could not parse mdns answer: %w", err)
	}
	if err := p.SkipAllQuestions(); err != nil {
		return nil, xerrors.Errorf("finders: could not parse mdns answer: %w", err)
	}

	answers, err := p.AllAnswers()
	if err != nil {
		return nil, xerrors.Errorf("finders: could not parse mdns answer: %w", err)
	}
	if err := p.SkipAllAuthorities(); err != nil {
		return nil, xerrors.Errorf("finders: could not parse mdns answer: %w", err)
	}
	adds, err := p.AllAdditionals()
	if err != nil {
		return nil, xerrors.Errorf("finders: could not parse mdns answer: %w", err)
	}

	var (
		instances []string          // announced service instances
		srvs      = make(map[string]*dnsmessage.SRVResource)
		addrs     = make(map[string]net.IP) // host name -> address
		txts      = make(map[string][]string)
	)
	for _, r := range append(answers, adds...) {
		name := r.Header.Name.String()
		switch b := r.Body.(type) {
		case *dnsmessage.PTRResource:
			if name == mdnsService {
				instances = append(instances, b.PTR.String())
			}
		case *dnsmessage.SRVResource:
			srvs[name] = b
		case *dnsmessage.AResource:
			ip := b.A
			addrs[name] = net.IP(ip[:])
		case *dnsmessage.TXTResource:
			txts[name] = b.TXT
		}
	}

	var devs []Device
	for _, inst := range instances {
		dev := Device{
			Name: strings.TrimSuffix(inst, "."+mdnsService),
		}
		if srv, ok := srvs[inst]; ok {
			dev.Host = srv.Target.String()
			dev.Port = int(srv.Port)
			dev.Addr = addrs[dev.Host]
		}
		for _, txt := range txts[inst] {
			if v, ok := cutPrefix(txt, "serial="); ok {
				dev.Serial = v
			}
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

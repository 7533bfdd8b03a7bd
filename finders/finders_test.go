// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package finders

import (
	"net"
	"reflect"
	"testing"

	"golang.org/x/net/dns/dnsmessage"
)

func TestBuildQuery(t *testing.T) {
	pkt, err := buildQuery()
	if err != nil {
		t.Fatalf("could not build query: %+v", err)
	}

	var p dnsmessage.Parser
	if _, err := p.Start(pkt); err != nil {
		t.Fatalf("could not parse query: %+v", err)
	}
	q, err := p.Question()
	if err != nil {
		t.Fatalf("could not parse question: %+v", err)
	}
	if got, want := q.Name.String(), mdnsService; got != want {
		t.Fatalf("invalid question name: got=%q, want=%q", got, want)
	}
	if got, want := q.Type, dnsmessage.TypePTR; got != want {
		t.Fatalf("invalid question type: got=%v, want=%v", got, want)
	}
}

func TestParseResponse(t *testing.T) {
	var (
		svc  = dnsmessage.MustNewName(mdnsService)
		inst = dnsmessage.MustNewName("mylab._moku._tcp.local.")
		host = dnsmessage.MustNewName("moku002119.local.")
	)

	hdr := func(name dnsmessage.Name, typ dnsmessage.Type) dnsmessage.ResourceHeader {
		return dnsmessage.ResourceHeader{
			Name:  name,
			Type:  typ,
			Class: dnsmessage.ClassINET,
		}
	}

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{Response: true, Authoritative: true})
	b.EnableCompression()
	if err := b.StartAnswers(); err != nil {
		t.Fatalf("could not start answers: %+v", err)
	}
	err := b.PTRResource(hdr(svc, dnsmessage.TypePTR), dnsmessage.PTRResource{PTR: inst})
	if err != nil {
		t.Fatalf("could not add ptr record: %+v", err)
	}
	err = b.SRVResource(hdr(inst, dnsmessage.TypeSRV), dnsmessage.SRVResource{
		Target: host,
		Port:   27184,
	})
	if err != nil {
		t.Fatalf("could not add srv record: %+v", err)
	}
	err = b.TXTResource(hdr(inst, dnsmessage.TypeTXT), dnsmessage.TXTResource{
		TXT: []string{"hw=mokulab", "serial=002119"},
	})
	if err != nil {
		t.Fatalf("could not add txt record: %+v", err)
	}
	if err := b.StartAdditionals(); err != nil {
		t.Fatalf("could not start additionals: %+v", err)
	}
	err = b.AResource(hdr(host, dnsmessage.TypeA), dnsmessage.AResource{
		A: [4]byte{192, 168, 1, 10},
	})
	if err != nil {
		t.Fatalf("could not add a record: %+v", err)
	}
	pkt, err := b.Finish()
	if err != nil {
		t.Fatalf("could not build response: %+v", err)
	}

	devs, err := parseResponse(pkt)
	if err != nil {
		t.Fatalf("could not parse response: %+v", err)
	}

	want := []Device{
		{
			Name:   "mylab",
			Host:   "moku002119.local.",
			Addr:   net.IP{192, 168, 1, 10},
			Port:   27184,
			Serial: "002119",
		},
	}
	if got := devs; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid devices:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestParseResponseInvalid(t *testing.T) {
	if _, err := parseResponse([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error, got none")
	}
}
